package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dalemusser/birdbook/internal/app/system/apperr"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Posts mirrors poststore.Store.
type Posts struct {
	Hooks

	mu   sync.Mutex
	docs map[primitive.ObjectID]models.Post
}

func NewPosts() *Posts {
	return &Posts{docs: map[primitive.ObjectID]models.Post{}}
}

func postNotFound(id primitive.ObjectID) error {
	return fmt.Errorf("post %s: %w", id.Hex(), apperr.ErrNotFound)
}

func (s *Posts) GetByID(ctx context.Context, id primitive.ObjectID) (models.Post, error) {
	if err := s.fail("GetByID", id); err != nil {
		return models.Post{}, err
	}
	s.mu.Lock()
	p, ok := s.docs[id]
	if ok {
		p = p.Clone()
	}
	s.mu.Unlock()
	if !ok {
		return models.Post{}, postNotFound(id)
	}
	s.afterRead("GetByID", id)
	return p, nil
}

func (s *Posts) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Post, error) {
	want := map[primitive.ObjectID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	return s.filter(func(p models.Post) bool { return want[p.ID] }), nil
}

func (s *Posts) Create(ctx context.Context, p models.Post) (models.Post, error) {
	if err := s.fail("Create", p.User.UserID); err != nil {
		return models.Post{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = primitive.NewObjectID()
	if p.Timestamp.IsZero() {
		p.Timestamp = models.Now()
	}
	if p.Likes == nil {
		p.Likes = []primitive.ObjectID{}
	}
	if p.Comments == nil {
		p.Comments = []models.Comment{}
	}
	p.BirdDetails = nil
	s.docs[p.ID] = p.Clone()
	return p, nil
}

func (s *Posts) Save(ctx context.Context, p models.Post) error {
	if err := s.fail("Save", p.ID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p.BirdDetails = nil
	s.docs[p.ID] = p.Clone()
	return nil
}

func (s *Posts) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	if err := s.fail("Delete", id); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return 0, nil
	}
	delete(s.docs, id)
	return 1, nil
}

func (s *Posts) Exists(ctx context.Context, id primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.docs[id]
	return ok, nil
}

func (s *Posts) ExistingIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[primitive.ObjectID]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.docs[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (s *Posts) List(ctx context.Context) ([]models.Post, error) {
	return s.filter(func(models.Post) bool { return true }), nil
}

func (s *Posts) ByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Post, error) {
	return s.filter(func(p models.Post) bool { return p.User.UserID == userID }), nil
}

func (s *Posts) ByGroup(ctx context.Context, groupID primitive.ObjectID) ([]models.Post, error) {
	return s.filter(func(p models.Post) bool { return p.Group != nil && *p.Group == groupID }), nil
}

func (s *Posts) ByTags(ctx context.Context, tags map[string]string) ([]models.Post, error) {
	return s.filter(func(p models.Post) bool {
		for k, v := range tags {
			if got, ok := p.Tags[k]; !ok || got != v {
				return false
			}
		}
		return true
	}), nil
}

func (s *Posts) Search(ctx context.Context, q string, limit int64) ([]models.Post, error) {
	out := s.filter(func(p models.Post) bool {
		return contains(p.Header, q) || contains(p.TextBody, q)
	})
	return limitTo(out, limit), nil
}

func (s *Posts) AddLike(ctx context.Context, id, userID primitive.ObjectID) error {
	return s.mutate("AddLike", id, func(p *models.Post) {
		if !models.ContainsID(p.Likes, userID) {
			p.Likes = append(p.Likes, userID)
		}
	})
}

func (s *Posts) RemoveLike(ctx context.Context, id, userID primitive.ObjectID) error {
	return s.mutate("RemoveLike", id, func(p *models.Post) {
		p.Likes = models.WithoutID(p.Likes, userID)
	})
}

func (s *Posts) PushComment(ctx context.Context, id primitive.ObjectID, c models.Comment) error {
	return s.mutate("PushComment", id, func(p *models.Post) {
		p.Comments = append(p.Comments, c)
	})
}

func (s *Posts) SetCommentText(ctx context.Context, id, userID primitive.ObjectID, ts time.Time, textBody string) (bool, error) {
	matched := false
	err := s.mutate("SetCommentText", id, func(p *models.Post) {
		for i := range p.Comments {
			if p.Comments[i].Matches(userID, ts) {
				p.Comments[i].TextBody = textBody
				matched = true
				return
			}
		}
	})
	if apperr.IsNotFound(err) {
		return false, nil
	}
	return matched, err
}

func (s *Posts) PullComments(ctx context.Context, id, userID primitive.ObjectID, ts time.Time) (bool, error) {
	matched := false
	err := s.mutate("PullComments", id, func(p *models.Post) {
		kept := make([]models.Comment, 0, len(p.Comments))
		for _, c := range p.Comments {
			if c.Matches(userID, ts) {
				matched = true
				continue
			}
			kept = append(kept, c)
		}
		p.Comments = kept
	})
	if apperr.IsNotFound(err) {
		return false, nil
	}
	return matched, err
}

func (s *Posts) UpdateContent(ctx context.Context, in models.Post) error {
	return s.mutate("UpdateContent", in.ID, func(p *models.Post) {
		c := in.Clone()
		p.Header = c.Header
		p.TextBody = c.TextBody
		p.Tags = c.Tags
		p.Image = c.Image
		p.Bird = c.Bird
		p.Group = c.Group
	})
}

func (s *Posts) SetFlagged(ctx context.Context, id primitive.ObjectID, v bool) error {
	return s.mutate("SetFlagged", id, func(p *models.Post) { p.Flagged = v })
}

func (s *Posts) SetHelp(ctx context.Context, id primitive.ObjectID, v bool) error {
	return s.mutate("SetHelp", id, func(p *models.Post) { p.Help = v })
}

func (s *Posts) mutate(op string, id primitive.ObjectID, f func(*models.Post)) error {
	if err := s.fail(op, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.docs[id]
	if !ok {
		return postNotFound(id)
	}
	p = p.Clone()
	f(&p)
	s.docs[id] = p
	return nil
}

func (s *Posts) filter(keep func(models.Post) bool) []models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Post{}
	for _, p := range s.docs {
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	return sortBy(out, newestFirst)
}

func newestFirst(a, b models.Post) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return idLess(b.ID, a.ID)
}
