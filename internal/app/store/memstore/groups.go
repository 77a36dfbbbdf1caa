package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dalemusser/birdbook/internal/app/system/apperr"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Groups mirrors groupstore.Store. The conditional transitions check and
// apply under one lock, like a filtered UpdateOne.
type Groups struct {
	Hooks

	mu   sync.Mutex
	docs map[primitive.ObjectID]models.Group
}

func NewGroups() *Groups {
	return &Groups{docs: map[primitive.ObjectID]models.Group{}}
}

func groupNotFound(id primitive.ObjectID) error {
	return fmt.Errorf("group %s: %w", id.Hex(), apperr.ErrNotFound)
}

func (s *Groups) GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	if err := s.fail("GetByID", id); err != nil {
		return models.Group{}, err
	}
	s.mu.Lock()
	g, ok := s.docs[id]
	if ok {
		g = g.Clone()
	}
	s.mu.Unlock()
	if !ok {
		return models.Group{}, groupNotFound(id)
	}
	s.afterRead("GetByID", id)
	return g, nil
}

func (s *Groups) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Group, error) {
	want := map[primitive.ObjectID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	return s.filter(func(g models.Group) bool { return want[g.ID] }), nil
}

func (s *Groups) Create(ctx context.Context, g models.Group) (models.Group, error) {
	if err := s.fail("Create", g.Owner.UserID); err != nil {
		return models.Group{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	g.ID = primitive.NewObjectID()
	g.NameCI = text.Fold(g.Name)
	if g.Members == nil {
		g.Members = []models.PostUser{}
	}
	if g.Requests == nil {
		g.Requests = []models.PostUser{}
	}
	g.CreatedAt = now
	g.UpdatedAt = now
	s.docs[g.ID] = g.Clone()
	return g, nil
}

func (s *Groups) Save(ctx context.Context, g models.Group) error {
	if err := s.fail("Save", g.ID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g.NameCI = text.Fold(g.Name)
	g.UpdatedAt = time.Now().UTC()
	s.docs[g.ID] = g.Clone()
	return nil
}

func (s *Groups) UpdateInfo(ctx context.Context, id primitive.ObjectID, name, desc, image string) error {
	if err := s.fail("UpdateInfo", id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.docs[id]
	if !ok {
		return groupNotFound(id)
	}
	g = g.Clone()
	g.Name = name
	g.NameCI = text.Fold(name)
	g.Description = desc
	g.Image = image
	g.UpdatedAt = time.Now().UTC()
	s.docs[id] = g
	return nil
}

func (s *Groups) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
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

func (s *Groups) ExistingIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
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

func (s *Groups) List(ctx context.Context) ([]models.Group, error) {
	return s.filter(func(models.Group) bool { return true }), nil
}

func (s *Groups) Search(ctx context.Context, q string, limit int64) ([]models.Group, error) {
	return limitTo(s.filter(func(g models.Group) bool { return contains(g.Name, q) }), limit), nil
}

func (s *Groups) ByMember(ctx context.Context, userID primitive.ObjectID) ([]models.Group, error) {
	return s.filter(func(g models.Group) bool { return g.HasMember(userID) }), nil
}

func (s *Groups) AddRequest(ctx context.Context, id primitive.ObjectID, u models.PostUser) (bool, error) {
	return s.transition("AddRequest", id, func(g *models.Group) bool {
		if g.HasRequest(u.UserID) || g.HasMember(u.UserID) {
			return false
		}
		g.Requests = append(g.Requests, u)
		return true
	})
}

func (s *Groups) ApproveRequest(ctx context.Context, id primitive.ObjectID, u models.PostUser) (bool, error) {
	return s.transition("ApproveRequest", id, func(g *models.Group) bool {
		if !g.HasRequest(u.UserID) {
			return false
		}
		g.Requests = models.WithoutUser(g.Requests, u.UserID)
		g.Members = append(g.Members, u)
		return true
	})
}

func (s *Groups) DenyRequest(ctx context.Context, id, userID primitive.ObjectID) (bool, error) {
	return s.transition("DenyRequest", id, func(g *models.Group) bool {
		if !g.HasRequest(userID) {
			return false
		}
		g.Requests = models.WithoutUser(g.Requests, userID)
		return true
	})
}

func (s *Groups) RemoveMember(ctx context.Context, id, userID primitive.ObjectID) (bool, error) {
	return s.transition("RemoveMember", id, func(g *models.Group) bool {
		if !g.HasMember(userID) {
			return false
		}
		g.Members = models.WithoutUser(g.Members, userID)
		return true
	})
}

// Put stores g as-is. Tests use it to seed inconsistent states.
func (s *Groups) Put(g models.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g.NameCI = text.Fold(g.Name)
	s.docs[g.ID] = g.Clone()
}

// transition applies f if the group exists and f reports its precondition
// held. A missing group reports false, like an unmatched filter.
func (s *Groups) transition(op string, id primitive.ObjectID, f func(*models.Group) bool) (bool, error) {
	if err := s.fail(op, id); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.docs[id]
	if !ok {
		return false, nil
	}
	g = g.Clone()
	if !f(&g) {
		return false, nil
	}
	g.UpdatedAt = time.Now().UTC()
	s.docs[id] = g
	return true, nil
}

func (s *Groups) filter(keep func(models.Group) bool) []models.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Group{}
	for _, g := range s.docs {
		if keep(g) {
			out = append(out, g.Clone())
		}
	}
	return sortBy(out, func(a, b models.Group) bool {
		if a.NameCI != b.NameCI {
			return a.NameCI < b.NameCI
		}
		return idLess(a.ID, b.ID)
	})
}
