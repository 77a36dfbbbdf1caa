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

// Users mirrors userstore.Store.
type Users struct {
	Hooks

	mu   sync.Mutex
	docs map[primitive.ObjectID]models.User
}

func NewUsers() *Users {
	return &Users{docs: map[primitive.ObjectID]models.User{}}
}

func userNotFound(id primitive.ObjectID) error {
	return fmt.Errorf("user %s: %w", id.Hex(), apperr.ErrNotFound)
}

func (s *Users) GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	if err := s.fail("GetByID", id); err != nil {
		return models.User{}, err
	}
	s.mu.Lock()
	u, ok := s.docs[id]
	if ok {
		u = u.Clone()
	}
	s.mu.Unlock()
	if !ok {
		return models.User{}, userNotFound(id)
	}
	s.afterRead("GetByID", id)
	return u, nil
}

func (s *Users) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.User{}
	seen := map[primitive.ObjectID]bool{}
	for _, id := range ids {
		if u, ok := s.docs[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, u.Clone())
		}
	}
	return sortBy(out, byUsername), nil
}

func (s *Users) GetByUsername(ctx context.Context, username string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := text.Fold(username)
	for _, u := range s.docs {
		if u.UsernameCI == key {
			return u.Clone(), nil
		}
	}
	return models.User{}, fmt.Errorf("user %q: %w", username, apperr.ErrNotFound)
}

func (s *Users) Create(ctx context.Context, u models.User) (models.User, error) {
	if err := s.fail("Create", primitive.NilObjectID); err != nil {
		return models.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	u.ID = primitive.NewObjectID()
	u.UsernameCI = text.Fold(u.Username)
	if s.usernameTaken(u.UsernameCI, u.ID) {
		return models.User{}, apperr.ErrDuplicateUsername
	}
	if u.Role == "" {
		u.Role = models.RoleBasic
	}
	u.Friends = []primitive.ObjectID{}
	u.Posts = []primitive.ObjectID{}
	u.Groups = []primitive.ObjectID{}
	u.CreatedAt = now
	u.UpdatedAt = now
	s.docs[u.ID] = u.Clone()
	return u, nil
}

// Save replaces the whole document, last writer wins.
func (s *Users) Save(ctx context.Context, u models.User) error {
	if err := s.fail("Save", u.ID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u.UsernameCI = text.Fold(u.Username)
	if s.usernameTaken(u.UsernameCI, u.ID) {
		return apperr.ErrDuplicateUsername
	}
	u.UpdatedAt = time.Now().UTC()
	s.docs[u.ID] = u.Clone()
	return nil
}

func (s *Users) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
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

func (s *Users) Exists(ctx context.Context, id primitive.ObjectID) (bool, error) {
	if err := s.fail("Exists", id); err != nil {
		return false, err
	}
	s.mu.Lock()
	_, ok := s.docs[id]
	s.mu.Unlock()
	s.afterRead("Exists", id)
	return ok, nil
}

func (s *Users) ExistingIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
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

func (s *Users) List(ctx context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, 0, len(s.docs))
	for _, u := range s.docs {
		out = append(out, u.Clone())
	}
	return sortBy(out, byUsername), nil
}

func (s *Users) Search(ctx context.Context, q string, limit int64) ([]models.User, error) {
	all, _ := s.List(ctx)
	out := []models.User{}
	for _, u := range all {
		if contains(u.Username, q) {
			out = append(out, u)
		}
	}
	return limitTo(out, limit), nil
}

func (s *Users) PushFriend(ctx context.Context, id, friendID primitive.ObjectID) error {
	return s.mutate("PushFriend", id, func(u *models.User) {
		u.Friends = append(u.Friends, friendID)
	})
}

func (s *Users) PullFriend(ctx context.Context, id, friendID primitive.ObjectID) error {
	return s.mutate("PullFriend", id, func(u *models.User) {
		u.Friends = models.WithoutID(u.Friends, friendID)
	})
}

func (s *Users) PushPost(ctx context.Context, id, postID primitive.ObjectID) error {
	return s.mutate("PushPost", id, func(u *models.User) {
		u.Posts = append(u.Posts, postID)
	})
}

func (s *Users) PushGroup(ctx context.Context, id, groupID primitive.ObjectID) error {
	return s.mutate("PushGroup", id, func(u *models.User) {
		u.Groups = append(u.Groups, groupID)
	})
}

// Put stores u as-is, bypassing Create's defaults. Tests use it to seed
// documents in a specific state.
func (s *Users) Put(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.UsernameCI = text.Fold(u.Username)
	s.docs[u.ID] = u.Clone()
}

func (s *Users) mutate(op string, id primitive.ObjectID, f func(*models.User)) error {
	if err := s.fail(op, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.docs[id]
	if !ok {
		return userNotFound(id)
	}
	u = u.Clone()
	f(&u)
	s.docs[id] = u
	return nil
}

func (s *Users) usernameTaken(ci string, self primitive.ObjectID) bool {
	for id, u := range s.docs {
		if id != self && u.UsernameCI == ci {
			return true
		}
	}
	return false
}

func byUsername(a, b models.User) bool {
	if a.UsernameCI != b.UsernameCI {
		return a.UsernameCI < b.UsernameCI
	}
	return idLess(a.ID, b.ID)
}
