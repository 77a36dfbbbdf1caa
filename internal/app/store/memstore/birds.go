package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/dalemusser/birdbook/internal/app/system/apperr"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Birds mirrors birdstore.Store.
type Birds struct {
	Hooks

	mu   sync.Mutex
	docs map[primitive.ObjectID]models.Bird
}

func NewBirds() *Birds {
	return &Birds{docs: map[primitive.ObjectID]models.Bird{}}
}

func (s *Birds) GetByID(ctx context.Context, id primitive.ObjectID) (models.Bird, error) {
	if err := s.fail("GetByID", id); err != nil {
		return models.Bird{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.docs[id]
	if !ok {
		return models.Bird{}, fmt.Errorf("bird %s: %w", id.Hex(), apperr.ErrNotFound)
	}
	return b.Clone(), nil
}

func (s *Birds) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Bird, error) {
	if err := s.fail("GetByIDs", primitive.NilObjectID); err != nil {
		return nil, err
	}
	want := map[primitive.ObjectID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	return s.filter(func(b models.Bird) bool { return want[b.ID] }), nil
}

func (s *Birds) Create(ctx context.Context, b models.Bird) (models.Bird, error) {
	if err := s.fail("Create", primitive.NilObjectID); err != nil {
		return models.Bird{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = primitive.NewObjectID()
	b.CommonNameCI = text.Fold(b.CommonName)
	s.docs[b.ID] = b.Clone()
	return b, nil
}

func (s *Birds) Save(ctx context.Context, b models.Bird) error {
	if err := s.fail("Save", b.ID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b.CommonNameCI = text.Fold(b.CommonName)
	s.docs[b.ID] = b.Clone()
	return nil
}

func (s *Birds) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return 0, nil
	}
	delete(s.docs, id)
	return 1, nil
}

func (s *Birds) List(ctx context.Context) ([]models.Bird, error) {
	return s.filter(func(models.Bird) bool { return true }), nil
}

func (s *Birds) Search(ctx context.Context, q string, limit int64) ([]models.Bird, error) {
	out := s.filter(func(b models.Bird) bool {
		return contains(b.CommonName, q) || contains(b.ScientificName, q)
	})
	return limitTo(out, limit), nil
}

func (s *Birds) filter(keep func(models.Bird) bool) []models.Bird {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Bird{}
	for _, b := range s.docs {
		if keep(b) {
			out = append(out, b.Clone())
		}
	}
	return sortBy(out, func(a, b models.Bird) bool {
		if a.CommonNameCI != b.CommonNameCI {
			return a.CommonNameCI < b.CommonNameCI
		}
		return idLess(a.ID, b.ID)
	})
}
