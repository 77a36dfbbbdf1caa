// Package enrich applies read-side joins to documents before they are
// returned: bird details on posts and signed URLs for stored images.
// Nothing here writes to a store.
package enrich

import (
	"context"

	"github.com/dalemusser/birdbook/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BirdLookup is the read the bird join needs.
type BirdLookup interface {
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Bird, error)
}

// Birds attaches BirdDetails to every post that references a bird still
// present in the store. It issues one batched lookup.
func Birds(ctx context.Context, birds BirdLookup, posts []models.Post) error {
	seen := map[primitive.ObjectID]bool{}
	ids := []primitive.ObjectID{}
	for _, p := range posts {
		if p.Bird != nil && !seen[*p.Bird] {
			seen[*p.Bird] = true
			ids = append(ids, *p.Bird)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	found, err := birds.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[primitive.ObjectID]models.Bird, len(found))
	for _, b := range found {
		byID[b.ID] = b
	}
	for i := range posts {
		if posts[i].Bird == nil {
			continue
		}
		if b, ok := byID[*posts[i].Bird]; ok {
			b := b
			posts[i].BirdDetails = &b
		}
	}
	return nil
}
