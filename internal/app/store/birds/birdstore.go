// internal/app/store/birds/birdstore.go
package birdstore

import (
	"context"
	"fmt"
	"regexp"

	"github.com/dalemusser/birdbook/internal/app/system/apperr"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("birds")}
}

var byCommonName = bson.D{{Key: "common_name_ci", Value: 1}, {Key: "_id", Value: 1}}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Bird, error) {
	var b models.Bird
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&b); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Bird{}, fmt.Errorf("bird %s: %w", id.Hex(), apperr.ErrNotFound)
		}
		return models.Bird{}, err
	}
	return b, nil
}

// GetByIDs returns the birds in ids that exist.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Bird, error) {
	if len(ids) == 0 {
		return []models.Bird{}, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find().SetSort(byCommonName))
}

func (s *Store) Create(ctx context.Context, b models.Bird) (models.Bird, error) {
	b.ID = primitive.NewObjectID()
	b.CommonNameCI = text.Fold(b.CommonName)
	if _, err := s.c.InsertOne(ctx, b); err != nil {
		return models.Bird{}, err
	}
	return b, nil
}

// Save replaces the whole document (upsert).
func (s *Store) Save(ctx context.Context, b models.Bird) error {
	b.CommonNameCI = text.Fold(b.CommonName)
	_, err := s.c.ReplaceOne(ctx, bson.M{"_id": b.ID}, b, options.Replace().SetUpsert(true))
	return err
}

// Delete removes a bird by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *Store) List(ctx context.Context) ([]models.Bird, error) {
	return s.find(ctx, bson.M{}, options.Find().SetSort(byCommonName))
}

// Search matches common or scientific names containing q (case-insensitive).
func (s *Store) Search(ctx context.Context, q string, limit int64) ([]models.Bird, error) {
	re := primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
	filter := bson.M{"$or": bson.A{
		bson.M{"common_name": bson.M{"$regex": re}},
		bson.M{"scientific_name": bson.M{"$regex": re}},
	}}
	return s.find(ctx, filter, options.Find().SetSort(byCommonName).SetLimit(limit))
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Bird, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.Bird{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
