// internal/app/store/groups/groupstore.go
package groupstore

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/dalemusser/birdbook/internal/app/store/storeutil"
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
	return &Store{c: db.Collection("groups")}
}

var byName = bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	var g models.Group
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Group{}, fmt.Errorf("group %s: %w", id.Hex(), apperr.ErrNotFound)
		}
		return models.Group{}, err
	}
	return g, nil
}

// GetByIDs returns the groups in ids that still exist, ordered by name.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Group, error) {
	if len(ids) == 0 {
		return []models.Group{}, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find().SetSort(byName))
}

func (s *Store) Create(ctx context.Context, g models.Group) (models.Group, error) {
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
	if _, err := s.c.InsertOne(ctx, g); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

// Save replaces the whole document (upsert).
func (s *Store) Save(ctx context.Context, g models.Group) error {
	g.NameCI = text.Fold(g.Name)
	g.UpdatedAt = time.Now().UTC()
	_, err := s.c.ReplaceOne(ctx, bson.M{"_id": g.ID}, g, options.Replace().SetUpsert(true))
	return err
}

// UpdateInfo sets name, description and image without touching the
// membership lists.
func (s *Store) UpdateInfo(ctx context.Context, id primitive.ObjectID, name, desc, image string) error {
	set := bson.M{
		"name":        name,
		"name_ci":     text.Fold(name),
		"description": desc,
		"image":       image,
		"updated_at":  time.Now().UTC(),
	}
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("group %s: %w", id.Hex(), apperr.ErrNotFound)
	}
	return nil
}

// Delete removes a group by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ExistingIDs returns the subset of ids that still have a group document.
func (s *Store) ExistingIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	return storeutil.ExistingIDs(ctx, s.c, ids)
}

func (s *Store) List(ctx context.Context) ([]models.Group, error) {
	return s.find(ctx, bson.M{}, options.Find().SetSort(byName))
}

// Search matches group names containing q (case-insensitive).
func (s *Store) Search(ctx context.Context, q string, limit int64) ([]models.Group, error) {
	filter := bson.M{"name": bson.M{"$regex": primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}}}
	return s.find(ctx, filter, options.Find().SetSort(byName).SetLimit(limit))
}

// ByMember returns the groups listing userID in members. This reads the
// authoritative membership list, not the user's groups array.
func (s *Store) ByMember(ctx context.Context, userID primitive.ObjectID) ([]models.Group, error) {
	return s.find(ctx, bson.M{"members.user_id": userID}, options.Find().SetSort(byName))
}

/* -------------------------------------------------------------------------- */
/* Conditional membership transitions                                          */
/* -------------------------------------------------------------------------- */

// Each transition carries its precondition in the filter, so a concurrent
// transition on the same (group, user) pair cannot break the
// members/requests exclusivity. The bool result reports whether the
// precondition held and the update was applied.

// AddRequest appends u to requests if u is in neither list.
func (s *Store) AddRequest(ctx context.Context, id primitive.ObjectID, u models.PostUser) (bool, error) {
	filter := bson.M{
		"_id":              id,
		"requests.user_id": bson.M{"$ne": u.UserID},
		"members.user_id":  bson.M{"$ne": u.UserID},
	}
	return s.apply(ctx, filter, bson.M{"$push": bson.M{"requests": u}})
}

// ApproveRequest moves u from requests to members if u is pending.
func (s *Store) ApproveRequest(ctx context.Context, id primitive.ObjectID, u models.PostUser) (bool, error) {
	filter := bson.M{"_id": id, "requests.user_id": u.UserID}
	return s.apply(ctx, filter, bson.M{
		"$pull": bson.M{"requests": bson.M{"user_id": u.UserID}},
		"$push": bson.M{"members": u},
	})
}

// DenyRequest removes userID from requests if pending.
func (s *Store) DenyRequest(ctx context.Context, id, userID primitive.ObjectID) (bool, error) {
	filter := bson.M{"_id": id, "requests.user_id": userID}
	return s.apply(ctx, filter, bson.M{"$pull": bson.M{"requests": bson.M{"user_id": userID}}})
}

// RemoveMember removes userID from members if present.
func (s *Store) RemoveMember(ctx context.Context, id, userID primitive.ObjectID) (bool, error) {
	filter := bson.M{"_id": id, "members.user_id": userID}
	return s.apply(ctx, filter, bson.M{"$pull": bson.M{"members": bson.M{"user_id": userID}}})
}

func (s *Store) apply(ctx context.Context, filter, upd bson.M) (bool, error) {
	upd["$set"] = bson.M{"updated_at": time.Now().UTC()}
	res, err := s.c.UpdateOne(ctx, filter, upd)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Group, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.Group{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
