package userstore

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/dalemusser/birdbook/internal/app/store/storeutil"
	"github.com/dalemusser/birdbook/internal/app/system/apperr"
	"github.com/dalemusser/birdbook/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
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
	return &Store{c: db.Collection("users")}
}

// GetByID loads a user by ObjectID. Returns apperr.ErrNotFound if absent.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return models.User{}, notFound(err, id)
	}
	return u, nil
}

// GetByIDs loads every user in ids that still exists. Missing ids are skipped.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find().SetSort(bson.D{{Key: "username_ci", Value: 1}}))
}

// GetByUsername looks up a user by case-insensitive username.
func (s *Store) GetByUsername(ctx context.Context, username string) (models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"username_ci": text.Fold(username)}).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.User{}, fmt.Errorf("user %q: %w", username, apperr.ErrNotFound)
		}
		return models.User{}, err
	}
	return u, nil
}

// Create inserts a new user with empty back-reference arrays.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	now := time.Now().UTC()
	u.ID = primitive.NewObjectID()
	u.UsernameCI = text.Fold(u.Username)
	if u.Role == "" {
		u.Role = models.RoleBasic
	}
	u.Friends = []primitive.ObjectID{}
	u.Posts = []primitive.ObjectID{}
	u.Groups = []primitive.ObjectID{}
	u.CreatedAt = now
	u.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, apperr.ErrDuplicateUsername
		}
		return models.User{}, err
	}
	return u, nil
}

// Save writes the whole document back (upsert). Concurrent Saves of the
// same user are last-writer-wins.
func (s *Store) Save(ctx context.Context, u models.User) error {
	u.UsernameCI = text.Fold(u.Username)
	u.UpdatedAt = time.Now().UTC()
	_, err := s.c.ReplaceOne(ctx, bson.M{"_id": u.ID}, u, options.Replace().SetUpsert(true))
	if err != nil && wafflemongo.IsDup(err) {
		return apperr.ErrDuplicateUsername
	}
	return err
}

// Delete removes a user by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Exists reports whether a user with id exists.
func (s *Store) Exists(ctx context.Context, id primitive.ObjectID) (bool, error) {
	return storeutil.Exists(ctx, s.c, id)
}

// ExistingIDs returns the subset of ids that still have a user document.
func (s *Store) ExistingIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	return storeutil.ExistingIDs(ctx, s.c, ids)
}

// List returns all users ordered by username.
func (s *Store) List(ctx context.Context) ([]models.User, error) {
	return s.find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "username_ci", Value: 1}}))
}

// Search matches usernames containing q (case-insensitive).
func (s *Store) Search(ctx context.Context, q string, limit int64) ([]models.User, error) {
	filter := bson.M{"username": bson.M{"$regex": primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}}}
	return s.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "username_ci", Value: 1}}).SetLimit(limit))
}

/* -------------------------------------------------------------------------- */
/* Atomic back-reference updates                                               */
/* -------------------------------------------------------------------------- */

// PushFriend appends friendID to the user's friends. Like the
// read-modify-write path it does not check for duplicates.
func (s *Store) PushFriend(ctx context.Context, id, friendID primitive.ObjectID) error {
	return s.update(ctx, id, bson.M{"$push": bson.M{"friends": friendID}})
}

// PullFriend removes every occurrence of friendID. A missing friend is not an error.
func (s *Store) PullFriend(ctx context.Context, id, friendID primitive.ObjectID) error {
	return s.update(ctx, id, bson.M{"$pull": bson.M{"friends": friendID}})
}

// PushPost appends postID to the user's posts.
func (s *Store) PushPost(ctx context.Context, id, postID primitive.ObjectID) error {
	return s.update(ctx, id, bson.M{"$push": bson.M{"posts": postID}})
}

// PushGroup appends groupID to the user's groups.
func (s *Store) PushGroup(ctx context.Context, id, groupID primitive.ObjectID) error {
	return s.update(ctx, id, bson.M{"$push": bson.M{"groups": groupID}})
}

func (s *Store) update(ctx context.Context, id primitive.ObjectID, upd bson.M) error {
	res, err := s.c.UpdateByID(ctx, id, upd)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", id.Hex(), apperr.ErrNotFound)
	}
	return nil
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.User, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.User{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func notFound(err error, id primitive.ObjectID) error {
	if err == mongo.ErrNoDocuments {
		return fmt.Errorf("user %s: %w", id.Hex(), apperr.ErrNotFound)
	}
	return err
}
