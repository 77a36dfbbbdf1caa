// internal/app/store/posts/poststore.go
package poststore

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/dalemusser/birdbook/internal/app/store/storeutil"
	"github.com/dalemusser/birdbook/internal/app/system/apperr"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("posts")}
}

var newestFirst = bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Post, error) {
	var p models.Post
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Post{}, fmt.Errorf("post %s: %w", id.Hex(), apperr.ErrNotFound)
		}
		return models.Post{}, err
	}
	return p, nil
}

// GetByIDs returns the posts in ids that still exist, newest first.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Post, error) {
	if len(ids) == 0 {
		return []models.Post{}, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find().SetSort(newestFirst))
}

// Create inserts a post. The caller sets the author snapshot; ID, timestamp
// and empty likes/comments are filled in here.
func (s *Store) Create(ctx context.Context, p models.Post) (models.Post, error) {
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
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		return models.Post{}, err
	}
	return p, nil
}

// Save replaces the whole document (upsert).
func (s *Store) Save(ctx context.Context, p models.Post) error {
	_, err := s.c.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, options.Replace().SetUpsert(true))
	return err
}

// Delete removes a post by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *Store) Exists(ctx context.Context, id primitive.ObjectID) (bool, error) {
	return storeutil.Exists(ctx, s.c, id)
}

// ExistingIDs returns the subset of ids that still have a post document.
func (s *Store) ExistingIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	return storeutil.ExistingIDs(ctx, s.c, ids)
}

// List returns all posts, newest first.
func (s *Store) List(ctx context.Context) ([]models.Post, error) {
	return s.find(ctx, bson.M{}, options.Find().SetSort(newestFirst))
}

// ByUser returns the posts whose author snapshot is userID.
func (s *Store) ByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Post, error) {
	return s.find(ctx, bson.M{"user.user_id": userID}, options.Find().SetSort(newestFirst))
}

// ByGroup returns the posts shared to groupID.
func (s *Store) ByGroup(ctx context.Context, groupID primitive.ObjectID) ([]models.Post, error) {
	return s.find(ctx, bson.M{"group": groupID}, options.Find().SetSort(newestFirst))
}

// ByTags returns posts carrying every key/value pair in tags.
func (s *Store) ByTags(ctx context.Context, tags map[string]string) ([]models.Post, error) {
	filter := bson.M{}
	for k, v := range tags {
		filter["tags."+k] = v
	}
	return s.find(ctx, filter, options.Find().SetSort(newestFirst))
}

// Search matches posts whose header or body contains q (case-insensitive).
func (s *Store) Search(ctx context.Context, q string, limit int64) ([]models.Post, error) {
	re := primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
	filter := bson.M{"$or": bson.A{
		bson.M{"header": bson.M{"$regex": re}},
		bson.M{"text_body": bson.M{"$regex": re}},
	}}
	return s.find(ctx, filter, options.Find().SetSort(newestFirst).SetLimit(limit))
}

/* -------------------------------------------------------------------------- */
/* Atomic updates                                                              */
/* -------------------------------------------------------------------------- */

// AddLike adds userID to likes unless already present.
func (s *Store) AddLike(ctx context.Context, id, userID primitive.ObjectID) error {
	return s.update(ctx, id, bson.M{"$addToSet": bson.M{"likes": userID}})
}

// RemoveLike removes userID from likes. Absent is not an error.
func (s *Store) RemoveLike(ctx context.Context, id, userID primitive.ObjectID) error {
	return s.update(ctx, id, bson.M{"$pull": bson.M{"likes": userID}})
}

// PushComment appends c to the post's comments.
func (s *Store) PushComment(ctx context.Context, id primitive.ObjectID, c models.Comment) error {
	return s.update(ctx, id, bson.M{"$push": bson.M{"comments": c}})
}

// SetCommentText sets the text of the first comment matching
// (userID, ts). The bool result reports whether one matched.
func (s *Store) SetCommentText(ctx context.Context, id, userID primitive.ObjectID, ts time.Time, textBody string) (bool, error) {
	filter := bson.M{
		"_id":      id,
		"comments": bson.M{"$elemMatch": bson.M{"user.user_id": userID, "timestamp": ts}},
	}
	res, err := s.c.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"comments.$.text_body": textBody}})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// PullComments removes every comment matching (userID, ts).
func (s *Store) PullComments(ctx context.Context, id, userID primitive.ObjectID, ts time.Time) (bool, error) {
	filter := bson.M{
		"_id":      id,
		"comments": bson.M{"$elemMatch": bson.M{"user.user_id": userID, "timestamp": ts}},
	}
	res, err := s.c.UpdateOne(ctx, filter, bson.M{"$pull": bson.M{"comments": bson.M{"user.user_id": userID, "timestamp": ts}}})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// UpdateContent sets the editable scalar fields of p without touching
// likes or comments.
func (s *Store) UpdateContent(ctx context.Context, p models.Post) error {
	set := bson.M{
		"header":    p.Header,
		"text_body": p.TextBody,
		"tags":      p.Tags,
		"image":     p.Image,
	}
	unset := bson.M{}
	if p.Bird != nil {
		set["bird"] = *p.Bird
	} else {
		unset["bird"] = ""
	}
	if p.Group != nil {
		set["group"] = *p.Group
	} else {
		unset["group"] = ""
	}
	upd := bson.M{"$set": set}
	if len(unset) > 0 {
		upd["$unset"] = unset
	}
	return s.update(ctx, p.ID, upd)
}

// SetFlagged sets the moderation flag.
func (s *Store) SetFlagged(ctx context.Context, id primitive.ObjectID, v bool) error {
	return s.update(ctx, id, bson.M{"$set": bson.M{"flagged": v}})
}

// SetHelp sets the "needs identification help" marker.
func (s *Store) SetHelp(ctx context.Context, id primitive.ObjectID, v bool) error {
	return s.update(ctx, id, bson.M{"$set": bson.M{"help": v}})
}

func (s *Store) update(ctx context.Context, id primitive.ObjectID, upd bson.M) error {
	res, err := s.c.UpdateByID(ctx, id, upd)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("post %s: %w", id.Hex(), apperr.ErrNotFound)
	}
	return nil
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Post, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.Post{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
