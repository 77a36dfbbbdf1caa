// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	for _, set := range []struct {
		coll   string
		models []mongo.IndexModel
	}{
		{"users", userIndexes()},
		{"posts", postIndexes()},
		{"groups", groupIndexes()},
		{"birds", birdIndexes()},
		{"audit_events", auditIndexes()},
	} {
		if err := ensureIndexSet(ctx, db.Collection(set.coll), set.models); err != nil {
			problems = append(problems, set.coll+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func userIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		// login and signup conflict detection
		{
			Keys:    bson.D{{Key: "username_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_usernameci"),
		},
		// friends-of lookups and the reference audit
		{
			Keys:    bson.D{{Key: "friends", Value: 1}},
			Options: options.Index().SetName("idx_users_friends"),
		},
	}
}

func postIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		// newest-first global feed
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_posts_timestamp__id"),
		},
		// a user's sightings, stats
		{
			Keys:    bson.D{{Key: "user.user_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_posts_userid_timestamp"),
		},
		// a group's sightings
		{
			Keys:    bson.D{{Key: "group", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_posts_group_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "bird", Value: 1}},
			Options: options.Index().SetName("idx_posts_bird"),
		},
	}
}

func groupIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_groups_nameci__id"),
		},
		// "my groups" and the membership transitions' filters
		{
			Keys:    bson.D{{Key: "members.user_id", Value: 1}},
			Options: options.Index().SetName("idx_groups_members_userid"),
		},
		{
			Keys:    bson.D{{Key: "owner.user_id", Value: 1}},
			Options: options.Index().SetName("idx_groups_owner_userid"),
		},
	}
}

func birdIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "common_name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_birds_commonnameci__id"),
		},
		{
			Keys:    bson.D{{Key: "scientific_name", Value: 1}},
			Options: options.Index().SetName("idx_birds_scientificname"),
		},
	}
}

func auditIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_userid_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "category", Value: 1}, {Key: "event_type", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_category_eventtype_timestamp"),
		},
	}
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

// desired is one wanted index, flattened for comparison and logging.
type desired struct {
	model  mongo.IndexModel
	name   string
	unique bool
	sig    string
}

func describe(m mongo.IndexModel) desired {
	d := desired{model: m, sig: keySig(m.Keys.(bson.D))}
	if m.Options != nil {
		if m.Options.Name != nil {
			d.name = *m.Options.Name
		}
		if m.Options.Unique != nil {
			d.unique = *m.Options.Unique
		}
	}
	return d
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func isUnique(b *bool) bool {
	return b != nil && *b
}

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

// Mongo/DocDB returns IndexOptionsConflict when an index with the same keys
// already exists under a different name or with different options.
func isOptionsConflictErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "IndexOptionsConflict")
}

func listExisting(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	out := map[string]existingIndex{}
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return out
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		out[keySig(idx.Key)] = idx
	}
	return out
}

// createErr words a CreateOne failure; unique indexes over duplicated data
// get a finder query for the usual culprit.
func createErr(coll string, d desired, err error) error {
	if isDuplicateKeyErr(err) && d.unique {
		hint := ""
		if coll == "users" && strings.Contains(d.sig, "username_ci:1") {
			hint = "; find them with " +
				`db.users.aggregate([{ $group: { _id: "$username_ci", n: { $sum: 1 } } }, { $match: { n: { $gt: 1 } } }])`
		}
		return fmt.Errorf("%s(%s): cannot create unique index (duplicates present)%s", coll, d.name, hint)
	}
	return fmt.Errorf("%s(%s): %v", coll, d.name, err)
}

// recreate drops ex and creates d in its place.
func recreate(ctx context.Context, coll *mongo.Collection, ex existingIndex, d desired) error {
	if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
		return fmt.Errorf("%s(%s): drop %s failed: %v", coll.Name(), d.name, ex.Name, err)
	}
	if _, err := coll.Indexes().CreateOne(ctx, d.model); err != nil {
		return createErr(coll.Name(), d, err)
	}
	return nil
}

func ensureOne(ctx context.Context, coll *mongo.Collection, d desired) error {
	start := time.Now()
	fields := []zap.Field{
		zap.String("collection", coll.Name()),
		zap.String("name", d.name),
		zap.String("keys", d.sig),
		zap.Bool("unique", d.unique),
	}
	zap.L().Info("ensuring index", fields...)

	if ex, ok := listExisting(ctx, coll)[d.sig]; ok {
		switch {
		case isUnique(ex.Unique) == d.unique && (d.name == "" || ex.Name == d.name):
			zap.L().Info("reusing existing index", append(fields, zap.Duration("took", time.Since(start)))...)
			return nil
		case isUnique(ex.Unique) == d.unique:
			zap.L().Info("renaming index to align with desired name", append(fields, zap.String("from", ex.Name))...)
		default:
			zap.L().Info("options differ; recreating index", append(fields, zap.String("existing", ex.Name))...)
		}
		if err := recreate(ctx, coll, ex, d); err != nil {
			zap.L().Warn("index recreate failed", append(fields, zap.Error(err))...)
			return err
		}
		zap.L().Info("index recreated", append(fields, zap.Duration("took", time.Since(start)))...)
		return nil
	}

	created, err := coll.Indexes().CreateOne(ctx, d.model)
	if err == nil {
		zap.L().Info("index ensured", append(fields,
			zap.String("created_name", created),
			zap.Duration("took", time.Since(start)))...)
		return nil
	}

	// Lost a race with another instance, or a conflicting definition
	// appeared between List and CreateOne.
	if isOptionsConflictErr(err) {
		if ex, ok := listExisting(ctx, coll)[d.sig]; ok {
			if isUnique(ex.Unique) == d.unique {
				zap.L().Info("reusing existing index (post-conflict)", append(fields, zap.String("existing", ex.Name))...)
				return nil
			}
			if rerr := recreate(ctx, coll, ex, d); rerr != nil {
				return rerr
			}
			zap.L().Info("index recreated (post-conflict)", fields...)
			return nil
		}
	}

	zap.L().Warn("index ensure failed", append(fields,
		zap.Duration("took", time.Since(start)),
		zap.Error(err))...)
	return createErr(coll.Name(), d, err)
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string
	for _, m := range models {
		if err := ensureOne(ctx, coll, describe(m)); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
