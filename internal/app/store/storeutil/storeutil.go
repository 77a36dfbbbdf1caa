// Package storeutil holds query helpers shared by the Mongo stores.
package storeutil

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ExistingIDs returns the subset of ids that still have a document in c.
func ExistingIDs(ctx context.Context, c *mongo.Collection, ids []primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	out := make(map[primitive.ObjectID]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.ID] = true
	}
	return out, cur.Err()
}

// Exists reports whether c holds a document with id.
func Exists(ctx context.Context, c *mongo.Collection, id primitive.ObjectID) (bool, error) {
	n, err := c.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
