package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// ContainsID reports whether id is present in ids.
func ContainsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// WithoutID returns ids with every occurrence of id removed. The result is
// a new slice; ids is not modified.
func WithoutID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func cloneIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	if ids == nil {
		return nil
	}
	out := make([]primitive.ObjectID, len(ids))
	copy(out, ids)
	return out
}
