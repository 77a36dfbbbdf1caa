// internal/domain/models/group.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group is a birding club.
//
// A user id appears in at most one of Members and Requests.
type Group struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Name        string             `bson:"name" json:"name"`
	NameCI      string             `bson:"name_ci" json:"-"`
	Description string             `bson:"description" json:"description"`
	Owner       PostUser           `bson:"owner" json:"owner"`
	Members     []PostUser         `bson:"members" json:"members"`
	Requests    []PostUser         `bson:"requests" json:"requests"`
	Image       string             `bson:"image,omitempty" json:"image,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// HasMember reports whether userID is in Members.
func (g Group) HasMember(userID primitive.ObjectID) bool {
	return indexOfUser(g.Members, userID) >= 0
}

// HasRequest reports whether userID is in Requests.
func (g Group) HasRequest(userID primitive.ObjectID) bool {
	return indexOfUser(g.Requests, userID) >= 0
}

// Clone returns a deep copy of g.
func (g Group) Clone() Group {
	c := g
	c.Members = cloneUsers(g.Members)
	c.Requests = cloneUsers(g.Requests)
	return c
}

// WithoutUser returns list minus every entry for userID.
func WithoutUser(list []PostUser, userID primitive.ObjectID) []PostUser {
	out := make([]PostUser, 0, len(list))
	for _, u := range list {
		if u.UserID != userID {
			out = append(out, u)
		}
	}
	return out
}

func indexOfUser(list []PostUser, userID primitive.ObjectID) int {
	for i, u := range list {
		if u.UserID == userID {
			return i
		}
	}
	return -1
}

func cloneUsers(list []PostUser) []PostUser {
	if list == nil {
		return nil
	}
	out := make([]PostUser, len(list))
	copy(out, list)
	return out
}
