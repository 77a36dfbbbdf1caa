// internal/domain/models/post.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post is a sighting.
type Post struct {
	ID       primitive.ObjectID  `bson:"_id" json:"id"`
	User     PostUser            `bson:"user" json:"user"`
	Header   string              `bson:"header" json:"header"`
	TextBody string              `bson:"text_body" json:"text_body"`
	Bird     *primitive.ObjectID `bson:"bird,omitempty" json:"bird,omitempty"`
	Group    *primitive.ObjectID `bson:"group,omitempty" json:"group,omitempty"`

	// Tags is free-form metadata (lat/lng, habitat, ...).
	Tags map[string]string `bson:"tags,omitempty" json:"tags,omitempty"`

	Flagged  bool                 `bson:"flagged" json:"flagged"`
	Help     bool                 `bson:"help" json:"help"`
	Likes    []primitive.ObjectID `bson:"likes" json:"likes"`
	Comments []Comment            `bson:"comments" json:"comments"`
	Image    string               `bson:"image,omitempty" json:"image,omitempty"`

	Timestamp time.Time `bson:"timestamp" json:"timestamp"`

	// BirdDetails is attached on read paths only.
	BirdDetails *Bird `bson:"-" json:"bird_details,omitempty"`
}

// Clone returns a deep copy of p.
func (p Post) Clone() Post {
	c := p
	c.Likes = cloneIDs(p.Likes)
	if p.Comments != nil {
		c.Comments = make([]Comment, len(p.Comments))
		copy(c.Comments, p.Comments)
	}
	if p.Tags != nil {
		c.Tags = make(map[string]string, len(p.Tags))
		for k, v := range p.Tags {
			c.Tags[k] = v
		}
	}
	if p.Bird != nil {
		b := *p.Bird
		c.Bird = &b
	}
	if p.Group != nil {
		g := *p.Group
		c.Group = &g
	}
	return c
}

// Comment is embedded in Post.
//
// ID is assigned internally but callers address a comment by the pair
// (User.UserID, Timestamp). Two comments by the same user in the same
// millisecond cannot be told apart through that pair.
type Comment struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	User      PostUser           `bson:"user" json:"user"`
	TextBody  string             `bson:"text_body" json:"text_body"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

// Matches reports whether c is the comment addressed by (userID, ts).
func (c Comment) Matches(userID primitive.ObjectID, ts time.Time) bool {
	return c.User.UserID == userID && c.Timestamp.Equal(ts)
}

// Now returns the current UTC time at the millisecond precision MongoDB
// stores. Timestamps used as comment keys must round-trip exactly.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
