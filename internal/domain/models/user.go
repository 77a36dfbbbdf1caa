// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles. Stored upper-case to match the tokens issued at login.
const (
	RoleBasic = "BASIC"
	RoleAdmin = "ADMIN"
	RoleSuper = "SUPER"
)

// User is a birdbook account.
//
// NOTE:
//   - Friends, Posts and Groups are denormalized back-reference arrays.
//     They are appended to by propagation calls from the post and group
//     services and are never cleaned up when the referenced entity is
//     deleted, so they may hold stale ids.
//   - Friendship is one-directional: adding F to U.Friends does not touch
//     F.Friends.
type User struct {
	ID           primitive.ObjectID `bson:"_id" json:"id"`
	Username     string             `bson:"username" json:"username"`
	UsernameCI   string             `bson:"username_ci" json:"-"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Role         string             `bson:"role" json:"role"` // BASIC | ADMIN | SUPER

	FirstName          string `bson:"first_name" json:"first_name"`
	LastName           string `bson:"last_name" json:"last_name"`
	Location           string `bson:"location" json:"location"`
	ProfilePic         string `bson:"profile_pic" json:"profile_pic"`
	OnboardingComplete bool   `bson:"onboarding_complete" json:"onboarding_complete"`

	Friends []primitive.ObjectID `bson:"friends" json:"friends"`
	Posts   []primitive.ObjectID `bson:"posts" json:"posts"`
	Groups  []primitive.ObjectID `bson:"groups" json:"groups"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Snapshot returns the lightweight copy embedded on posts, comments and groups.
func (u User) Snapshot() PostUser {
	return PostUser{UserID: u.ID, Username: u.Username, ProfilePic: u.ProfilePic}
}

// Clone returns a deep copy. The arrays are copied so the clone can be
// mutated without aliasing the original.
func (u User) Clone() User {
	c := u
	c.Friends = cloneIDs(u.Friends)
	c.Posts = cloneIDs(u.Posts)
	c.Groups = cloneIDs(u.Groups)
	return c
}

// PostUser is an embedded user snapshot. It is a copy taken at write time,
// not a live reference, and goes stale when the user edits their profile.
type PostUser struct {
	UserID     primitive.ObjectID `bson:"user_id" json:"user_id"`
	Username   string             `bson:"username" json:"username"`
	ProfilePic string             `bson:"profile_pic" json:"profile_pic"`
}
