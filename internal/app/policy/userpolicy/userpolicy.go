// internal/app/policy/userpolicy/userpolicy.go
package userpolicy

import (
	"github.com/dalemusser/birdbook/internal/app/system/authz"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CanEdit reports whether the actor may change the profile of userID.
// Only the user themselves can.
func CanEdit(a authz.Actor, userID primitive.ObjectID) bool {
	return a.Is(userID)
}

// CanDelete mirrors CanEdit.
func CanDelete(a authz.Actor, userID primitive.ObjectID) bool {
	return a.Is(userID)
}

// CanManageFriends reports whether the actor may add or remove friends on
// userID's list.
func CanManageFriends(a authz.Actor, userID primitive.ObjectID) bool {
	return a.Is(userID) || a.IsAdmin()
}

// CanChangeRole is SUPER only.
func CanChangeRole(a authz.Actor) bool {
	return a.IsSuper()
}
