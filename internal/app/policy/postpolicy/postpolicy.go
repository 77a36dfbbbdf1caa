// internal/app/policy/postpolicy/postpolicy.go
package postpolicy

import (
	"github.com/dalemusser/birdbook/internal/app/system/authz"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IsAuthor reports whether the actor wrote p.
func IsAuthor(a authz.Actor, p models.Post) bool {
	return a.Is(p.User.UserID)
}

// CanEdit: the author or ADMIN/SUPER.
func CanEdit(a authz.Actor, p models.Post) bool {
	return IsAuthor(a, p) || a.IsAdmin()
}

// CanDelete: the author or ADMIN/SUPER.
func CanDelete(a authz.Actor, p models.Post) bool {
	return IsAuthor(a, p) || a.IsAdmin()
}

// CanMarkHelp: the author or ADMIN/SUPER may ask for (or withdraw) an
// identification request.
func CanMarkHelp(a authz.Actor, p models.Post) bool {
	return IsAuthor(a, p) || a.IsAdmin()
}

// CanFlag: moderation is ADMIN/SUPER only.
func CanFlag(a authz.Actor) bool {
	return a.IsAdmin()
}

// CanLikeAs reports whether the actor may like or unlike on behalf of userID.
func CanLikeAs(a authz.Actor, userID primitive.ObjectID) bool {
	return a.Is(userID) || a.IsAdmin()
}
