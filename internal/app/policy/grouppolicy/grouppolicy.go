// internal/app/policy/grouppolicy/grouppolicy.go
package grouppolicy

import (
	"github.com/dalemusser/birdbook/internal/app/system/authz"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IsOwner reports whether the actor created g.
func IsOwner(a authz.Actor, g models.Group) bool {
	return a.Is(g.Owner.UserID)
}

// CanManage reports whether the actor may edit or delete g and decide on
// its join requests: the owner, or any ADMIN/SUPER.
func CanManage(a authz.Actor, g models.Group) bool {
	return IsOwner(a, g) || a.IsAdmin()
}

// CanRemoveMember reports whether the actor may remove userID from g.
// Managers may remove anyone; a member may remove themselves (leave).
func CanRemoveMember(a authz.Actor, g models.Group, userID primitive.ObjectID) bool {
	return CanManage(a, g) || a.Is(userID)
}

// CanSeeRequests reports whether the actor may list pending join requests.
func CanSeeRequests(a authz.Actor, g models.Group) bool {
	return CanManage(a, g)
}
