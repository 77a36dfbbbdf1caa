// internal/app/system/authz/authz.go
package authz

import (
	"net/http"
	"strings"

	"github.com/dalemusser/birdbook/internal/app/system/auth"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actor is the authenticated caller as seen by the service layer.
// The zero Actor is anonymous.
type Actor struct {
	ID   primitive.ObjectID
	Role string
}

// IsAdmin reports whether the actor holds ADMIN or SUPER.
func (a Actor) IsAdmin() bool {
	r := strings.ToUpper(a.Role)
	return r == models.RoleAdmin || r == models.RoleSuper
}

// IsSuper reports whether the actor holds SUPER.
func (a Actor) IsSuper() bool {
	return strings.ToUpper(a.Role) == models.RoleSuper
}

// Is reports whether the actor is the user id.
func (a Actor) Is(id primitive.ObjectID) bool {
	return !a.ID.IsZero() && a.ID == id
}

// Anonymous reports whether no user is behind the actor.
func (a Actor) Anonymous() bool {
	return a.ID.IsZero()
}

// ActorFrom builds an Actor from the request's session user.
func ActorFrom(r *http.Request) (Actor, bool) {
	role, _, id, ok := UserCtx(r)
	if !ok {
		return Actor{}, false
	}
	return Actor{ID: id, Role: role}, true
}

// UserCtx returns the user's role (uppercased), username, Mongo ObjectID, and a found flag.
// If no user is present in context or the user ID is malformed, it returns
// "", "", NilObjectID, false so ok=true always means a usable ObjectID.
func UserCtx(r *http.Request) (role string, name string, userID primitive.ObjectID, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return "", "", primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		// fail closed on a corrupt subject
		return "", "", primitive.NilObjectID, false
	}
	return strings.ToUpper(user.Role), user.Username, userID, true
}

// IsAdmin reports whether the current request's user is an admin.
// SUPER counts as admin for permission purposes.
func IsAdmin(r *http.Request) bool {
	a, ok := ActorFrom(r)
	return ok && a.IsAdmin()
}

// IsSuper reports whether the current request's user is SUPER.
func IsSuper(r *http.Request) bool {
	a, ok := ActorFrom(r)
	return ok && a.IsSuper()
}
