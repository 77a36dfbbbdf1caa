// internal/app/system/authz/roles.go
package authz

import (
	"net/http"
	"strings"

	"github.com/dalemusser/birdbook/internal/domain/models"
)

// HasAnyRole reports whether the current request's user has any of the given roles.
// Returns false if no user is present (i.e., not signed in).
func HasAnyRole(r *http.Request, roles ...string) bool {
	role, _, _, ok := UserCtx(r)
	if !ok {
		return false
	}
	for _, want := range roles {
		if role == strings.ToUpper(strings.TrimSpace(want)) {
			return true
		}
	}
	return false
}

// HasRole is a convenience wrapper for a single role.
func HasRole(r *http.Request, role string) bool {
	return HasAnyRole(r, role)
}

// Role returns the current user's role and whether a user is present.
func Role(r *http.Request) (string, bool) {
	role, _, _, ok := UserCtx(r)
	return role, ok
}

// ValidRole reports whether role names one of the known roles.
func ValidRole(role string) bool {
	switch strings.ToUpper(strings.TrimSpace(role)) {
	case models.RoleBasic, models.RoleAdmin, models.RoleSuper:
		return true
	}
	return false
}
