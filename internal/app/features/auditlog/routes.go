// internal/app/features/auditlog/routes.go
package auditlog

import (
	authsys "github.com/dalemusser/birdbook/internal/app/system/auth"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /audit. Admins and supers only.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authsys.RequireRole(models.RoleAdmin, models.RoleSuper))
	r.Get("/", h.ServeList)
	return r
}
