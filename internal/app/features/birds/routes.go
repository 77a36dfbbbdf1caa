package birds

import (
	authsys "github.com/dalemusser/birdbook/internal/app/system/auth"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /birds. Reads are public; writes need an admin.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/search", h.Search)
	r.Get("/{id}", h.Get)

	r.Group(func(pr chi.Router) {
		pr.Use(authsys.RequireRole(models.RoleAdmin, models.RoleSuper))
		pr.Post("/", h.Create)
		pr.Patch("/{id}", h.Update)
		pr.Delete("/{id}", h.Delete)
	})
	return r
}
