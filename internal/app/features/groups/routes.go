package groups

import (
	authsys "github.com/dalemusser/birdbook/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /groups.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authsys.RequireSignedIn)

	r.Get("/", h.List)
	r.Post("/", h.Create)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Delete("/", h.Delete)

		r.Get("/members", h.Members)
		r.Delete("/members/{userId}", h.RemoveMember)

		r.Get("/join-requests", h.Requests)
		r.Post("/join-requests", h.RequestToJoin)
		r.Put("/join-requests/{userId}/approve", h.Approve)
		r.Put("/join-requests/{userId}/deny", h.Deny)
	})
	return r
}
