package users

import (
	authsys "github.com/dalemusser/birdbook/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /users. Every route needs a signed-in caller;
// ownership and role checks happen in the service.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authsys.RequireSignedIn)

	r.Get("/", h.List)
	r.Get("/search", h.Search)
	r.Post("/onboard", h.Onboard)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Patch("/", h.Update)
		r.Delete("/", h.Delete)
		r.Patch("/role", h.ChangeRole)

		r.Get("/friends", h.Friends)
		r.Put("/friends/{friendId}", h.AddFriend)
		r.Delete("/friends/{friendId}", h.RemoveFriend)

		r.Get("/groups", h.Groups)
		r.Get("/posts", h.Posts)
		r.Get("/feed", h.Feed)
		r.Get("/stats", h.Stats)
		r.Get("/top-birds", h.TopBirds)
	})
	return r
}
