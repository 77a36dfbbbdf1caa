package search

import (
	authsys "github.com/dalemusser/birdbook/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /search.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authsys.RequireSignedIn)
	r.Get("/", h.All)
	r.Get("/birds", h.Birds)
	r.Get("/users", h.Users)
	r.Get("/posts", h.Posts)
	r.Get("/groups", h.Groups)
	r.Get("/friends", h.Friends)
	r.Get("/my-groups", h.MyGroups)
	return r
}
