package internalapi

import "github.com/go-chi/chi/v5"

// Routes mounts under /internal.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(h.RequireToken)
	r.Get("/users/{id}", h.GetUser)
	r.Put("/users/{id}/posts/{postId}", h.AddPost)
	r.Put("/users/{id}/groups/{groupId}", h.AddGroup)
	return r
}
