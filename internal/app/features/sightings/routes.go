package sightings

import (
	authsys "github.com/dalemusser/birdbook/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /sightings.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authsys.RequireSignedIn)

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/user/{userId}", h.FriendsFeed)
	r.Get("/group/{groupId}", h.ByGroup)
	r.Get("/tags", h.ByTags)

	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)

	r.Post("/{id}/comments", h.AddComment)
	r.Patch("/{id}/comments", h.UpdateComment)
	r.Delete("/{id}/comments", h.DeleteComment)

	r.Get("/{id}/likes", h.Likers)
	r.Put("/{id}/like/{userId}", h.Like)
	r.Put("/{id}/unlike/{userId}", h.Unlike)
	r.Put("/{id}/flag", h.Flag)
	r.Put("/{id}/unflag", h.Unflag)
	r.Put("/{id}/help", h.Help)
	r.Put("/{id}/help/remove", h.RemoveHelp)
	return r
}
