package auth

import (
	authsys "github.com/dalemusser/birdbook/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.Login)
	r.Post("/signup", h.Signup)
	r.Post("/logout", h.Logout)

	r.Group(func(pr chi.Router) {
		pr.Use(authsys.RequireSignedIn)
		pr.Get("/me", h.Me)
	})
	return r
}
