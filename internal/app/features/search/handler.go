// Package search serves the free-text search endpoints.
package search

import (
	"net/http"

	"github.com/dalemusser/birdbook/internal/app/enrich"
	"github.com/dalemusser/birdbook/internal/app/features/shared"
	searchsvc "github.com/dalemusser/birdbook/internal/app/services/search"
	"github.com/dalemusser/birdbook/internal/app/system/jsonresp"
	"go.uber.org/zap"
)

type Handler struct {
	Search *searchsvc.Service
	Images *enrich.Images
	Log    *zap.Logger
}

func NewHandler(svc *searchsvc.Service, images *enrich.Images, logger *zap.Logger) *Handler {
	return &Handler{Search: svc, Images: images, Log: logger}
}

func query(r *http.Request) string { return r.URL.Query().Get("q") }

// All handles GET /search?q=.
func (h *Handler) All(w http.ResponseWriter, r *http.Request) {
	res, err := h.Search.All(r.Context(), query(r))
	if err != nil {
		jsonresp.FromError(w, h.Log, "search", err)
		return
	}
	h.Images.Users(r.Context(), res.Users)
	jsonresp.OK(w, res)
}

func (h *Handler) Birds(w http.ResponseWriter, r *http.Request) {
	bs, err := h.Search.Birds(r.Context(), query(r))
	respond(w, h.Log, "search birds", bs, err)
}

func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	us, err := h.Search.Users(r.Context(), query(r))
	if err == nil {
		h.Images.Users(r.Context(), us)
	}
	respond(w, h.Log, "search users", us, err)
}

func (h *Handler) Posts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Search.Posts(r.Context(), query(r))
	respond(w, h.Log, "search posts", ps, err)
}

func (h *Handler) Groups(w http.ResponseWriter, r *http.Request) {
	gs, err := h.Search.Groups(r.Context(), query(r))
	respond(w, h.Log, "search groups", gs, err)
}

// Friends handles GET /search/friends?q= for the caller.
func (h *Handler) Friends(w http.ResponseWriter, r *http.Request) {
	us, err := h.Search.Friends(r.Context(), shared.Actor(r).ID, query(r))
	if err == nil {
		h.Images.Users(r.Context(), us)
	}
	respond(w, h.Log, "search friends", us, err)
}

// MyGroups handles GET /search/my-groups?q= for the caller.
func (h *Handler) MyGroups(w http.ResponseWriter, r *http.Request) {
	gs, err := h.Search.MyGroups(r.Context(), shared.Actor(r).ID, query(r))
	respond(w, h.Log, "search my groups", gs, err)
}

func respond[T any](w http.ResponseWriter, log *zap.Logger, op string, out []T, err error) {
	if err != nil {
		jsonresp.FromError(w, log, op, err)
		return
	}
	jsonresp.OK(w, out)
}
