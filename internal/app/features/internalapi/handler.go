// Package internalapi exposes the user ledger to the post and group
// services of a split deployment. Every route needs the shared token.
package internalapi

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/dalemusser/birdbook/internal/app/client/userclient"
	"github.com/dalemusser/birdbook/internal/app/features/shared"
	"github.com/dalemusser/birdbook/internal/app/system/jsonresp"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Ledger is the part of the user service the internal routes drive.
type Ledger interface {
	Snapshot(ctx context.Context, id primitive.ObjectID) (models.PostUser, error)
	AddPost(ctx context.Context, userID, postID primitive.ObjectID) error
	AddGroup(ctx context.Context, userID, groupID primitive.ObjectID) error
}

type Handler struct {
	Ledger Ledger
	Token  string
	Log    *zap.Logger
}

func NewHandler(ledger Ledger, token string, logger *zap.Logger) *Handler {
	return &Handler{Ledger: ledger, Token: token, Log: logger}
}

// RequireToken rejects requests whose X-Internal-Token does not match. An
// empty configured token rejects everything.
func (h *Handler) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(userclient.TokenHeader)
		if h.Token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.Token)) != 1 {
			h.Log.Warn("internal call rejected", zap.String("path", r.URL.Path))
			jsonresp.Unauthorized(w, "invalid internal token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetUser handles GET /internal/users/{id}.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		jsonresp.FromError(w, h.Log, "internal get user", err)
		return
	}
	pu, err := h.Ledger.Snapshot(r.Context(), id)
	if err != nil {
		jsonresp.FromError(w, h.Log, "internal get user", err)
		return
	}
	jsonresp.OK(w, pu)
}

// AddPost handles PUT /internal/users/{id}/posts/{postId}.
func (h *Handler) AddPost(w http.ResponseWriter, r *http.Request) {
	h.appendRef(w, r, "postId", "internal add post", h.Ledger.AddPost)
}

// AddGroup handles PUT /internal/users/{id}/groups/{groupId}.
func (h *Handler) AddGroup(w http.ResponseWriter, r *http.Request) {
	h.appendRef(w, r, "groupId", "internal add group", h.Ledger.AddGroup)
}

func (h *Handler) appendRef(w http.ResponseWriter, r *http.Request, param, op string,
	add func(ctx context.Context, userID, refID primitive.ObjectID) error) {
	userID, err := shared.ObjectID(r, "id")
	if err != nil {
		jsonresp.FromError(w, h.Log, op, err)
		return
	}
	refID, err := shared.ObjectID(r, param)
	if err != nil {
		jsonresp.FromError(w, h.Log, op, err)
		return
	}
	if err := add(r.Context(), userID, refID); err != nil {
		jsonresp.FromError(w, h.Log, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
