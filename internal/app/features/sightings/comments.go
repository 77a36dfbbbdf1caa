package sightings

import (
	"net/http"

	"github.com/dalemusser/birdbook/internal/app/features/shared"
	"github.com/dalemusser/birdbook/internal/app/system/apperr"
	"github.com/dalemusser/birdbook/internal/app/system/jsonresp"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Comments are addressed by (author, timestamp). The author is always the
// caller; the timestamp comes from the body or the ?timestamp= query.

// AddComment handles POST /sightings/{id}/comments with {"textBody": "..."}.
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	id, form, ok := h.commentRequest(w, r, "add comment")
	if !ok {
		return
	}
	p, err := h.Posts.AddComment(r.Context(), shared.Actor(r), id, form.Get("textBody"))
	h.one(w, "add comment", p, err)
}

// UpdateComment handles PATCH /sightings/{id}/comments with
// {"timestamp": "...", "textBody": "..."}.
func (h *Handler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	id, form, ok := h.commentRequest(w, r, "update comment")
	if !ok {
		return
	}
	ts, err := shared.Timestamp("timestamp", commentTimestamp(r, form))
	if err != nil {
		jsonresp.FromError(w, h.Log, "update comment", err)
		return
	}
	p, err := h.Posts.UpdateComment(r.Context(), shared.Actor(r), id, ts, form.Get("textBody"))
	h.one(w, "update comment", p, err)
}

// DeleteComment handles DELETE /sightings/{id}/comments. Every comment by
// the caller with the given timestamp is removed.
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	id, form, ok := h.commentRequest(w, r, "delete comment")
	if !ok {
		return
	}
	ts, err := shared.Timestamp("timestamp", commentTimestamp(r, form))
	if err != nil {
		jsonresp.FromError(w, h.Log, "delete comment", err)
		return
	}
	p, err := h.Posts.DeleteComment(r.Context(), shared.Actor(r), id, ts)
	h.one(w, "delete comment", p, err)
}

func (h *Handler) commentRequest(w http.ResponseWriter, r *http.Request, op string) (primitive.ObjectID, *shared.Form, bool) {
	if shared.Actor(r).Anonymous() {
		jsonresp.FromError(w, h.Log, op, apperr.ErrUnauthorized)
		return primitive.NilObjectID, nil, false
	}
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		jsonresp.FromError(w, h.Log, op, err)
		return primitive.NilObjectID, nil, false
	}
	form, err := shared.ReadForm(w, r)
	if err != nil {
		jsonresp.FromError(w, h.Log, op, err)
		return primitive.NilObjectID, nil, false
	}
	return id, form, true
}

func commentTimestamp(r *http.Request, form *shared.Form) string {
	if v := form.Get("timestamp"); v != "" {
		return v
	}
	return r.URL.Query().Get("timestamp")
}
