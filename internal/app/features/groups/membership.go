package groups

import (
	"net/http"

	"github.com/dalemusser/birdbook/internal/app/features/shared"
	"github.com/dalemusser/birdbook/internal/app/system/jsonresp"
)

// RequestToJoin handles POST /groups/{id}/join-requests for the caller.
func (h *Handler) RequestToJoin(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		jsonresp.FromError(w, h.Log, "request to join", err)
		return
	}
	g, err := h.Groups.RequestToJoin(r.Context(), shared.Actor(r), id)
	h.group(w, "request to join", g, err)
}

// Approve handles PUT /groups/{id}/join-requests/{userId}/approve.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	groupID, userID, err := memberParams(r)
	if err != nil {
		jsonresp.FromError(w, h.Log, "approve request", err)
		return
	}
	g, err := h.Groups.Approve(r.Context(), shared.Actor(r), groupID, userID)
	h.group(w, "approve request", g, err)
}

// Deny handles PUT /groups/{id}/join-requests/{userId}/deny.
func (h *Handler) Deny(w http.ResponseWriter, r *http.Request) {
	groupID, userID, err := memberParams(r)
	if err != nil {
		jsonresp.FromError(w, h.Log, "deny request", err)
		return
	}
	g, err := h.Groups.Deny(r.Context(), shared.Actor(r), groupID, userID)
	h.group(w, "deny request", g, err)
}

// RemoveMember handles DELETE /groups/{id}/members/{userId}. Members may
// remove themselves.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	groupID, userID, err := memberParams(r)
	if err != nil {
		jsonresp.FromError(w, h.Log, "remove member", err)
		return
	}
	g, err := h.Groups.RemoveMember(r.Context(), shared.Actor(r), groupID, userID)
	h.group(w, "remove member", g, err)
}
