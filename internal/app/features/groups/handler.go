// Package groups serves groups and their join-request workflow.
package groups

import (
	"net/http"

	"github.com/dalemusser/birdbook/internal/app/features/shared"
	groupsvc "github.com/dalemusser/birdbook/internal/app/services/groups"
	"github.com/dalemusser/birdbook/internal/app/system/jsonresp"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Handler struct {
	Groups *groupsvc.Service
	Log    *zap.Logger
}

func NewHandler(groups *groupsvc.Service, logger *zap.Logger) *Handler {
	return &Handler{Groups: groups, Log: logger}
}

// List handles GET /groups.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	gs, err := h.Groups.List(r.Context())
	if err != nil {
		jsonresp.FromError(w, h.Log, "list groups", err)
		return
	}
	if gs == nil {
		gs = []models.Group{}
	}
	jsonresp.OK(w, gs)
}

// Get handles GET /groups/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		jsonresp.FromError(w, h.Log, "get group", err)
		return
	}
	g, err := h.Groups.Get(r.Context(), id)
	h.group(w, "get group", g, err)
}

// Members handles GET /groups/{id}/members.
func (h *Handler) Members(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		jsonresp.FromError(w, h.Log, "list members", err)
		return
	}
	us, err := h.Groups.Members(r.Context(), id)
	h.users(w, "list members", us, err)
}

// Requests handles GET /groups/{id}/join-requests. Managers only.
func (h *Handler) Requests(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		jsonresp.FromError(w, h.Log, "list join requests", err)
		return
	}
	us, err := h.Groups.Requests(r.Context(), shared.Actor(r), id)
	h.users(w, "list join requests", us, err)
}

// Create handles POST /groups (multipart or JSON).
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	in, done, err := readInput(w, r)
	if err != nil {
		jsonresp.FromError(w, h.Log, "create group", err)
		return
	}
	defer done()

	g, err := h.Groups.Create(r.Context(), shared.Actor(r), in)
	if err != nil {
		jsonresp.FromError(w, h.Log, "create group", err)
		return
	}
	jsonresp.Created(w, g)
}

// Update handles PUT /groups/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		jsonresp.FromError(w, h.Log, "update group", err)
		return
	}
	in, done, err := readInput(w, r)
	if err != nil {
		jsonresp.FromError(w, h.Log, "update group", err)
		return
	}
	defer done()

	g, err := h.Groups.Update(r.Context(), shared.Actor(r), id, in)
	h.group(w, "update group", g, err)
}

// Delete handles DELETE /groups/{id}. Members keep the id in their
// groups arrays.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		jsonresp.FromError(w, h.Log, "delete group", err)
		return
	}
	if err := h.Groups.Delete(r.Context(), shared.Actor(r), id); err != nil {
		jsonresp.FromError(w, h.Log, "delete group", err)
		return
	}
	jsonresp.Message(w, "Group deleted")
}

func readInput(w http.ResponseWriter, r *http.Request) (groupsvc.Input, func(), error) {
	noop := func() {}
	form, err := shared.ReadForm(w, r)
	if err != nil {
		return groupsvc.Input{}, noop, err
	}
	image, done, err := form.File("image")
	if err != nil {
		return groupsvc.Input{}, noop, err
	}
	return groupsvc.Input{
		Name:        form.Get("name"),
		Description: form.Get("description"),
		Image:       image,
	}, done, nil
}

func (h *Handler) group(w http.ResponseWriter, op string, g models.Group, err error) {
	if err != nil {
		jsonresp.FromError(w, h.Log, op, err)
		return
	}
	jsonresp.OK(w, g)
}

func (h *Handler) users(w http.ResponseWriter, op string, us []models.PostUser, err error) {
	if err != nil {
		jsonresp.FromError(w, h.Log, op, err)
		return
	}
	if us == nil {
		us = []models.PostUser{}
	}
	jsonresp.OK(w, us)
}

func memberParams(r *http.Request) (groupID, userID primitive.ObjectID, err error) {
	if groupID, err = shared.ObjectID(r, "id"); err != nil {
		return
	}
	userID, err = shared.ObjectID(r, "userId")
	return
}
