// Package birds serves the species catalogue.
package birds

import (
	"net/http"

	"github.com/dalemusser/birdbook/internal/app/features/shared"
	birdsvc "github.com/dalemusser/birdbook/internal/app/services/birds"
	"github.com/dalemusser/birdbook/internal/app/system/auditlog"
	"github.com/dalemusser/birdbook/internal/app/system/jsonresp"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"go.uber.org/zap"
)

type Handler struct {
	Birds *birdsvc.Service
	Audit *auditlog.Logger
	Log   *zap.Logger
}

func NewHandler(birds *birdsvc.Service, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{Birds: birds, Audit: audit, Log: logger}
}

// List handles GET /birds.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	bs, err := h.Birds.List(r.Context())
	h.many(w, "list birds", bs, err)
}

// Search handles GET /birds/search?q=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	bs, err := h.Birds.Search(r.Context(), r.URL.Query().Get("q"))
	h.many(w, "search birds", bs, err)
}

// Get handles GET /birds/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		jsonresp.FromError(w, h.Log, "get bird", err)
		return
	}
	b, err := h.Birds.Get(r.Context(), id)
	if err != nil {
		jsonresp.FromError(w, h.Log, "get bird", err)
		return
	}
	jsonresp.OK(w, b)
}

// Create handles POST /birds (multipart). Admins only.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	in, done, err := readInput(w, r)
	if err != nil {
		jsonresp.FromError(w, h.Log, "create bird", err)
		return
	}
	defer done()

	actor := shared.Actor(r)
	b, err := h.Birds.Create(r.Context(), actor, in)
	if err != nil {
		jsonresp.FromError(w, h.Log, "create bird", err)
		return
	}
	h.Audit.BirdCreated(r.Context(), r, actor.ID, b.ID, b.CommonName)
	jsonresp.Created(w, b)
}

// Update handles PATCH /birds/{id}. Admins only.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		jsonresp.FromError(w, h.Log, "update bird", err)
		return
	}
	in, done, err := readInput(w, r)
	if err != nil {
		jsonresp.FromError(w, h.Log, "update bird", err)
		return
	}
	defer done()

	actor := shared.Actor(r)
	b, err := h.Birds.Update(r.Context(), actor, id, in)
	if err != nil {
		jsonresp.FromError(w, h.Log, "update bird", err)
		return
	}
	h.Audit.BirdUpdated(r.Context(), r, actor.ID, b.ID, b.CommonName)
	jsonresp.OK(w, b)
}

// Delete handles DELETE /birds/{id}. Posts naming the bird keep the id and
// simply lose their bird_details.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		jsonresp.FromError(w, h.Log, "delete bird", err)
		return
	}
	actor := shared.Actor(r)
	if err := h.Birds.Delete(r.Context(), actor, id); err != nil {
		jsonresp.FromError(w, h.Log, "delete bird", err)
		return
	}
	h.Audit.BirdDeleted(r.Context(), r, actor.ID, id)
	jsonresp.Message(w, "Bird deleted")
}

// readInput accepts commonName, scientificName, location ([lng, lat] as a
// JSON array or two repeated fields) and an image file. A location sent
// empty clears it.
func readInput(w http.ResponseWriter, r *http.Request) (birdsvc.Input, func(), error) {
	noop := func() {}
	form, err := shared.ReadForm(w, r)
	if err != nil {
		return birdsvc.Input{}, noop, err
	}
	in := birdsvc.Input{
		CommonName:     form.Ptr("commonName"),
		ScientificName: form.Ptr("scientificName"),
	}
	if form.Has("location") {
		loc, err := form.Floats("location")
		if err != nil {
			return birdsvc.Input{}, noop, err
		}
		in.Location = loc
		in.ClearLocation = loc == nil
	}
	image, done, err := form.File("image")
	if err != nil {
		return birdsvc.Input{}, noop, err
	}
	in.Image = image
	return in, done, nil
}

func (h *Handler) many(w http.ResponseWriter, op string, bs []models.Bird, err error) {
	if err != nil {
		jsonresp.FromError(w, h.Log, op, err)
		return
	}
	if bs == nil {
		bs = []models.Bird{}
	}
	jsonresp.OK(w, bs)
}
