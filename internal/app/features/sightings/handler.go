// Package sightings serves posts, their comments and their likes.
package sightings

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dalemusser/birdbook/internal/app/features/shared"
	postsvc "github.com/dalemusser/birdbook/internal/app/services/posts"
	"github.com/dalemusser/birdbook/internal/app/system/apperr"
	"github.com/dalemusser/birdbook/internal/app/system/authz"
	"github.com/dalemusser/birdbook/internal/app/system/jsonresp"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Handler struct {
	Posts *postsvc.Service
	Log   *zap.Logger
}

func NewHandler(posts *postsvc.Service, logger *zap.Logger) *Handler {
	return &Handler{Posts: posts, Log: logger}
}

// List handles GET /sightings.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Posts.List(r.Context())
	h.many(w, "list sightings", ps, err)
}

// FriendsFeed handles GET /sightings/user/{userId}: the posts of userId's
// friends, followed through their posts arrays.
func (h *Handler) FriendsFeed(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "userId")
	if err != nil {
		jsonresp.FromError(w, h.Log, "friends feed", err)
		return
	}
	ps, err := h.Posts.FriendsFeed(r.Context(), id)
	h.many(w, "friends feed", ps, err)
}

// ByGroup handles GET /sightings/group/{groupId}.
func (h *Handler) ByGroup(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "groupId")
	if err != nil {
		jsonresp.FromError(w, h.Log, "group sightings", err)
		return
	}
	ps, err := h.Posts.ByGroup(r.Context(), id)
	h.many(w, "group sightings", ps, err)
}

// ByTags handles GET /sightings/tags?k=v&k2=v2. Every pair must match.
func (h *Handler) ByTags(w http.ResponseWriter, r *http.Request) {
	tags := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			tags[k] = v[0]
		}
	}
	ps, err := h.Posts.ByTags(r.Context(), tags)
	h.many(w, "tag sightings", ps, err)
}

// Get handles GET /sightings/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		jsonresp.FromError(w, h.Log, "get sighting", err)
		return
	}
	p, err := h.Posts.Get(r.Context(), id)
	h.one(w, "get sighting", p, err)
}

// postFields is the editable part of a sighting. It arrives either as flat
// form fields or, as older clients send it, as a JSON document in a "post"
// part next to the "image" part.
type postFields struct {
	Header   *string           `json:"header"`
	TextBody *string           `json:"textBody"`
	Bird     *string           `json:"bird"`
	Group    *string           `json:"group"`
	Tags     map[string]string `json:"tags"`
}

func readPostFields(form *shared.Form) (postFields, error) {
	var pf postFields
	if raw := form.Get("post"); strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &pf); err != nil {
			return pf, apperr.Invalid("post", "post must be a JSON object")
		}
		return pf, nil
	}
	tags, err := form.Map("tags")
	if err != nil {
		return pf, err
	}
	return postFields{
		Header:   form.Ptr("header"),
		TextBody: form.Ptr("textBody"),
		Bird:     form.Ptr("bird"),
		Group:    form.Ptr("group"),
		Tags:     tags,
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Create handles POST /sightings (multipart).
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	form, err := shared.ReadForm(w, r)
	if err != nil {
		jsonresp.FromError(w, h.Log, "create sighting", err)
		return
	}
	pf, err := readPostFields(form)
	if err != nil {
		jsonresp.FromError(w, h.Log, "create sighting", err)
		return
	}
	bird, err := shared.OptionalObjectID("bird", deref(pf.Bird))
	if err != nil {
		jsonresp.FromError(w, h.Log, "create sighting", err)
		return
	}
	group, err := shared.OptionalObjectID("group", deref(pf.Group))
	if err != nil {
		jsonresp.FromError(w, h.Log, "create sighting", err)
		return
	}
	image, closeFile, err := form.File("image")
	if err != nil {
		jsonresp.FromError(w, h.Log, "create sighting", err)
		return
	}
	defer closeFile()

	p, err := h.Posts.Create(r.Context(), shared.Actor(r), postsvc.CreateInput{
		Header:   deref(pf.Header),
		TextBody: deref(pf.TextBody),
		Bird:     bird,
		Group:    group,
		Tags:     pf.Tags,
		Image:    image,
	})
	if err != nil {
		jsonresp.FromError(w, h.Log, "create sighting", err)
		return
	}
	jsonresp.Created(w, p)
}

// Update handles PATCH /sightings/{id}. Absent fields are left alone; an
// empty bird or group clears it.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		jsonresp.FromError(w, h.Log, "update sighting", err)
		return
	}
	form, err := shared.ReadForm(w, r)
	if err != nil {
		jsonresp.FromError(w, h.Log, "update sighting", err)
		return
	}
	pf, err := readPostFields(form)
	if err != nil {
		jsonresp.FromError(w, h.Log, "update sighting", err)
		return
	}

	in := postsvc.UpdateInput{Header: pf.Header, TextBody: pf.TextBody, Tags: pf.Tags}
	if pf.Bird != nil {
		if in.Bird, err = shared.OptionalObjectID("bird", *pf.Bird); err != nil {
			jsonresp.FromError(w, h.Log, "update sighting", err)
			return
		}
		in.ClearBird = in.Bird == nil
	}
	if pf.Group != nil {
		if in.Group, err = shared.OptionalObjectID("group", *pf.Group); err != nil {
			jsonresp.FromError(w, h.Log, "update sighting", err)
			return
		}
		in.ClearGroup = in.Group == nil
	}
	image, closeFile, err := form.File("image")
	if err != nil {
		jsonresp.FromError(w, h.Log, "update sighting", err)
		return
	}
	defer closeFile()
	in.Image = image

	p, err := h.Posts.Update(r.Context(), shared.Actor(r), id, in)
	h.one(w, "update sighting", p, err)
}

// Delete handles DELETE /sightings/{id}. The id stays in the author's
// posts array.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		jsonresp.FromError(w, h.Log, "delete sighting", err)
		return
	}
	if err := h.Posts.Delete(r.Context(), shared.Actor(r), id); err != nil {
		jsonresp.FromError(w, h.Log, "delete sighting", err)
		return
	}
	jsonresp.Message(w, "Post deleted successfully")
}

// Likers handles GET /sightings/{id}/likes.
func (h *Handler) Likers(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		jsonresp.FromError(w, h.Log, "list likes", err)
		return
	}
	us, err := h.Posts.Likers(r.Context(), id)
	if err != nil {
		jsonresp.FromError(w, h.Log, "list likes", err)
		return
	}
	jsonresp.OK(w, us)
}

// Like handles PUT /sightings/{id}/like/{userId}.
func (h *Handler) Like(w http.ResponseWriter, r *http.Request) {
	h.likeOp(w, r, "like", h.Posts.Like)
}

// Unlike handles PUT /sightings/{id}/unlike/{userId}.
func (h *Handler) Unlike(w http.ResponseWriter, r *http.Request) {
	h.likeOp(w, r, "unlike", h.Posts.Unlike)
}

type likeFunc func(ctx context.Context, actor authz.Actor, postID, userID primitive.ObjectID) (models.Post, error)

func (h *Handler) likeOp(w http.ResponseWriter, r *http.Request, op string, f likeFunc) {
	postID, err := shared.ObjectID(r, "id")
	if err != nil {
		jsonresp.FromError(w, h.Log, op, err)
		return
	}
	userID, err := shared.ObjectID(r, "userId")
	if err != nil {
		jsonresp.FromError(w, h.Log, op, err)
		return
	}
	p, err := f(r.Context(), shared.Actor(r), postID, userID)
	h.one(w, op, p, err)
}

// Flag, Unflag, Help and RemoveHelp handle the PUT toggles on /{id}.
func (h *Handler) Flag(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "flag", h.Posts.SetFlagged, true)
}

func (h *Handler) Unflag(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "unflag", h.Posts.SetFlagged, false)
}

func (h *Handler) Help(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "mark help", h.Posts.SetHelp, true)
}

func (h *Handler) RemoveHelp(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "remove help", h.Posts.SetHelp, false)
}

type toggleFunc func(ctx context.Context, actor authz.Actor, postID primitive.ObjectID, v bool) (models.Post, error)

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request, op string, f toggleFunc, v bool) {
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		jsonresp.FromError(w, h.Log, op, err)
		return
	}
	p, err := f(r.Context(), shared.Actor(r), id, v)
	h.one(w, op, p, err)
}

func (h *Handler) one(w http.ResponseWriter, op string, p models.Post, err error) {
	if err != nil {
		jsonresp.FromError(w, h.Log, op, err)
		return
	}
	jsonresp.OK(w, p)
}

func (h *Handler) many(w http.ResponseWriter, op string, ps []models.Post, err error) {
	if err != nil {
		jsonresp.FromError(w, h.Log, op, err)
		return
	}
	if ps == nil {
		ps = []models.Post{}
	}
	jsonresp.OK(w, ps)
}
