// Package users serves profiles, friendships and per-user listings.
package users

import (
	"net/http"

	"github.com/dalemusser/birdbook/internal/app/enrich"
	"github.com/dalemusser/birdbook/internal/app/features/shared"
	postsvc "github.com/dalemusser/birdbook/internal/app/services/posts"
	usersvc "github.com/dalemusser/birdbook/internal/app/services/users"
	"github.com/dalemusser/birdbook/internal/app/system/auditlog"
	"github.com/dalemusser/birdbook/internal/app/system/jsonresp"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Handler struct {
	Users     *usersvc.Service
	Sightings *postsvc.Service
	Images    *enrich.Images
	Audit     *auditlog.Logger
	Log       *zap.Logger
}

func NewHandler(users *usersvc.Service, posts *postsvc.Service, images *enrich.Images, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{Users: users, Sightings: posts, Images: images, Audit: audit, Log: logger}
}

// List handles GET /users.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	us, err := h.Users.List(r.Context())
	h.users(w, r, "list users", us, err)
}

// Search handles GET /users/search?q=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	us, err := h.Users.Search(r.Context(), r.URL.Query().Get("q"))
	h.users(w, r, "search users", us, err)
}

// Get handles GET /users/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		jsonresp.FromError(w, h.Log, "get user", err)
		return
	}
	u, err := h.Users.Get(r.Context(), id)
	if err != nil {
		jsonresp.FromError(w, h.Log, "get user", err)
		return
	}
	h.Images.User(r.Context(), &u)
	jsonresp.OK(w, u)
}

// Friends handles GET /users/{id}/friends.
func (h *Handler) Friends(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		jsonresp.FromError(w, h.Log, "list friends", err)
		return
	}
	us, err := h.Users.Friends(r.Context(), id)
	h.users(w, r, "list friends", us, err)
}

// Groups handles GET /users/{id}/groups.
func (h *Handler) Groups(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		jsonresp.FromError(w, h.Log, "list user groups", err)
		return
	}
	gs, err := h.Users.Groups(r.Context(), id)
	if err != nil {
		jsonresp.FromError(w, h.Log, "list user groups", err)
		return
	}
	h.Images.Groups(r.Context(), gs)
	jsonresp.OK(w, gs)
}

// Posts handles GET /users/{id}/posts. It follows the user's posts array,
// so posts whose creation was not propagated do not appear here.
func (h *Handler) Posts(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		jsonresp.FromError(w, h.Log, "list user posts", err)
		return
	}
	ps, err := h.Users.Posts(r.Context(), id)
	if err != nil {
		jsonresp.FromError(w, h.Log, "list user posts", err)
		return
	}
	h.Images.Posts(r.Context(), ps)
	jsonresp.OK(w, ps)
}

// Feed handles GET /users/{id}/feed.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		jsonresp.FromError(w, h.Log, "friends feed", err)
		return
	}
	ps, err := h.Sightings.FriendsFeed(r.Context(), id)
	if err != nil {
		jsonresp.FromError(w, h.Log, "friends feed", err)
		return
	}
	jsonresp.OK(w, ps)
}

// Stats handles GET /users/{id}/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		jsonresp.FromError(w, h.Log, "user stats", err)
		return
	}
	st, err := h.Users.Stats(r.Context(), id)
	if err != nil {
		jsonresp.FromError(w, h.Log, "user stats", err)
		return
	}
	if st.MostSpottedBird != nil {
		h.birdImage(r, st.MostSpottedBird)
	}
	for i := range st.TopBirdsAllTime {
		h.birdImage(r, &st.TopBirdsAllTime[i])
	}
	for i := range st.TopBirdsThisMonth {
		h.birdImage(r, &st.TopBirdsThisMonth[i])
	}
	jsonresp.OK(w, st)
}

// TopBirds handles GET /users/{id}/top-birds.
func (h *Handler) TopBirds(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		jsonresp.FromError(w, h.Log, "top birds", err)
		return
	}
	top, err := h.Users.TopBirds(r.Context(), id)
	if err != nil {
		jsonresp.FromError(w, h.Log, "top birds", err)
		return
	}
	for i := range top {
		h.birdImage(r, &top[i])
	}
	jsonresp.OK(w, top)
}

// Onboard handles POST /users/onboard (multipart).
func (h *Handler) Onboard(w http.ResponseWriter, r *http.Request) {
	form, err := shared.ReadForm(w, r)
	if err != nil {
		jsonresp.FromError(w, h.Log, "onboard", err)
		return
	}
	photo, closeFile, err := form.File("profilePic")
	if err != nil {
		jsonresp.FromError(w, h.Log, "onboard", err)
		return
	}
	defer closeFile()

	u, err := h.Users.Onboard(r.Context(), shared.Actor(r), usersvc.OnboardInput{
		FirstName: form.Get("firstName"),
		LastName:  form.Get("lastName"),
		Location:  form.Get("location"),
		Photo:     photo,
	})
	if err != nil {
		jsonresp.FromError(w, h.Log, "onboard", err)
		return
	}
	h.Images.User(r.Context(), &u)
	jsonresp.OK(w, u)
}

// Update handles PATCH /users/{id} (multipart or JSON).
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		jsonresp.FromError(w, h.Log, "update user", err)
		return
	}
	form, err := shared.ReadForm(w, r)
	if err != nil {
		jsonresp.FromError(w, h.Log, "update user", err)
		return
	}
	photo, closeFile, err := form.File("profilePic")
	if err != nil {
		jsonresp.FromError(w, h.Log, "update user", err)
		return
	}
	defer closeFile()

	u, err := h.Users.Update(r.Context(), shared.Actor(r), id, usersvc.UpdateInput{
		Username:  form.Ptr("username"),
		Password:  form.Ptr("password"),
		FirstName: form.Ptr("firstName"),
		LastName:  form.Ptr("lastName"),
		Location:  form.Ptr("location"),
		Photo:     photo,
	})
	if err != nil {
		jsonresp.FromError(w, h.Log, "update user", err)
		return
	}
	h.Images.User(r.Context(), &u)
	jsonresp.OK(w, u)
}

// ChangeRole handles PATCH /users/{id}/role with {"role": "..."}.
func (h *Handler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		jsonresp.FromError(w, h.Log, "change role", err)
		return
	}
	var in struct {
		Role string `json:"role"`
	}
	if err := jsonresp.Decode(r, &in); err != nil {
		jsonresp.FromError(w, h.Log, "change role", err)
		return
	}
	actor := shared.Actor(r)
	u, err := h.Users.ChangeRole(r.Context(), actor, id, in.Role)
	if err != nil {
		jsonresp.FromError(w, h.Log, "change role", err)
		return
	}
	h.Audit.RoleChanged(r.Context(), r, actor.ID, u.ID, actor.Role, u.Role)
	jsonresp.OK(w, u)
}

// Delete handles DELETE /users/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		jsonresp.FromError(w, h.Log, "delete user", err)
		return
	}
	actor := shared.Actor(r)
	if err := h.Users.Delete(r.Context(), actor, id); err != nil {
		jsonresp.FromError(w, h.Log, "delete user", err)
		return
	}
	h.Audit.UserDeleted(r.Context(), r, actor.ID, id, actor.Role)
	jsonresp.Message(w, "User deleted")
}

// AddFriend handles PUT /users/{id}/friends/{friendId}.
func (h *Handler) AddFriend(w http.ResponseWriter, r *http.Request) {
	id, friendID, err := h.pair(r)
	if err == nil {
		err = h.Users.AddFriend(r.Context(), shared.Actor(r), id, friendID)
	}
	if err != nil {
		jsonresp.FromError(w, h.Log, "add friend", err)
		return
	}
	jsonresp.Message(w, "Friend added")
}

// RemoveFriend handles DELETE /users/{id}/friends/{friendId}.
func (h *Handler) RemoveFriend(w http.ResponseWriter, r *http.Request) {
	id, friendID, err := h.pair(r)
	if err == nil {
		err = h.Users.RemoveFriend(r.Context(), shared.Actor(r), id, friendID)
	}
	if err != nil {
		jsonresp.FromError(w, h.Log, "remove friend", err)
		return
	}
	jsonresp.Message(w, "Friend removed")
}

func (h *Handler) pair(r *http.Request) (id, friendID primitive.ObjectID, err error) {
	if id, err = shared.ObjectID(r, "id"); err != nil {
		return
	}
	friendID, err = shared.ObjectID(r, "friendId")
	return
}

func (h *Handler) users(w http.ResponseWriter, r *http.Request, op string, us []models.User, err error) {
	if err != nil {
		jsonresp.FromError(w, h.Log, op, err)
		return
	}
	h.Images.Users(r.Context(), us)
	jsonresp.OK(w, us)
}

func (h *Handler) birdImage(r *http.Request, c *usersvc.BirdCount) {
	if c.Bird != nil {
		h.Images.Bird(r.Context(), c.Bird)
	}
}
