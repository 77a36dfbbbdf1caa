// Package auth serves signup, login and the current-user endpoints.
package auth

import (
	"errors"
	"net/http"

	"github.com/dalemusser/birdbook/internal/app/enrich"
	"github.com/dalemusser/birdbook/internal/app/features/shared"
	usersvc "github.com/dalemusser/birdbook/internal/app/services/users"
	"github.com/dalemusser/birdbook/internal/app/system/apperr"
	"github.com/dalemusser/birdbook/internal/app/system/auditlog"
	authsys "github.com/dalemusser/birdbook/internal/app/system/auth"
	"github.com/dalemusser/birdbook/internal/app/system/jsonresp"
	"github.com/dalemusser/birdbook/internal/app/system/ratelimit"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"go.uber.org/zap"
)

type Handler struct {
	Users      *usersvc.Service
	Images     *enrich.Images
	SessionMgr *authsys.SessionManager
	Limiter    *ratelimit.LoginLimiter
	Audit      *auditlog.Logger
	Log        *zap.Logger
}

// NewHandler wires the auth endpoints. A nil limiter gets the in-memory
// default; a nil audit logger records nothing.
func NewHandler(users *usersvc.Service, images *enrich.Images, sm *authsys.SessionManager, limiter *ratelimit.LoginLimiter, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	if limiter == nil {
		limiter = ratelimit.NewLoginLimiter()
	}
	return &Handler{Users: users, Images: images, SessionMgr: sm, Limiter: limiter, Audit: audit, Log: logger}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := jsonresp.Decode(r, &in); err != nil {
		jsonresp.FromError(w, h.Log, "login", err)
		return
	}
	if ok, reason := h.Limiter.Check(r, in.Username); !ok {
		h.Log.Warn("login rate limited", zap.String("ip", ratelimit.ClientIP(r)), zap.String("username", in.Username))
		h.Audit.LoginRateLimited(r.Context(), r, in.Username, reason)
		jsonresp.TooManyRequests(w, reason)
		return
	}

	u, err := h.Users.Authenticate(r.Context(), in.Username, in.Password)
	if err != nil {
		if errors.Is(err, apperr.ErrUnauthorized) {
			h.Audit.LoginFailed(r.Context(), r, in.Username)
		}
		jsonresp.FromError(w, h.Log, "login", err)
		return
	}
	h.Limiter.ResetUser(in.Username)
	h.Audit.LoginSuccess(r.Context(), r, u.ID, u.Username)
	h.signIn(w, r, u, http.StatusOK)
}

// Signup handles POST /auth/signup and signs the new user in.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := jsonresp.Decode(r, &in); err != nil {
		jsonresp.FromError(w, h.Log, "signup", err)
		return
	}
	u, err := h.Users.Register(r.Context(), in.Username, in.Password)
	if err != nil {
		jsonresp.FromError(w, h.Log, "signup", err)
		return
	}
	h.Audit.Signup(r.Context(), r, u.ID, u.Username)
	h.signIn(w, r, u, http.StatusCreated)
}

// Me handles GET /auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.Get(r.Context(), shared.Actor(r).ID)
	if err != nil {
		jsonresp.FromError(w, h.Log, "me", err)
		return
	}
	h.Images.User(r.Context(), &u)
	jsonresp.OK(w, u)
}

// Logout handles POST /auth/logout. The token itself stays valid until it
// expires; only the cookie is cleared.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if su, ok := authsys.CurrentUser(r); ok {
		h.Audit.Logout(r.Context(), r, su.ID)
	}
	h.SessionMgr.SignOut(w)
	jsonresp.Message(w, "Logged out")
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request, u models.User, status int) {
	token, err := h.SessionMgr.SignIn(w, authsys.SessionUser{
		ID:       u.ID.Hex(),
		Username: u.Username,
		Role:     u.Role,
	})
	if err != nil {
		jsonresp.FromError(w, h.Log, "issue token", err)
		return
	}
	h.Images.User(r.Context(), &u)
	jsonresp.JSON(w, status, sessionResponse{Token: token, User: u})
}
