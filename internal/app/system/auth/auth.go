package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/birdbook/internal/app/system/jsonresp"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Current-User helper                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionUser is what we carry in the token & inject into r.Context().
type SessionUser struct {
	ID         string
	Username   string
	Role       string
	ProfilePic string
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user & “found?” flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok
}

// WithTestUser injects u into the request context. Handler tests use it
// to bypass token parsing.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

// UserFetcher loads fresh user data for a token subject. Returning nil
// rejects the token (e.g. the user was deleted).
type UserFetcher interface {
	FetchUser(ctx context.Context, userID string) *SessionUser
}

/*─────────────────────────────────────────────────────────────────────────────*
| Session manager (stateless JWT cookie / bearer token)                      |
*─────────────────────────────────────────────────────────────────────────────*/

// DefaultCookieName is the cookie the browser client reads and writes.
const DefaultCookieName = "jwt"

// SessionManager issues and verifies HS256 tokens. Tokens are accepted from
// the auth cookie or from an "Authorization: Bearer" header.
type SessionManager struct {
	secret     []byte
	cookieName string
	ttl        time.Duration
	secure     bool
	fetcher    UserFetcher
	log        *zap.Logger
}

// NewSessionManager validates the signing secret and builds a manager.
func NewSessionManager(secret, cookieName string, ttl time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty; provide ≥32 random chars")
	}
	if len(secret) < 32 {
		logger.Warn("jwt secret is short; 32+ chars recommended",
			zap.Int("length", len(secret)))
	}
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &SessionManager{
		secret:     []byte(secret),
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		log:        logger,
	}, nil
}

// SetUserFetcher makes LoadSessionUser refresh the user on each request.
func (m *SessionManager) SetUserFetcher(f UserFetcher) {
	m.fetcher = f
}

// Issue signs a token for u.
func (m *SessionManager) Issue(u SessionUser) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(m.ttl)
	claims := jwt.MapClaims{
		"sub":      u.ID,
		"username": u.Username,
		"role":     u.Role,
		"exp":      exp.Unix(),
		"iat":      now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse verifies raw and returns the user it names.
func (m *SessionManager) Parse(raw string) (*SessionUser, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, errors.New("token has no subject")
	}
	username, _ := claims["username"].(string)
	role, _ := claims["role"].(string)
	return &SessionUser{ID: sub, Username: username, Role: role}, nil
}

// SignIn issues a token for u and sets it as an HttpOnly cookie.
// The token is also returned so API clients can use the bearer header.
func (m *SessionManager) SignIn(w http.ResponseWriter, u SessionUser) (string, error) {
	token, exp, err := m.Issue(u)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// SignOut expires the auth cookie.
func (m *SessionManager) SignOut(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// LoadSessionUser injects the user into context if a valid token is present.
// Invalid or missing tokens leave the request anonymous.
func (m *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := m.tokenFrom(r)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		u, err := m.Parse(raw)
		if err != nil {
			m.log.Debug("rejected auth token", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		if m.fetcher != nil {
			fresh := m.fetcher.FetchUser(r.Context(), u.ID)
			if fresh == nil {
				next.ServeHTTP(w, r)
				return
			}
			u = fresh
		}
		next.ServeHTTP(w, withUser(r, u))
	})
}

func (m *SessionManager) tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(m.cookieName); err == nil {
		return c.Value
	}
	return ""
}

// RequireSignedIn ensures there is a user in context (set by LoadSessionUser).
func RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			jsonresp.Unauthorized(w, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole ensures there is a user with one of the allowed roles.
// Roles compare case-insensitively.
func RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[strings.ToUpper(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				jsonresp.Unauthorized(w, "authentication required")
				return
			}
			if _, has := set[strings.ToUpper(u.Role)]; !has {
				jsonresp.Forbidden(w, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// helpers

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}
