package auth_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/birdbook/internal/app/features/auth"
	"github.com/dalemusser/birdbook/internal/app/store/audit"
	"github.com/dalemusser/birdbook/internal/app/system/auditlog"
	authsys "github.com/dalemusser/birdbook/internal/app/system/auth"
	"github.com/dalemusser/birdbook/internal/app/system/ratelimit"
	"github.com/dalemusser/birdbook/internal/app/xref"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"github.com/dalemusser/birdbook/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const testSecret = "test-secret-that-is-at-least-32-chars-long"

type session struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func setup(t *testing.T, limiter *ratelimit.LoginLimiter, al *auditlog.Logger) (*testutil.Stack, *authsys.SessionManager, http.Handler) {
	t.Helper()
	s := testutil.NewStack(t, xref.ReadModifyWrite)
	sm, err := authsys.NewSessionManager(testSecret, "jwt", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	r := chi.NewRouter()
	r.Use(sm.LoadSessionUser)
	r.Mount("/auth", auth.Routes(auth.NewHandler(s.Users, s.Images, sm, limiter, al, zap.NewNop())))
	return s, sm, r
}

func creds(username, password string) map[string]string {
	return map[string]string{"username": username, "password": password}
}

func TestSignupThenLogin(t *testing.T) {
	_, sm, router := setup(t, nil, nil)

	rec := testutil.Serve(router, testutil.NewRequest("POST", "/auth/signup", creds("heronfan", "Abc1!")))
	rec.AssertStatus(t, http.StatusCreated)
	var signed session
	rec.Decode(t, &signed)
	if signed.Token == "" || signed.User.Username != "heronfan" || signed.User.Role != models.RoleBasic {
		t.Fatalf("unexpected signup response: %+v", signed)
	}
	if signed.User.PasswordHash != "" {
		t.Error("password hash must not be serialized")
	}
	su, err := sm.Parse(signed.Token)
	if err != nil || su.ID != signed.User.ID.Hex() {
		t.Errorf("token does not name the new user: %+v, %v", su, err)
	}

	tests := []struct {
		name     string
		username string
		password string
		want     int
	}{
		{"wrong password", "heronfan", "Abc1!x", http.StatusUnauthorized},
		{"unknown user", "nobody01", "Abc1!", http.StatusUnauthorized},
		{"case-insensitive username", "HERONFAN", "Abc1!", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.Serve(router, testutil.NewRequest("POST", "/auth/login", creds(tt.username, tt.password))).AssertStatus(t, tt.want)
		})
	}

	rec = testutil.Serve(router, testutil.NewRequest("POST", "/auth/signup", creds("HeronFan", "Abc1!")))
	rec.AssertStatus(t, http.StatusConflict)
}

func TestMe_UsesBearerToken(t *testing.T) {
	_, _, router := setup(t, nil, nil)

	testutil.Serve(router, testutil.NewRequest("GET", "/auth/me", nil)).AssertStatus(t, http.StatusUnauthorized)

	rec := testutil.Serve(router, testutil.NewRequest("POST", "/auth/signup", creds("ternlover", "Abc1!")))
	var signed session
	rec.Decode(t, &signed)

	req := testutil.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+signed.Token)
	rec = testutil.Serve(router, req)
	rec.AssertStatus(t, http.StatusOK)
	var me models.User
	rec.Decode(t, &me)
	if me.ID != signed.User.ID {
		t.Errorf("me = %s, want %s", me.ID.Hex(), signed.User.ID.Hex())
	}
}

func TestLogin_RateLimited(t *testing.T) {
	limiter := ratelimit.NewLoginLimiterWithConfig(100, time.Minute, 2, time.Minute)
	_, _, router := setup(t, limiter, nil)

	for i, want := range []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests} {
		rec := testutil.Serve(router, testutil.NewRequest("POST", "/auth/login", creds("gullwing", "Wrong1!")))
		if rec.Code != want {
			t.Fatalf("attempt %d: status %d, want %d", i+1, rec.Code, want)
		}
	}
}

func TestLogout_ClearsCookie(t *testing.T) {
	_, _, router := setup(t, nil, nil)

	rec := testutil.Serve(router, testutil.NewRequest("POST", "/auth/logout", nil))
	rec.AssertStatus(t, http.StatusOK)
	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == "jwt" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("expected the jwt cookie to be expired")
	}
}

func TestAuthEventsAreAudited(t *testing.T) {
	db := testutil.SetupTestDB(t)
	events := audit.New(db)
	al := auditlog.New(events, zap.NewNop(), auditlog.Config{Auth: auditlog.DB, Admin: auditlog.DB})
	limiter := ratelimit.NewLoginLimiterWithConfig(100, time.Minute, 2, time.Minute)
	_, _, router := setup(t, limiter, al)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	rec := testutil.Serve(router, testutil.NewRequest("POST", "/auth/signup", creds("ploverx1", "Abc1!")))
	var signed session
	rec.Decode(t, &signed)
	testutil.Serve(router, testutil.NewRequest("POST", "/auth/login", creds("ploverx1", "Abc1!")))
	testutil.Serve(router, testutil.NewRequest("POST", "/auth/login", creds("someone1", "Wrong1!")))
	testutil.Serve(router, testutil.NewRequest("POST", "/auth/login", creds("someone1", "Wrong1!")))
	testutil.Serve(router, testutil.NewRequest("POST", "/auth/login", creds("someone1", "Wrong1!")))
	testutil.Serve(router, testutil.NewAuthenticatedRequest("POST", "/auth/logout", nil, signed.User))

	tests := []struct {
		eventType string
		want      int
	}{
		{audit.EventSignup, 1},
		{audit.EventLoginSuccess, 1},
		{audit.EventLoginFailed, 2},
		{audit.EventLoginFailedRateLimit, 1},
		{audit.EventLogout, 1},
	}
	for _, tt := range tests {
		got, err := events.Query(ctx, audit.QueryFilter{EventType: tt.eventType})
		if err != nil {
			t.Fatalf("Query(%s): %v", tt.eventType, err)
		}
		if len(got) != tt.want {
			t.Errorf("%s: %d events, want %d", tt.eventType, len(got), tt.want)
		}
	}

	mine, _ := events.GetByUser(ctx, signed.User.ID, 10)
	if len(mine) != 3 {
		t.Errorf("expected signup, login and logout for the new user, got %d events", len(mine))
	}
}
