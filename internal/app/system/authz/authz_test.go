package authz_test

import (
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/birdbook/internal/app/system/auth"
	"github.com/dalemusser/birdbook/internal/app/system/authz"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// testUserID returns a valid ObjectID hex string for tests.
func testUserID() string {
	return primitive.NewObjectID().Hex()
}

func TestUserCtx_NoUser(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	role, name, id, ok := authz.UserCtx(req)
	if ok || role != "" || name != "" || !id.IsZero() {
		t.Errorf("got (%q, %q, %v, %v), want anonymous", role, name, id, ok)
	}
}

func TestUserCtx_MalformedID(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{ID: "not-an-objectid", Role: "ADMIN"})
	if _, _, _, ok := authz.UserCtx(req); ok {
		t.Error("expected ok=false for malformed user id")
	}
}

func TestUserCtx_NormalizesRole(t *testing.T) {
	hex := testUserID()
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{ID: hex, Username: "alice", Role: "admin"})

	role, name, id, ok := authz.UserCtx(req)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if role != "ADMIN" {
		t.Errorf("role: got %q, want %q", role, "ADMIN")
	}
	if name != "alice" {
		t.Errorf("name: got %q, want %q", name, "alice")
	}
	if id.Hex() != hex {
		t.Errorf("id: got %s, want %s", id.Hex(), hex)
	}
}

func TestIsAdmin(t *testing.T) {
	tests := []struct {
		role      string
		wantAdmin bool
		wantSuper bool
	}{
		{"BASIC", false, false},
		{"ADMIN", true, false},
		{"SUPER", true, true},
		{"super", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			req = auth.WithTestUser(req, &auth.SessionUser{ID: testUserID(), Role: tt.role})
			if got := authz.IsAdmin(req); got != tt.wantAdmin {
				t.Errorf("IsAdmin: got %v, want %v", got, tt.wantAdmin)
			}
			if got := authz.IsSuper(req); got != tt.wantSuper {
				t.Errorf("IsSuper: got %v, want %v", got, tt.wantSuper)
			}
		})
	}
}

func TestActor(t *testing.T) {
	id := primitive.NewObjectID()
	a := authz.Actor{ID: id, Role: "BASIC"}
	if !a.Is(id) {
		t.Error("expected actor to match its own id")
	}
	if a.Is(primitive.NewObjectID()) {
		t.Error("expected actor not to match another id")
	}
	if (authz.Actor{}).Is(primitive.NilObjectID) {
		t.Error("anonymous actor must not match the nil id")
	}
	if !(authz.Actor{}).Anonymous() {
		t.Error("zero actor should be anonymous")
	}
}

func TestHasAnyRole(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{ID: testUserID(), Role: "ADMIN"})

	if !authz.HasAnyRole(req, "basic", " admin ") {
		t.Error("expected HasAnyRole to match admin")
	}
	if authz.HasRole(req, "SUPER") {
		t.Error("expected HasRole(SUPER) to be false")
	}
	if authz.HasAnyRole(httptest.NewRequest("GET", "/", nil), "ADMIN") {
		t.Error("expected false without a user")
	}
}

func TestValidRole(t *testing.T) {
	for _, r := range []string{"BASIC", "admin", " Super "} {
		if !authz.ValidRole(r) {
			t.Errorf("ValidRole(%q) = false, want true", r)
		}
	}
	if authz.ValidRole("superadmin") {
		t.Error("ValidRole(superadmin) = true, want false")
	}
}
