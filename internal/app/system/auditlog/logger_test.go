package auditlog_test

import (
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/birdbook/internal/app/store/audit"
	"github.com/dalemusser/birdbook/internal/app/system/auditlog"
	"github.com/dalemusser/birdbook/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_NilLogger(t *testing.T) {
	var logger *auditlog.Logger
	ctx, cancel := testutil.TestContext()
	defer cancel()
	req := httptest.NewRequest("GET", "/", nil)

	// must not panic
	logger.Log(ctx, audit.Event{EventType: "test"})
	logger.LoginSuccess(ctx, req, primitive.NewObjectID(), "heronfan")
	logger.Logout(ctx, req, primitive.NewObjectID().Hex())
}

func TestLogger_Destinations(t *testing.T) {
	tests := []struct {
		setting  string
		wantDB   int
		wantLogs int
	}{
		{auditlog.All, 1, 1},
		{"", 1, 1},
		{auditlog.DB, 1, 0},
		{auditlog.Log, 0, 1},
		{auditlog.Off, 0, 0},
	}
	for _, tt := range tests {
		t.Run("auth="+tt.setting, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			store := audit.New(db)
			core, logs := observer.New(zap.InfoLevel)
			ctx, cancel := testutil.TestContext()
			defer cancel()

			logger := auditlog.New(store, zap.New(core), auditlog.Config{Auth: tt.setting, Admin: auditlog.Off})
			userID := primitive.NewObjectID()
			logger.LoginSuccess(ctx, httptest.NewRequest("POST", "/auth/login", nil), userID, "heronfan")

			events, err := store.GetByUser(ctx, userID, 10)
			if err != nil {
				t.Fatalf("GetByUser failed: %v", err)
			}
			if len(events) != tt.wantDB {
				t.Errorf("stored %d events, want %d", len(events), tt.wantDB)
			}
			if got := logs.FilterMessage("audit event").Len(); got != tt.wantLogs {
				t.Errorf("logged %d events, want %d", got, tt.wantLogs)
			}
		})
	}
}

func TestLogger_LoginFailedIsWarning(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	core, logs := observer.New(zap.WarnLevel)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.New(core), auditlog.Config{Auth: auditlog.All})
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	logger.LoginFailed(ctx, req, "nobody1")

	if logs.Len() != 1 {
		t.Fatalf("expected one warning, got %d", logs.Len())
	}
	fields := logs.All()[0].ContextMap()
	if fields["ip"] != "203.0.113.9" || fields["detail_username"] != "nobody1" {
		t.Errorf("unexpected fields: %v", fields)
	}

	failed, _ := store.Query(ctx, audit.QueryFilter{EventType: audit.EventLoginFailed})
	if len(failed) != 1 || failed[0].Success || failed[0].FailureReason != "invalid credentials" {
		t.Errorf("unexpected stored event: %+v", failed)
	}
}

func TestLogger_AdminEvents(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: auditlog.Off, Admin: auditlog.DB})
	req := httptest.NewRequest("PATCH", "/users/x/role", nil)
	admin, target, bird := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()

	logger.RoleChanged(ctx, req, admin, target, "SUPER", "ADMIN")
	logger.UserDeleted(ctx, req, target, target, "BASIC")
	logger.BirdCreated(ctx, req, admin, bird, "Barn Owl")
	logger.BirdDeleted(ctx, req, admin, bird)
	logger.LoginSuccess(ctx, req, admin, "root1")

	events, err := store.Query(ctx, audit.QueryFilter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("expected 4 admin events and no auth events, got %d", len(events))
	}

	byType := map[string]audit.Event{}
	for _, e := range events {
		byType[e.EventType] = e
	}
	rc := byType[audit.EventRoleChanged]
	if rc.ActorID == nil || *rc.ActorID != admin || rc.UserID == nil || *rc.UserID != target || rc.Details["new_role"] != "ADMIN" {
		t.Errorf("unexpected role change event: %+v", rc)
	}
	if byType[audit.EventUserDeleted].Details["self"] != "true" {
		t.Errorf("expected self-deletion to be marked, got %v", byType[audit.EventUserDeleted].Details)
	}
	if byType[audit.EventBirdCreated].Details["common_name"] != "Barn Owl" {
		t.Errorf("expected common name detail, got %v", byType[audit.EventBirdCreated].Details)
	}
}

func TestValidDestination(t *testing.T) {
	for _, s := range []string{"all", "db", "log", "off"} {
		if !auditlog.ValidDestination(s) {
			t.Errorf("ValidDestination(%q) = false", s)
		}
	}
	if auditlog.ValidDestination("syslog") {
		t.Error("ValidDestination(\"syslog\") = true")
	}
}
