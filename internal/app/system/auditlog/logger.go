// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/birdbook/internal/app/store/audit"
	"github.com/dalemusser/birdbook/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations for a category.
const (
	All = "all" // MongoDB and zap
	DB  = "db"
	Log = "log"
	Off = "off"
)

// Config holds the destination per event category.
type Config struct {
	Auth  string // login, logout and signup
	Admin string // role changes, user deletion and catalogue edits
}

// ValidDestination reports whether s is one of All, DB, Log or Off.
func ValidDestination(s string) bool {
	switch s {
	case All, DB, Log, Off:
		return true
	}
	return false
}

// Logger writes audit events to MongoDB (via audit.Store) and to zap.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{store: store, zapLog: zapLog, config: config}
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records event according to the category's destination. A nil
// Logger does nothing. Store failures are logged, never returned.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAdmin:
		setting = l.config.Admin
	default:
		setting = All
	}
	if setting == "" {
		setting = All
	}
	if setting == Off {
		return
	}

	if setting == All || setting == Log {
		l.logToZap(event)
	}
	if setting == All || setting == DB {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType))
		}
	}
}

// --- Authentication events ---

func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, username string) {
	l.Log(ctx, authEvent(r, audit.EventLoginSuccess, &userID, true, "", username))
}

// LoginFailed records a rejected username/password pair. The two causes
// are not told apart, matching the response the caller sees.
func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, attempted string) {
	l.Log(ctx, authEvent(r, audit.EventLoginFailed, nil, false, "invalid credentials", attempted))
}

func (l *Logger) LoginRateLimited(ctx context.Context, r *http.Request, attempted, reason string) {
	l.Log(ctx, authEvent(r, audit.EventLoginFailedRateLimit, nil, false, reason, attempted))
}

func (l *Logger) Signup(ctx context.Context, r *http.Request, userID primitive.ObjectID, username string) {
	l.Log(ctx, authEvent(r, audit.EventSignup, &userID, true, "", username))
}

// Logout takes the session user id as a hex string; a malformed id is
// recorded without a user.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userIDHex string) {
	var uid *primitive.ObjectID
	if id, err := primitive.ObjectIDFromHex(userIDHex); err == nil {
		uid = &id
	}
	l.Log(ctx, authEvent(r, audit.EventLogout, uid, true, "", ""))
}

// --- Admin events ---

func (l *Logger) RoleChanged(ctx context.Context, r *http.Request, actorID, targetID primitive.ObjectID, actorRole, newRole string) {
	l.Log(ctx, adminEvent(r, audit.EventRoleChanged, actorID, &targetID, map[string]string{
		"actor_role": actorRole,
		"new_role":   newRole,
	}))
}

func (l *Logger) UserDeleted(ctx context.Context, r *http.Request, actorID, targetID primitive.ObjectID, actorRole string) {
	l.Log(ctx, adminEvent(r, audit.EventUserDeleted, actorID, &targetID, map[string]string{
		"actor_role": actorRole,
		"self":       strconv.FormatBool(actorID == targetID),
	}))
}

func (l *Logger) BirdCreated(ctx context.Context, r *http.Request, actorID, birdID primitive.ObjectID, commonName string) {
	l.Log(ctx, adminEvent(r, audit.EventBirdCreated, actorID, nil, birdDetails(birdID, commonName)))
}

func (l *Logger) BirdUpdated(ctx context.Context, r *http.Request, actorID, birdID primitive.ObjectID, commonName string) {
	l.Log(ctx, adminEvent(r, audit.EventBirdUpdated, actorID, nil, birdDetails(birdID, commonName)))
}

func (l *Logger) BirdDeleted(ctx context.Context, r *http.Request, actorID, birdID primitive.ObjectID) {
	l.Log(ctx, adminEvent(r, audit.EventBirdDeleted, actorID, nil, birdDetails(birdID, "")))
}

func authEvent(r *http.Request, eventType string, userID *primitive.ObjectID, success bool, reason, username string) audit.Event {
	e := audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     eventType,
		UserID:        userID,
		IP:            ratelimit.ClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       success,
		FailureReason: reason,
	}
	if username != "" {
		e.Details = map[string]string{"username": username}
	}
	return e
}

func adminEvent(r *http.Request, eventType string, actorID primitive.ObjectID, userID *primitive.ObjectID, details map[string]string) audit.Event {
	return audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: eventType,
		UserID:    userID,
		ActorID:   &actorID,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   details,
	}
}

func birdDetails(birdID primitive.ObjectID, commonName string) map[string]string {
	d := map[string]string{"bird_id": birdID.Hex()}
	if commonName != "" {
		d["common_name"] = commonName
	}
	return d
}
