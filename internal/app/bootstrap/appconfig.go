// internal/app/bootstrap/appconfig.go
package bootstrap

import (
	"time"

	"github.com/dalemusser/birdbook/internal/app/system/auditlog"
	"github.com/dalemusser/birdbook/internal/app/system/timeouts"
	"github.com/dalemusser/birdbook/internal/app/xref"
)

// Deployment roles. "all" runs every service in one process; the others
// run one service and reach the user service over HTTP.
const (
	ServiceAll   = "all"
	ServiceUser  = "user"
	ServicePost  = "post"
	ServiceGroup = "group"
	ServiceBird  = "bird"
)

// AppConfig holds birdbook-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig covers ports, TLS, logging level and the other
// framework settings. Everything here belongs to birdbook: where the data
// lives, which service this process plays, how array fields are written,
// how tokens are signed and where uploaded images go.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Deployment
	Service        string // all | user | post | group | bird
	UserServiceURL string // base URL of the user service when Service is post or group
	InternalToken  string // shared secret for /internal (X-Internal-Token)

	// Back-reference behaviour
	ArrayUpdates       xref.Mode // rmw (default) or atomic
	PropagateOnApprove bool      // approving a join request also appends to User.groups

	// Auth tokens
	JWTSecret    string
	JWTTTL       time.Duration
	CookieSecure bool

	// Bootstrap account, created or promoted to SUPER at startup when set
	SuperUsername string
	SuperPassword string

	// File storage
	StorageType      string // "local" or "s3"
	StorageLocalPath string
	StorageLocalURL  string
	StorageS3Region  string
	StorageS3Bucket  string
	StorageS3Prefix  string
	PresignTTL       time.Duration

	// Redis presigned-URL cache and login limiter (disabled when RedisAddr is blank)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Stale back-reference audit period; 0 disables the worker
	AuditInterval time.Duration

	// Security audit trail destinations: all, db, log or off
	AuditLog auditlog.Config

	Timeouts timeouts.Config
}

// serves reports whether this process mounts the given service's routes.
func (c AppConfig) serves(service string) bool {
	return c.Service == ServiceAll || c.Service == service
}

// ownsUsers reports whether the user store is local to this process.
func (c AppConfig) ownsUsers() bool {
	return c.serves(ServiceUser)
}
