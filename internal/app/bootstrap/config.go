// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/birdbook/internal/app/system/auditlog"
	"github.com/dalemusser/birdbook/internal/app/system/timeouts"
	"github.com/dalemusser/birdbook/internal/app/xref"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

const (
	devJWTSecret     = "dev-only-change-me-please-0123456789ABCDEF"
	devInternalToken = "dev-internal-token"
)

// appConfigKeys defines the configuration keys for birdbook.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, service, etc.
//   - Environment variables: BIRDBOOK_MONGO_URI, BIRDBOOK_SERVICE, etc.
//   - Command-line flags: --mongo_uri, --service, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "birdbook", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Deployment
	{Name: "service", Default: ServiceAll, Desc: "Deployment role: all, user, post, group or bird"},
	{Name: "user_service_url", Default: "", Desc: "Base URL of the user service (required for post and group roles)"},
	{Name: "internal_token", Default: devInternalToken, Desc: "Shared secret for /internal propagation endpoints"},

	// Back-reference behaviour
	{Name: "array_updates", Default: string(xref.ReadModifyWrite), Desc: "Array field writes: 'rmw' (read-modify-write) or 'atomic'"},
	{Name: "propagate_on_approve", Default: false, Desc: "Approving a join request also appends the group to the user's groups"},

	// Auth
	{Name: "jwt_secret", Default: devJWTSecret, Desc: "HS256 signing secret (must be strong in production)"},
	{Name: "jwt_ttl", Default: "168h", Desc: "Auth token lifetime"},
	{Name: "cookie_secure", Default: false, Desc: "Set the Secure flag on the jwt cookie"},
	{Name: "super_username", Default: "", Desc: "Username created or promoted to SUPER on startup"},
	{Name: "super_password", Default: "", Desc: "Password for super_username when it has to be created"},

	// File storage
	{Name: "storage_type", Default: "local", Desc: "Storage backend: 'local' or 's3'"},
	{Name: "storage_local_path", Default: "./uploads", Desc: "Local storage path for uploaded images"},
	{Name: "storage_local_url", Default: "/files", Desc: "URL prefix for serving local files"},
	{Name: "storage_s3_region", Default: "", Desc: "AWS region for S3"},
	{Name: "storage_s3_bucket", Default: "", Desc: "S3 bucket name"},
	{Name: "storage_s3_prefix", Default: "", Desc: "S3 key prefix"},
	{Name: "presign_ttl", Default: "1h", Desc: "Lifetime of presigned image URLs"},

	// Redis
	{Name: "redis_addr", Default: "", Desc: "Redis address for the presigned-URL cache (blank disables)"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis database number"},

	// Background work
	{Name: "audit_interval", Default: "0s", Desc: "Stale back-reference audit period (0 disables)"},

	// Security audit trail
	{Name: "audit_auth", Default: "all", Desc: "Login/logout/signup events: all, db, log or off"},
	{Name: "audit_admin", Default: "all", Desc: "Role change, user deletion and catalogue events: all, db, log or off"},

	// Timeouts (0 keeps the built-in default)
	{Name: "timeout_ping", Default: "0s", Desc: "Health check timeout"},
	{Name: "timeout_short", Default: "0s", Desc: "Single-document operation timeout"},
	{Name: "timeout_medium", Default: "0s", Desc: "List and search timeout"},
	{Name: "timeout_long", Default: "0s", Desc: "Upload and multi-service write timeout"},
	{Name: "timeout_remote", Default: "0s", Desc: "Inter-service HTTP call timeout"},
	{Name: "timeout_audit", Default: "0s", Desc: "Reference audit pass timeout"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, BIRDBOOK_* for app) and
// command-line flags, merged with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "BIRDBOOK", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		Service:        strings.ToLower(strings.TrimSpace(appValues.String("service"))),
		UserServiceURL: strings.TrimRight(appValues.String("user_service_url"), "/"),
		InternalToken:  appValues.String("internal_token"),

		ArrayUpdates:       xref.Mode(strings.ToLower(strings.TrimSpace(appValues.String("array_updates")))),
		PropagateOnApprove: appValues.Bool("propagate_on_approve"),

		JWTSecret:     appValues.String("jwt_secret"),
		JWTTTL:        appValues.Duration("jwt_ttl", 168*time.Hour),
		CookieSecure:  appValues.Bool("cookie_secure"),
		SuperUsername: strings.TrimSpace(appValues.String("super_username")),
		SuperPassword: appValues.String("super_password"),

		StorageType:      strings.ToLower(strings.TrimSpace(appValues.String("storage_type"))),
		StorageLocalPath: appValues.String("storage_local_path"),
		StorageLocalURL:  appValues.String("storage_local_url"),
		StorageS3Region:  appValues.String("storage_s3_region"),
		StorageS3Bucket:  appValues.String("storage_s3_bucket"),
		StorageS3Prefix:  appValues.String("storage_s3_prefix"),
		PresignTTL:       appValues.Duration("presign_ttl", time.Hour),

		RedisAddr:     appValues.String("redis_addr"),
		RedisPassword: appValues.String("redis_password"),
		RedisDB:       appValues.Int("redis_db"),

		AuditInterval: appValues.Duration("audit_interval", 0),
		AuditLog: auditlog.Config{
			Auth:  strings.ToLower(strings.TrimSpace(appValues.String("audit_auth"))),
			Admin: strings.ToLower(strings.TrimSpace(appValues.String("audit_admin"))),
		},

		Timeouts: timeouts.Config{
			Ping:   appValues.Duration("timeout_ping", 0),
			Short:  appValues.Duration("timeout_short", 0),
			Medium: appValues.Duration("timeout_medium", 0),
			Long:   appValues.Duration("timeout_long", 0),
			Remote: appValues.Duration("timeout_remote", 0),
			Audit:  appValues.Duration("timeout_audit", 0),
		},
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// The MongoDB URI is checked here so a typo fails before any connection
// attempt; the enum keys are checked so a bad deployment role never
// mounts a half-wired router.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	return validateApp(coreCfg.Env == "prod", appCfg)
}

// validateApp holds the checks that do not need WAFFLE's core config.
func validateApp(prod bool, appCfg AppConfig) error {
	switch appCfg.Service {
	case ServiceAll, ServiceUser, ServicePost, ServiceGroup, ServiceBird:
	default:
		return fmt.Errorf("service must be one of all, user, post, group, bird; got %q", appCfg.Service)
	}

	if _, err := xref.ParseMode(string(appCfg.ArrayUpdates)); err != nil {
		return err
	}

	switch appCfg.StorageType {
	case "local":
	case "s3":
		if appCfg.StorageS3Bucket == "" || appCfg.StorageS3Region == "" {
			return fmt.Errorf("storage_type s3 requires storage_s3_region and storage_s3_bucket")
		}
	default:
		return fmt.Errorf("storage_type must be \"local\" or \"s3\", got %q", appCfg.StorageType)
	}

	if !appCfg.ownsUsers() && appCfg.Service != ServiceBird && appCfg.UserServiceURL == "" {
		return fmt.Errorf("service %q requires user_service_url", appCfg.Service)
	}

	for key, dest := range map[string]string{"audit_auth": appCfg.AuditLog.Auth, "audit_admin": appCfg.AuditLog.Admin} {
		if dest != "" && !auditlog.ValidDestination(dest) {
			return fmt.Errorf("%s must be one of all, db, log, off; got %q", key, dest)
		}
	}

	if appCfg.SuperUsername != "" && appCfg.SuperPassword == "" {
		return fmt.Errorf("super_username requires super_password")
	}

	if prod {
		if len(appCfg.JWTSecret) < 32 || appCfg.JWTSecret == devJWTSecret {
			return fmt.Errorf("jwt_secret must be at least 32 characters and not the development default in production")
		}
		if appCfg.Service != ServiceAll && appCfg.InternalToken == devInternalToken {
			return fmt.Errorf("internal_token must be changed from the development default in production")
		}
	}
	return nil
}
