// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"
	"strings"

	auditfeature "github.com/dalemusser/birdbook/internal/app/features/auditlog"
	authfeature "github.com/dalemusser/birdbook/internal/app/features/auth"
	birdsfeature "github.com/dalemusser/birdbook/internal/app/features/birds"
	groupsfeature "github.com/dalemusser/birdbook/internal/app/features/groups"
	healthfeature "github.com/dalemusser/birdbook/internal/app/features/health"
	internalfeature "github.com/dalemusser/birdbook/internal/app/features/internalapi"
	searchfeature "github.com/dalemusser/birdbook/internal/app/features/search"
	sightingsfeature "github.com/dalemusser/birdbook/internal/app/features/sightings"
	usersfeature "github.com/dalemusser/birdbook/internal/app/features/users"
	userstore "github.com/dalemusser/birdbook/internal/app/store/users"
	"github.com/dalemusser/birdbook/internal/app/system/auth"
	"github.com/dalemusser/birdbook/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// jwtCookie is the cookie the auth token travels in.
const jwtCookie = "jwt"

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed, so the services in wired are ready.
//
// Health is always mounted. The rest depends on the deployment role:
//   - all: everything below
//   - user: /auth, /users, /search, /audit and /internal
//   - post: /sightings
//   - group: /groups
//   - bird: /birds
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	if wired == nil {
		return nil, errors.New("BuildHandler called before Startup")
	}
	svc := wired

	secure := appCfg.CookieSecure || coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.JWTSecret, jwtCookie, appCfg.JWTTTL, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Fetch fresh user data on each request so role changes and deletions
	// take effect before the token expires.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(deps.MongoDatabase))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	// Loads SessionUser into the context when a valid token is present.
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	var cache healthfeature.CachePinger
	if deps.Redis != nil {
		cache = deps.Redis
	}
	healthHandler := healthfeature.NewHandler(deps.MongoClient, cache, appCfg.Service, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Uploaded images when they live on local disk
	if appCfg.StorageType == "local" {
		prefix := "/" + strings.Trim(appCfg.StorageLocalURL, "/")
		r.Handle(prefix+"/*", fileserver.Handler(prefix, appCfg.StorageLocalPath))
	}

	if appCfg.serves(ServiceUser) {
		limiter := ratelimit.NewLoginLimiter()
		if deps.Redis != nil {
			limiter = ratelimit.NewRedisLoginLimiter(deps.Redis, logger)
		}
		authHandler := authfeature.NewHandler(svc.users, svc.images, sessionMgr, limiter, svc.trail, logger)
		r.Mount("/auth", authfeature.Routes(authHandler))

		usersHandler := usersfeature.NewHandler(svc.users, svc.posts, svc.images, svc.trail, logger)
		r.Mount("/users", usersfeature.Routes(usersHandler))

		searchHandler := searchfeature.NewHandler(svc.search, svc.images, logger)
		r.Mount("/search", searchfeature.Routes(searchHandler))

		r.Mount("/audit", auditfeature.Routes(auditfeature.NewHandler(deps.MongoDatabase, logger)))

		internalHandler := internalfeature.NewHandler(svc.users, appCfg.InternalToken, logger)
		r.Mount("/internal", internalfeature.Routes(internalHandler))
	}

	if appCfg.serves(ServicePost) {
		r.Mount("/sightings", sightingsfeature.Routes(sightingsfeature.NewHandler(svc.posts, logger)))
	}

	if appCfg.serves(ServiceGroup) {
		r.Mount("/groups", groupsfeature.Routes(groupsfeature.NewHandler(svc.groups, logger)))
	}

	if appCfg.serves(ServiceBird) {
		r.Mount("/birds", birdsfeature.Routes(birdsfeature.NewHandler(svc.birds, svc.trail, logger)))
	}

	logger.Info("routes mounted", zap.String("service", appCfg.Service))
	return r, nil
}
