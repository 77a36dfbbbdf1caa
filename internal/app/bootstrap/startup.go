// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/birdbook/internal/app/client/userclient"
	"github.com/dalemusser/birdbook/internal/app/enrich"
	birdsvc "github.com/dalemusser/birdbook/internal/app/services/birds"
	groupsvc "github.com/dalemusser/birdbook/internal/app/services/groups"
	postsvc "github.com/dalemusser/birdbook/internal/app/services/posts"
	searchsvc "github.com/dalemusser/birdbook/internal/app/services/search"
	usersvc "github.com/dalemusser/birdbook/internal/app/services/users"
	birdstore "github.com/dalemusser/birdbook/internal/app/store/birds"
	groupstore "github.com/dalemusser/birdbook/internal/app/store/groups"
	poststore "github.com/dalemusser/birdbook/internal/app/store/posts"
	userstore "github.com/dalemusser/birdbook/internal/app/store/users"
	"github.com/dalemusser/birdbook/internal/app/store/audit"
	"github.com/dalemusser/birdbook/internal/app/system/apperr"
	"github.com/dalemusser/birdbook/internal/app/system/auditlog"
	"github.com/dalemusser/birdbook/internal/app/system/objectstore"
	"github.com/dalemusser/birdbook/internal/app/system/timeouts"
	"github.com/dalemusser/birdbook/internal/app/system/workers"
	"github.com/dalemusser/birdbook/internal/app/xref"
	"github.com/dalemusser/birdbook/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// services is everything BuildHandler mounts, built once in Startup.
type services struct {
	files  objectstore.Store
	images *enrich.Images

	users  *usersvc.Service
	posts  *postsvc.Service
	groups *groupsvc.Service
	birds  *birdsvc.Service
	search *searchsvc.Service

	trail *auditlog.Logger
	audit *workers.ReferenceAudit
}

// wired holds the services between Startup, BuildHandler and Shutdown.
var wired *services

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
//
// It applies the configured timeouts, opens object storage, wires the
// entity services for this deployment role, makes sure the bootstrap SUPER
// account exists and starts the reference audit worker.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(appCfg.Timeouts)
	cur := timeouts.Current()
	logger.Info("timeouts configured",
		zap.Duration("ping", cur.Ping),
		zap.Duration("short", cur.Short),
		zap.Duration("medium", cur.Medium),
		zap.Duration("long", cur.Long),
		zap.Duration("remote", cur.Remote))

	svc, err := buildServices(ctx, appCfg, deps, logger)
	if err != nil {
		return err
	}

	if appCfg.ownsUsers() && appCfg.SuperUsername != "" {
		if err := ensureSuperUser(ctx, deps.MongoDatabase, appCfg.SuperUsername, appCfg.SuperPassword, logger); err != nil {
			return err
		}
	}

	if appCfg.ownsUsers() && appCfg.AuditInterval > 0 {
		svc.audit = workers.NewReferenceAudit(
			userstore.New(deps.MongoDatabase),
			poststore.New(deps.MongoDatabase),
			groupstore.New(deps.MongoDatabase),
			logger,
			appCfg.AuditInterval,
		)
		svc.audit.Start()
	}

	wired = svc
	return nil
}

// buildServices wires the entity services over the Mongo stores. When this
// process does not own the user store, author snapshots and back-reference
// propagation go through the user service over HTTP.
func buildServices(ctx context.Context, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (*services, error) {
	db := deps.MongoDatabase
	mode, err := xref.ParseMode(string(appCfg.ArrayUpdates))
	if err != nil {
		return nil, err
	}

	files, err := objectstore.New(ctx, objectstore.Config{
		Type:      appCfg.StorageType,
		LocalPath: appCfg.StorageLocalPath,
		LocalURL:  appCfg.StorageLocalURL,
		S3Region:  appCfg.StorageS3Region,
		S3Bucket:  appCfg.StorageS3Bucket,
		S3Prefix:  appCfg.StorageS3Prefix,
	})
	if err != nil {
		logger.Error("object storage init failed", zap.Error(err))
		return nil, err
	}
	images := enrich.NewImages(files, appCfg.PresignTTL, deps.Redis, logger)

	users := userstore.New(db)
	posts := poststore.New(db)
	groups := groupstore.New(db)
	birds := birdstore.New(db)

	s := &services{
		files:  files,
		images: images,
		trail:  auditlog.New(audit.New(db), logger, appCfg.AuditLog),
	}
	s.users = usersvc.New(usersvc.Deps{
		Users:  users,
		Posts:  posts,
		Groups: groups,
		Birds:  birds,
		Files:  files,
		Mode:   mode,
		Log:    logger,
	})

	var (
		authors xref.Snapshotter
		prop    xref.Propagator
	)
	if appCfg.ownsUsers() || appCfg.Service == ServiceBird {
		authors = xref.SnapshotFunc(s.users.Snapshot)
		prop = xref.Local{Ledger: s.users}
	} else {
		client, err := userclient.New(appCfg.UserServiceURL, appCfg.InternalToken, nil, logger)
		if err != nil {
			return nil, err
		}
		authors = xref.SnapshotFunc(client.GetUser)
		prop = xref.Remote{Client: client}
		logger.Info("propagating through the user service", zap.String("url", appCfg.UserServiceURL))
	}

	s.posts = postsvc.New(postsvc.Deps{
		Posts:      posts,
		Users:      users,
		Authors:    authors,
		Propagator: prop,
		Birds:      birds,
		Images:     images,
		Files:      files,
		Mode:       mode,
		Log:        logger,
	})
	s.groups = groupsvc.New(groupsvc.Deps{
		Groups:             groups,
		Authors:            authors,
		Propagator:         prop,
		Images:             images,
		Files:              files,
		Mode:               mode,
		Log:                logger,
		PropagateOnApprove: appCfg.PropagateOnApprove,
	})
	s.birds = birdsvc.New(birds, images, files, logger)
	s.search = searchsvc.New(s.birds, s.users, s.posts, s.groups)

	logger.Info("services wired",
		zap.String("service", appCfg.Service),
		zap.String("array_updates", string(mode)),
		zap.Bool("propagate_on_approve", appCfg.PropagateOnApprove))
	return s, nil
}

// ensureSuperUser makes sure the configured account exists with the SUPER
// role. An existing account is promoted and keeps its password; a missing
// one is created with the configured password.
func ensureSuperUser(ctx context.Context, db *mongo.Database, username, password string, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	store := userstore.New(db)
	u, err := store.GetByUsername(ctx, username)
	switch {
	case err == nil:
		if u.Role == models.RoleSuper {
			return nil
		}
		u.Role = models.RoleSuper
		if err := store.Save(ctx, u); err != nil {
			return fmt.Errorf("promote %q: %w", username, err)
		}
		logger.Info("promoted user to SUPER", zap.String("username", username))
		return nil
	case !errors.Is(err, apperr.ErrNotFound):
		return fmt.Errorf("look up %q: %w", username, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	created, err := store.Create(ctx, models.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         models.RoleSuper,
	})
	if err != nil {
		return fmt.Errorf("create %q: %w", username, err)
	}
	logger.Info("created SUPER user", zap.String("username", username), zap.String("user_id", created.ID.Hex()))
	return nil
}
