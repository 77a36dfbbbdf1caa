// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/birdbook/internal/app/system/indexes"
	"github.com/dalemusser/birdbook/internal/app/system/timeouts"
	"github.com/dalemusser/birdbook/internal/app/system/validators"
	"github.com/dalemusser/waffle/config"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB opens the MongoDB client and, when configured, a Redis client.
//
// MongoDB is required: a failed ping aborts startup. Redis only backs the
// presigned-URL cache and the login limiter, so a failed ping logs a
// warning and leaves DBDeps.Redis nil.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		logger.Error("MongoDB connect failed", zap.Error(err))
		return DBDeps{}, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeouts.Medium())
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		logger.Error("MongoDB ping failed", zap.Error(err))
		return DBDeps{}, fmt.Errorf("ping mongo: %w", err)
	}
	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase),
		zap.Uint64("max_pool", appCfg.MongoMaxPoolSize))

	return DBDeps{
		MongoClient:   client,
		MongoDatabase: client.Database(appCfg.MongoDatabase),
		Redis:         connectRedis(ctx, appCfg, logger),
	}, nil
}

func connectRedis(ctx context.Context, appCfg AppConfig, logger *zap.Logger) *redis.Client {
	if appCfg.RedisAddr == "" {
		logger.Info("redis disabled")
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     appCfg.RedisAddr,
		Password: appCfg.RedisPassword,
		DB:       appCfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, timeouts.Ping())
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, continuing without it",
			zap.String("addr", appCfg.RedisAddr), zap.Error(err))
		_ = rdb.Close()
		return nil
	}
	logger.Info("connected to redis", zap.String("addr", appCfg.RedisAddr))
	return rdb
}

// EnsureSchema creates the collections, their validators and their indexes.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	return ensureSchema(ctx, deps.MongoDatabase, logger)
}

func ensureSchema(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Long())
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		logger.Error("collection validators failed", zap.Error(err))
		return fmt.Errorf("validators: %w", err)
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		logger.Error("index setup failed", zap.Error(err))
		return fmt.Errorf("indexes: %w", err)
	}
	logger.Info("schema ready")
	return nil
}
