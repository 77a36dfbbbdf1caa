// internal/app/features/auditlog/handler.go
package auditlog

import (
	"github.com/dalemusser/birdbook/internal/app/store/audit"
	userstore "github.com/dalemusser/birdbook/internal/app/store/users"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Events *audit.Store
	Users  *userstore.Store
	Log    *zap.Logger
}

// NewHandler constructs an audit log handler bound to the given Mongo
// database and logger.
func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		Events: audit.New(db),
		Users:  userstore.New(db),
		Log:    logger,
	}
}
