package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/birdbook/internal/app/system/timeouts"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// MongoPinger is satisfied by *mongo.Client.
type MongoPinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

// CachePinger is satisfied by *redis.Client.
type CachePinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// Handler holds dependencies needed for health checks.
type Handler struct {
	Mongo   MongoPinger
	Cache   CachePinger // nil when Redis is not configured
	Service string
	Log     *zap.Logger
}

// NewHandler constructs a health Handler. cache may be nil.
func NewHandler(mongo MongoPinger, cache CachePinger, service string, logger *zap.Logger) *Handler {
	return &Handler{
		Mongo:   mongo,
		Cache:   cache,
		Service: service,
		Log:     logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Database string `json:"database"`
	Cache    string `json:"cache"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "service":"all", "database":"connected", "cache":"connected" }
//
// "cache" is "disabled" when Redis is not configured. On Mongo or Redis
// failure: 503 with status "error" and the failing dependency named.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Service:  h.Service,
		Database: "connected",
		Cache:    "disabled",
	}

	if err := h.Mongo.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
	}

	if h.Cache != nil {
		resp.Cache = "connected"
		if err := h.Cache.Ping(ctx).Err(); err != nil {
			h.Log.Error("health-check: redis ping failed", zap.Error(err))
			resp.Cache = "disconnected"
			if resp.Status == "ok" {
				resp.Status = "error"
				resp.Message = "Cache unavailable"
				resp.Error = err.Error()
			}
		}
	}

	if resp.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
