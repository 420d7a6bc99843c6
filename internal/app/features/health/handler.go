package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/lessonsync/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Pinger reports whether the document store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Status reports on background workers. Nil means no worker is running.
type Status interface {
	Running() bool
}

// MongoPinger pings the primary of a Mongo deployment.
type MongoPinger struct {
	Client *mongo.Client
}

func (p MongoPinger) Ping(ctx context.Context) error {
	return p.Client.Ping(ctx, readpref.Primary())
}

// Handler holds dependencies needed for health checks.
type Handler struct {
	DB     Pinger
	Stream Status
	Log    *zap.Logger
}

// NewHandler constructs a health Handler. stream may be nil.
func NewHandler(db Pinger, stream Status, logger *zap.Logger) *Handler {
	return &Handler{DB: db, Stream: stream, Log: logger}
}

type healthResponse struct {
	Status       string `json:"status"`
	Database     string `json:"database"`
	ChangeStream string `json:"change_stream,omitempty"`
	Message      string `json:"message,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "change_stream":"running" }
//
// On DB failure: 503 and
//
//	{ "status":"error", "message":"Database unavailable", "error":"…"}
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Database: "connected",
	}
	if h.Stream != nil {
		resp.ChangeStream = "stopped"
		if h.Stream.Running() {
			resp.ChangeStream = "running"
		}
	}

	if err := h.DB.Ping(ctx); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	_ = json.NewEncoder(w).Encode(resp)
}
