package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Counter interface {
	Len() int
}

type RouteCounter interface {
	Routes() int
}

type HealthHandler struct {
	db        *sql.DB
	endpoints EndpointService
	routes    RouteCounter
	observers Counter
	logger    *zap.Logger
}

// NewHealthHandler builds the health check. db may be nil when the archive
// is disabled.
func NewHealthHandler(db *sql.DB, endpoints EndpointService, routes RouteCounter, observers Counter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:        db,
		endpoints: endpoints,
		routes:    routes,
		observers: observers,
		logger:    logger,
	}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"endpoints": h.endpoints.Count(),
		"routes":    h.routes.Routes(),
		"observers": h.observers.Len(),
		"database":  "disabled",
	}

	if h.db == nil {
		respondWithJson(w, http.StatusOK, data)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	// Ping database untuk memeriksa koneksi
	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Warn("health check failed: database connection error", zap.Error(err))
		data["status"] = "degraded"
		data["database"] = "unavailable"
		respondWithJson(w, http.StatusServiceUnavailable, data)
		return
	}

	data["database"] = "ok"
	respondWithJson(w, http.StatusOK, data)
}
