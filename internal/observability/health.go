package observability

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"chemstock_system/internal/config"
)

// HealthConfig holds configuration for the health endpoints
type HealthConfig struct {
	// Pool is the database pool checked by the readiness probe
	Pool *pgxpool.Pool

	// Logger for probe failures
	Logger *slog.Logger

	// Version reported in health responses
	Version string
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	version string
	started time.Time
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(cfg *HealthConfig) *HealthHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{
		pool:    cfg.Pool,
		logger:  logger,
		version: cfg.Version,
		started: time.Now(),
	}
}

// Live reports process liveness. It never touches dependencies.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	config.RespondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	})
}

// Ready reports whether the service can do real work: the database
// must answer a ping.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := config.HealthCheck(r.Context(), h.pool); err != nil {
		h.logger.Warn("readiness probe failed", "error", err)
		config.RespondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"checks": map[string]string{"database": "failed"},
		})
		return
	}

	config.RespondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"checks": map[string]string{"database": "ok"},
	})
}
