package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"chemstock_system/internal/cache"
	"chemstock_system/internal/config"
	"chemstock_system/internal/observability"
	"chemstock_system/internal/stock"
)

// Handler carries the shared dependencies for all endpoint handlers.
type Handler struct {
	Pool    *pgxpool.Pool
	Cache   cache.Cache
	Logger  *slog.Logger
	Engine  *stock.Engine
	Store   stock.Store
	Metrics *observability.Metrics
	Cfg     *config.Config
}

func NewHandler(pool *pgxpool.Pool, c cache.Cache, logger *slog.Logger, engine *stock.Engine, store stock.Store, metrics *observability.Metrics, cfg *config.Config) *Handler {
	return &Handler{
		Pool:    pool,
		Cache:   c,
		Logger:  logger,
		Engine:  engine,
		Store:   store,
		Metrics: metrics,
		Cfg:     cfg,
	}
}

// ObserveEngineOp records an engine operation metric if metrics are wired.
func (h *Handler) ObserveEngineOp(operation, outcome string) {
	if h.Metrics != nil {
		h.Metrics.ObserveEngineOp(operation, outcome)
	}
}

// RespondStockError maps engine errors onto HTTP responses. Validation
// and stock failures are the caller's fault; not-found gets 404; the
// rest is reported generically and logged with detail server-side.
func (h *Handler) RespondStockError(w http.ResponseWriter, err error) {
	var verr *stock.ValidationError
	if errors.As(err, &verr) {
		config.RespondJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": verr.Message,
			"code":    string(verr.Code),
		})
		return
	}

	var ise *stock.InsufficientStockError
	if errors.As(err, &ise) {
		config.RespondJSON(w, http.StatusBadRequest, map[string]any{
			"success":   false,
			"message":   ise.Error(),
			"code":      "InsufficientStock",
			"required":  ise.Required,
			"available": ise.Available,
		})
		return
	}

	var mnf *stock.MaterialNotFoundError
	if errors.As(err, &mnf) {
		config.RespondJSON(w, http.StatusNotFound, map[string]any{
			"success": false,
			"message": mnf.Error(),
			"code":    "MaterialNotFound",
		})
		return
	}

	var bnf *stock.BatchNotFoundError
	if errors.As(err, &bnf) {
		config.RespondJSON(w, http.StatusNotFound, map[string]any{
			"success": false,
			"message": bnf.Error(),
			"code":    "BatchNotFound",
		})
		return
	}

	if errors.Is(err, stock.ErrConcurrencyConflict) {
		h.Logger.Warn("stock operation lost a lock race", "error", err)
		config.RespondJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "The operation conflicted with a concurrent change, please retry",
		})
		return
	}

	h.Logger.Error("stock operation failed", "error", err)
	config.RespondJSON(w, http.StatusInternalServerError, map[string]any{
		"success": false,
		"message": "An unexpected error occurred",
	})
}
