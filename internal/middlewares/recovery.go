package middlewares

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"chemstock_system/internal/config"
)

// RecoveryConfig holds configuration for the panic recovery middleware
type RecoveryConfig struct {
	// Logger for panic reports
	// Default: slog.Default()
	Logger *slog.Logger

	// IncludeStack controls whether stack traces are logged
	// Default: true
	IncludeStack bool
}

// DefaultRecoveryConfig returns sensible recovery defaults
func DefaultRecoveryConfig() *RecoveryConfig {
	return &RecoveryConfig{
		Logger:       slog.Default(),
		IncludeStack: true,
	}
}

// Recovery returns a middleware that converts handler panics into 500
// responses instead of tearing down the connection.
func Recovery(cfg *RecoveryConfig) func(http.Handler) http.Handler {
	if cfg == nil {
		cfg = DefaultRecoveryConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					fields := []any{
						"panic", rec,
						"method", r.Method,
						"path", r.URL.Path,
					}
					if cfg.IncludeStack {
						fields = append(fields, "stack", string(debug.Stack()))
					}
					cfg.Logger.Error("panic recovered", fields...)

					config.RespondJSON(w, http.StatusInternalServerError, config.ErrorResponse{
						Error:   "Internal Server Error",
						Message: "An unexpected error occurred",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
