package middlewares

import (
	"log/slog"
	"net/http"
	"time"
)

// responseWriter wraps http.ResponseWriter to capture status and size.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(data []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(data)
	rw.bytesWritten += int64(n)
	return n, err
}

// LoggerConfig holds configuration for the request logging middleware
type LoggerConfig struct {
	// Logger is the structured logger instance
	// Default: slog.Default()
	Logger *slog.Logger

	// SkipPaths are paths excluded from logging (health checks, metrics)
	SkipPaths []string

	// IncludeQueryParams controls whether the raw query string is logged
	IncludeQueryParams bool
}

// DefaultLoggerConfig returns production-ready logging defaults
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		Logger:             slog.Default(),
		SkipPaths:          []string{"/health/live", "/health/ready", "/metrics", "/favicon.ico"},
		IncludeQueryParams: true,
	}
}

// Logger returns a middleware that logs every request with a level
// derived from the response status.
func Logger(config *LoggerConfig) func(http.Handler) http.Handler {
	if config == nil {
		config = DefaultLoggerConfig()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldSkipPath(r.URL.Path, config.SkipPaths) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			fields := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"latency_ms", duration.Milliseconds(),
				"client_ip", r.RemoteAddr,
				"response_size", wrapped.bytesWritten,
			}
			if config.IncludeQueryParams && len(r.URL.RawQuery) > 0 {
				fields = append(fields, "query", r.URL.RawQuery)
			}
			if requestID := RequestIDFromContext(r.Context()); requestID != "" {
				fields = append(fields, "request_id", requestID)
			}

			switch {
			case wrapped.statusCode >= 500:
				config.Logger.Error("server error", fields...)
			case wrapped.statusCode >= 400:
				config.Logger.Warn("client error", fields...)
			default:
				config.Logger.Info("request handled", fields...)
			}
		})
	}
}

func shouldSkipPath(path string, skipPaths []string) bool {
	for _, skip := range skipPaths {
		if path == skip {
			return true
		}
	}
	return false
}
