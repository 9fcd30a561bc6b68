package server

import (
	"log/slog"
	"net/http"
	"time"
)

// Config holds HTTP server configuration
type Config struct {
	// Addr is the listen address (host:port)
	Addr string

	// Logger for structured logging
	Logger *slog.Logger

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out response writes
	WriteTimeout time.Duration

	// IdleTimeout is the maximum time to wait for the next request
	IdleTimeout time.Duration

	// MaxHeaderBytes limits request header size
	MaxHeaderBytes int

	// ShutdownTimeout bounds graceful shutdown; in-flight batch
	// transactions either finish or roll back atomically within it.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a default server configuration
func DefaultConfig(addr string) *Config {
	return &Config{
		Addr:            addr,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: 30 * time.Second,
	}
}

// New creates an HTTP server with the given configuration.
func New(handler http.Handler, config *Config) *http.Server {
	if config == nil {
		config = DefaultConfig(":8080")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	srv := &http.Server{
		Addr:           config.Addr,
		Handler:        handler,
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	logger.Info("http server configured",
		"addr", config.Addr,
		"read_timeout", config.ReadTimeout.String(),
		"write_timeout", config.WriteTimeout.String(),
	)

	return srv
}

// Start runs the server until SIGINT/SIGTERM, then shuts down
// gracefully and closes the given resources in order.
func Start(handler http.Handler, config *Config, resources []Resource) error {
	if config == nil {
		config = DefaultConfig(":8080")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	srv := New(handler, config)

	return RunWithResources(srv, resources, &ShutdownConfig{
		Logger:  logger,
		Timeout: config.ShutdownTimeout,
	})
}
