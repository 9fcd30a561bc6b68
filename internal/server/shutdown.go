package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Resource is anything that needs closing during shutdown (database
// pool, cache connection, background job).
type Resource struct {
	// Name identifies the resource in shutdown logs
	Name string

	// Close releases the resource; called after the HTTP server stops
	// accepting requests.
	Close func(ctx context.Context) error
}

// ShutdownConfig holds graceful shutdown configuration
type ShutdownConfig struct {
	// Logger for shutdown progress
	Logger *slog.Logger

	// Timeout bounds the whole shutdown: draining HTTP plus closing
	// resources.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultShutdownConfig returns sensible shutdown defaults
func DefaultShutdownConfig() *ShutdownConfig {
	return &ShutdownConfig{
		Logger:  slog.Default(),
		Timeout: 30 * time.Second,
	}
}

// RunWithResources serves until SIGINT or SIGTERM, then drains the
// HTTP server and closes the resources in the order given.
func RunWithResources(srv *http.Server, resources []Resource, config *ShutdownConfig) error {
	if config == nil {
		config = DefaultShutdownConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-quit:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	// Stop accepting new requests; in-flight handlers (and their
	// transactions) get until the deadline to finish.
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown failed", "error", err)
	} else {
		logger.Info("http server drained")
	}

	var firstErr error
	for _, res := range resources {
		logger.Info("closing resource", "name", res.Name)
		if err := res.Close(ctx); err != nil {
			logger.Error("resource close failed", "name", res.Name, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("close %s: %w", res.Name, err)
			}
		}
	}

	if firstErr != nil {
		return firstErr
	}
	logger.Info("shutdown complete")
	return nil
}
