package config

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DBConfig holds database connection pool configuration
type DBConfig struct {
	// DatabaseURL is the PostgreSQL connection string
	DatabaseURL string

	// Logger for structured logging (optional, uses slog.Default if nil)
	Logger *slog.Logger

	// MaxConns is the maximum number of connections in the pool
	// Default: 10
	MaxConns int32

	// MinConns is the minimum number of connections in the pool
	// Default: 2
	MinConns int32

	// ConnectTimeout is the timeout for establishing connections
	// Default: 10 seconds
	ConnectTimeout time.Duration

	// MaxRetries is the maximum number of connection attempts
	// Default: 3
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts
	// Uses exponential backoff
	// Default: 1 second
	RetryDelay time.Duration
}

// DefaultDBConfig returns a default database pool configuration
func DefaultDBConfig(databaseURL string) *DBConfig {
	return &DBConfig{
		DatabaseURL:    databaseURL,
		MaxConns:       10,
		MinConns:       2,
		ConnectTimeout: 10 * time.Second,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// PoolConfigFromSettings builds a DBConfig from loaded settings.
func PoolConfigFromSettings(db DatabaseConfig, logger *slog.Logger) *DBConfig {
	cfg := DefaultDBConfig(db.URL)
	cfg.Logger = logger
	if db.MaxConns > 0 {
		cfg.MaxConns = db.MaxConns
	}
	if db.MinConns > 0 {
		cfg.MinConns = db.MinConns
	}
	if db.ConnectTimeout > 0 {
		cfg.ConnectTimeout = db.ConnectTimeout
	}
	if db.MaxRetries > 0 {
		cfg.MaxRetries = db.MaxRetries
	}
	if db.RetryDelay > 0 {
		cfg.RetryDelay = db.RetryDelay
	}
	return cfg
}

// NewPool creates a database connection pool, retrying with exponential
// backoff until the database answers a ping or retries are exhausted.
func NewPool(config *DBConfig) (*pgxpool.Pool, error) {
	if config == nil {
		return nil, fmt.Errorf("database config cannot be nil")
	}
	if config.DatabaseURL == "" {
		return nil, fmt.Errorf("database URL cannot be empty")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	poolConfig, err := pgxpool.ParseConfig(config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	poolConfig.MaxConns = config.MaxConns
	poolConfig.MinConns = config.MinConns
	if config.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = config.ConnectTimeout
	}

	var lastErr error
	for attempt := 1; attempt <= config.MaxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		cancel()
		if err == nil {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
			err = pool.Ping(pingCtx)
			pingCancel()
			if err == nil {
				logger.Info("database connection pool established",
					"attempt", attempt,
					"max_conns", config.MaxConns,
				)
				return pool, nil
			}
			pool.Close()
		}

		lastErr = fmt.Errorf("attempt %d/%d: %w", attempt, config.MaxRetries, err)
		logger.Warn("database connection failed",
			"attempt", attempt,
			"max_retries", config.MaxRetries,
			"error", err,
		)
		if attempt < config.MaxRetries {
			delay := calculateBackoff(config.RetryDelay, attempt)
			logger.Info("retrying database connection", "delay", delay.String())
			time.Sleep(delay)
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", config.MaxRetries, lastErr)
}

// calculateBackoff returns baseDelay * 2^(attempt-1), capped at 30s.
func calculateBackoff(baseDelay time.Duration, attempt int) time.Duration {
	delay := time.Duration(float64(baseDelay) * math.Pow(2, float64(attempt-1)))
	if maxDelay := 30 * time.Second; delay > maxDelay {
		return maxDelay
	}
	return delay
}

// HealthCheck pings the pool with a short timeout.
func HealthCheck(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("pool is nil")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// GracefulShutdown closes the pool, waiting up to timeout for in-flight
// connections to be released.
func GracefulShutdown(pool *pgxpool.Pool, timeout time.Duration, logger *slog.Logger) error {
	if pool == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		pool.Close()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("database connection pool closed")
		return nil
	case <-ctx.Done():
		logger.Warn("database shutdown timeout exceeded")
		return fmt.Errorf("shutdown timeout exceeded")
	}
}
