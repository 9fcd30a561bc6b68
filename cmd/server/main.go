package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"chemstock_system/internal/cache"
	"chemstock_system/internal/config"
	"chemstock_system/internal/database"
	"chemstock_system/internal/handlers"
	"chemstock_system/internal/jobs"
	"chemstock_system/internal/observability"
	"chemstock_system/internal/router"
	"chemstock_system/internal/server"
	"chemstock_system/internal/stock"
)

const version = "1.0.0"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadConfig(logger)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.App.LogLevel),
	}))
	slog.SetDefault(logger)

	pool, err := config.NewPool(config.PoolConfigFromSettings(cfg.Database, logger))
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = database.Migrate(migrateCtx, pool, logger)
	cancel()
	if err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	appCache := buildCache(cfg, logger)

	validator := stock.NewCompositionValidator(&stock.ValidatorConfig{
		SumTolerance: decimal.NewFromFloat(cfg.Stock.PercentSumTolerance),
	})
	store := stock.NewPostgresStore(pool)
	engine := stock.NewEngine(store, validator, logger)

	metrics := observability.NewMetrics(observability.DefaultMetricsConfig(cfg.App.Name))
	health := observability.NewHealthHandler(&observability.HealthConfig{
		Pool:    pool,
		Logger:  logger,
		Version: version,
	})

	h := handlers.NewHandler(pool, appCache, logger, engine, store, metrics, cfg)
	mux := router.New(h, health)

	monitor := jobs.NewLowStockMonitor(pool, metrics, &jobs.LowStockMonitorConfig{
		Interval: cfg.Stock.LowStockCheckInterval,
		Logger:   logger,
	})
	monitor.Start()

	resources := []server.Resource{
		{Name: "low-stock-monitor", Close: monitor.Stop},
		{Name: "cache", Close: func(context.Context) error { return appCache.Close() }},
		{Name: "database", Close: func(ctx context.Context) error {
			return config.GracefulShutdown(pool, cfg.Database.ShutdownTimeout, logger)
		}},
	}

	err = server.Start(mux, &server.Config{
		Addr:            cfg.Server.Addr(),
		Logger:          logger,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, resources)
	if err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

// buildCache connects to Redis when configured, otherwise falls back
// to the in-memory cache.
func buildCache(cfg *config.Config, logger *slog.Logger) cache.Cache {
	if cfg.Redis.Addr == "" {
		logger.Info("no redis configured, using in-memory cache")
		return cache.NewMemoryCache()
	}

	redisCache, err := cache.NewRedisCache(context.Background(), cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Warn("redis unavailable, falling back to in-memory cache", "error", err)
		return cache.NewMemoryCache()
	}

	logger.Info("redis cache connected", "addr", cfg.Redis.Addr)
	return redisCache
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
