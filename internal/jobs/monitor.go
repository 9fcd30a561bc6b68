package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"chemstock_system/internal/observability"
)

// LowStockMonitorConfig holds configuration for the low-stock monitor
type LowStockMonitorConfig struct {
	// Interval between scans
	// Default: 5 minutes
	Interval time.Duration

	// Logger for scan results
	Logger *slog.Logger
}

// LowStockMonitor periodically counts raw materials at or below their
// reorder level and publishes the count as a Prometheus gauge.
type LowStockMonitor struct {
	pool     *pgxpool.Pool
	metrics  *observability.Metrics
	interval time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewLowStockMonitor creates a monitor; call Start to begin scanning.
func NewLowStockMonitor(pool *pgxpool.Pool, metrics *observability.Metrics, cfg *LowStockMonitorConfig) *LowStockMonitor {
	interval := 5 * time.Minute
	var logger *slog.Logger
	if cfg != nil {
		if cfg.Interval > 0 {
			interval = cfg.Interval
		}
		logger = cfg.Logger
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LowStockMonitor{
		pool:     pool,
		metrics:  metrics,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start launches the scan loop. An immediate scan runs first so the
// gauge is populated before the first interval elapses.
func (m *LowStockMonitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	go func() {
		defer close(m.done)

		m.scan(ctx)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.scan(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	m.logger.Info("low stock monitor started", "interval", m.interval.String())
}

// Stop halts the scan loop and waits for it to exit.
func (m *LowStockMonitor) Stop(ctx context.Context) error {
	if m.cancel == nil {
		return nil
	}
	m.cancel()
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *LowStockMonitor) scan(ctx context.Context) {
	scanCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var count int
	err := m.pool.QueryRow(scanCtx, `
		SELECT count(*)
		FROM raw_materials
		WHERE reorder_level IS NOT NULL
		  AND quantity_on_hand <= reorder_level`).Scan(&count)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Warn("low stock scan failed", "error", err)
		}
		return
	}

	m.metrics.SetLowStockCount(count)
	if count > 0 {
		m.logger.Warn("materials below reorder level", "count", count)
	}
}
