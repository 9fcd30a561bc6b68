package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig holds configuration for the Prometheus middleware
type MetricsConfig struct {
	// Namespace for all metrics (e.g., "chemstock")
	Namespace string

	// Buckets for the request duration histogram
	Buckets []float64

	// SkipPaths are paths that should not be metered
	SkipPaths []string
}

// DefaultMetricsConfig returns a default metrics configuration
func DefaultMetricsConfig(namespace string) *MetricsConfig {
	return &MetricsConfig{
		Namespace: namespace,
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		SkipPaths: []string{"/metrics", "/health/live", "/health/ready"},
	}
}

// Metrics holds the Prometheus collectors.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	activeRequests  prometheus.Gauge

	engineOpsTotal *prometheus.CounterVec
	lowStockGauge  prometheus.Gauge
}

// NewMetrics creates and registers the Prometheus collectors.
func NewMetrics(config *MetricsConfig) *Metrics {
	if config == nil {
		config = DefaultMetricsConfig("app")
	}

	return &Metrics{
		requestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   config.Buckets,
			},
			[]string{"method", "path", "status"},
		),
		activeRequests: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Subsystem: "http",
				Name:      "requests_active",
				Help:      "Number of in-flight HTTP requests",
			},
		),
		engineOpsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: "stock",
				Name:      "engine_operations_total",
				Help:      "Batch reconciliation operations by type and outcome",
			},
			[]string{"operation", "outcome"},
		),
		lowStockGauge: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Subsystem: "stock",
				Name:      "materials_below_reorder_level",
				Help:      "Number of raw materials at or below their reorder level",
			},
		),
	}
}

// ObserveEngineOp records one reconciliation operation.
// operation: create|update|delete, outcome: ok|rejected|error.
func (m *Metrics) ObserveEngineOp(operation, outcome string) {
	m.engineOpsTotal.WithLabelValues(operation, outcome).Inc()
}

// SetLowStockCount updates the low-stock gauge.
func (m *Metrics) SetLowStockCount(n int) {
	m.lowStockGauge.Set(float64(n))
}

// Middleware returns a middleware that meters every request.
func (m *Metrics) Middleware(config *MetricsConfig) func(http.Handler) http.Handler {
	if config == nil {
		config = DefaultMetricsConfig("app")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, path := range config.SkipPaths {
				if r.URL.Path == path {
					next.ServeHTTP(w, r)
					return
				}
			}

			m.activeRequests.Inc()
			defer m.activeRequests.Dec()

			start := time.Now()
			wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			status := strconv.Itoa(wrapped.statusCode)
			m.requestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			m.requestDuration.WithLabelValues(r.Method, r.URL.Path, status).
				Observe(time.Since(start).Seconds())
		})
	}
}

// Handler returns the /metrics scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
