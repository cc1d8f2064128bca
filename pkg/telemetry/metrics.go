package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the changeover engine.
// All record methods are safe to call on a nil receiver or a disabled
// instance; they simply do nothing.
type Metrics struct {
	config MetricsConfig

	// Resolution metrics
	resolutionsTotal *prometheus.CounterVec

	// Matrix metrics
	matrixBuildsTotal   prometheus.Counter
	matrixBuildDuration prometheus.Histogram
	matrixModels        prometheus.Histogram
	matrixCopiesTotal   prometheus.Counter
	overridesCopied     prometheus.Counter

	// Rule table metrics
	ruleRowsWritten      *prometheus.CounterVec
	validationRejections *prometheus.CounterVec

	// Toggle metrics
	toggleSweepsTotal *prometheus.CounterVec
	toggleRowsSwept   *prometheus.CounterVec

	// Export metrics
	snapshotsExported prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		resolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolutions_total",
				Help:      "Total number of changeover resolutions by source tier",
			},
			[]string{"source"},
		),

		matrixBuildsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "matrix_builds_total",
				Help:      "Total number of changeover matrices built",
			},
		),
		matrixBuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "matrix_build_duration_seconds",
				Help:      "Duration of changeover matrix builds in seconds",
				Buckets:   buckets,
			},
		),
		matrixModels: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "matrix_models",
				Help:      "Number of models per built matrix",
				Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200},
			},
		),
		matrixCopiesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "matrix_copies_total",
				Help:      "Total number of matrix copy operations",
			},
		),
		overridesCopied: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "overrides_copied_total",
				Help:      "Total number of overrides written by matrix copies",
			},
		),

		ruleRowsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rule_rows_written_total",
				Help:      "Total number of rule rows written by table",
			},
			[]string{"table"},
		),
		validationRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_rejections_total",
				Help:      "Total number of writes rejected by validation",
			},
			[]string{"operation"},
		),

		toggleSweepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "toggle_sweeps_total",
				Help:      "Total number of bulk toggle operations",
			},
			[]string{"operation"},
		),
		toggleRowsSwept: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "toggle_rows_swept_total",
				Help:      "Total number of line rows affected by bulk toggle operations",
			},
			[]string{"operation"},
		),

		snapshotsExported: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshots_exported_total",
				Help:      "Total number of optimizer snapshots exported",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.resolutionsTotal,
		m.matrixBuildsTotal,
		m.matrixBuildDuration,
		m.matrixModels,
		m.matrixCopiesTotal,
		m.overridesCopied,
		m.ruleRowsWritten,
		m.validationRejections,
		m.toggleSweepsTotal,
		m.toggleRowsSwept,
		m.snapshotsExported,
	)

	return m, nil
}

// ResolutionResolved increments the resolution counter for a source tier.
func (m *Metrics) ResolutionResolved(source string) {
	if m == nil || m.resolutionsTotal == nil {
		return
	}
	m.resolutionsTotal.WithLabelValues(source).Inc()
}

// MatrixBuilt records a completed matrix build.
func (m *Metrics) MatrixBuilt(models int, duration time.Duration) {
	if m == nil || m.matrixBuildsTotal == nil {
		return
	}
	m.matrixBuildsTotal.Inc()
	m.matrixBuildDuration.Observe(duration.Seconds())
	m.matrixModels.Observe(float64(models))
}

// MatrixCopied records a matrix copy and the overrides it wrote.
func (m *Metrics) MatrixCopied(count int) {
	if m == nil || m.matrixCopiesTotal == nil {
		return
	}
	m.matrixCopiesTotal.Inc()
	m.overridesCopied.Add(float64(count))
}

// RuleRowsWritten records rows written to a rule table.
func (m *Metrics) RuleRowsWritten(table string, count int) {
	if m == nil || m.ruleRowsWritten == nil {
		return
	}
	m.ruleRowsWritten.WithLabelValues(table).Add(float64(count))
}

// ValidationRejected records a write rejected before any row was touched.
func (m *Metrics) ValidationRejected(operation string) {
	if m == nil || m.validationRejections == nil {
		return
	}
	m.validationRejections.WithLabelValues(operation).Inc()
}

// ToggleSwept records a bulk toggle operation and its affected-row count.
func (m *Metrics) ToggleSwept(operation string, count int64) {
	if m == nil || m.toggleSweepsTotal == nil {
		return
	}
	m.toggleSweepsTotal.WithLabelValues(operation).Inc()
	m.toggleRowsSwept.WithLabelValues(operation).Add(float64(count))
}

// SnapshotExported records an optimizer snapshot export.
func (m *Metrics) SnapshotExported() {
	if m == nil || m.snapshotsExported == nil {
		return
	}
	m.snapshotsExported.Inc()
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if m == nil || !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
