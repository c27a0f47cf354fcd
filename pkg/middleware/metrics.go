// Package middleware provides observability wrappers for the sync
// engine and the fetch pipeline: Prometheus metrics and OpenTelemetry
// traces.
package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/movapages/angular-url-form-sync/pkg/fetch"
	"github.com/movapages/angular-url-form-sync/pkg/filter"
	"github.com/movapages/angular-url-form-sync/pkg/urlsync"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "urlsync").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for fetch duration.
	// Default: prometheus.DefBuckets.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) { c.Namespace = namespace }
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) { c.Subsystem = subsystem }
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) { c.ConstLabels = labels }
}

// WithBuckets sets the fetch duration histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) { c.Buckets = buckets }
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) { c.Registry = registry }
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "urlsync",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// metrics holds the Prometheus collectors.
type metrics struct {
	syncsTotal       *prometheus.CounterVec
	syncFields       *prometheus.HistogramVec
	diagnosticsTotal prometheus.Counter
	fetchesTotal     *prometheus.CounterVec
	fetchDuration    prometheus.Histogram
	activeSessions   prometheus.Gauge
}

// globalMetrics is the singleton instance, created on first call to
// Prometheus().
var (
	globalMetrics   *metrics
	globalMetricsMu sync.Mutex
)

func initMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		syncsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "syncs_total",
			Help:        "Total sync passes by operation (project/reconcile) and status",
			ConstLabels: config.ConstLabels,
		}, []string{"op", "status"}),

		syncFields: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "sync_fields",
			Help:        "Fields carried per sync pass",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{0, 1, 2, 5, 10, 20, 50},
		}, []string{"op"}),

		diagnosticsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "diagnostics_total",
			Help:        "Total fields skipped during reconciliation",
			ConstLabels: config.ConstLabels,
		}),

		fetchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "fetches_total",
			Help:        "Total fetch invocations by status",
			ConstLabels: config.ConstLabels,
		}, []string{"status"}),

		fetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "fetch_duration_seconds",
			Help:        "Fetch invocation duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_sessions",
			Help:        "Number of active sync sessions",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Prometheus creates engine middleware that records sync metrics.
//
// Metrics collected:
//   - urlsync_syncs_total: Counter of sync passes by op and status
//   - urlsync_sync_fields: Histogram of fields per pass
//   - urlsync_diagnostics_total: Counter of skipped fields
//   - urlsync_fetches_total: Counter of fetch invocations (via InstrumentFetcher)
//   - urlsync_fetch_duration_seconds: Histogram of fetch durations
//   - urlsync_active_sessions: Gauge of live sessions (via RecordSession*)
//
// Example:
//
//	eng, _ := urlsync.New(state, sink,
//	    urlsync.WithMiddleware(middleware.Prometheus()),
//	)
func Prometheus(opts ...MetricsOption) urlsync.Middleware {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	globalMetricsMu.Lock()
	if globalMetrics == nil {
		globalMetrics = initMetrics(config)
	}
	m := globalMetrics
	globalMetricsMu.Unlock()

	return urlsync.MiddlewareFunc(func(ev *urlsync.Event, next func() error) error {
		err := next()

		op := ev.Kind.String()
		status := "success"
		if err != nil {
			status = "error"
		}
		m.syncsTotal.WithLabelValues(op, status).Inc()
		m.syncFields.WithLabelValues(op).Observe(float64(ev.Fields))
		if ev.Diagnostics > 0 {
			m.diagnosticsTotal.Add(float64(ev.Diagnostics))
		}
		return err
	})
}

// InstrumentFetcher wraps a Fetcher so every invocation, including the
// coordinator's retries, is counted and timed. Cancelled invocations
// are labeled separately from failures.
func InstrumentFetcher[R any](f fetch.Fetcher[R]) fetch.Fetcher[R] {
	return fetch.FetcherFunc[R](func(ctx context.Context, snap filter.Snapshot) (R, error) {
		start := time.Now()
		payload, err := f.Fetch(ctx, snap)

		if m := getMetrics(); m != nil {
			m.fetchDuration.Observe(time.Since(start).Seconds())
			status := "success"
			switch {
			case ctx.Err() != nil:
				status = "cancelled"
			case err != nil:
				status = "error"
			}
			m.fetchesTotal.WithLabelValues(status).Inc()
		}
		return payload, err
	})
}

// RecordSessionOpen records a new sync session.
func RecordSessionOpen() {
	if m := getMetrics(); m != nil {
		m.activeSessions.Inc()
	}
}

// RecordSessionClose records a sync session ending.
func RecordSessionClose() {
	if m := getMetrics(); m != nil {
		m.activeSessions.Dec()
	}
}

func getMetrics() *metrics {
	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()
	return globalMetrics
}
