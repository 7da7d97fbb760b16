package observability

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics of one optimizer instance. Each
// instance owns its registry so several can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpResponseSize     *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Entry metrics
	entryAnalysesTotal   *prometheus.CounterVec
	entryAnalysisSeconds *prometheus.HistogramVec
	entriesTracked       prometheus.Gauge
	diagnosticsTotal     *prometheus.CounterVec

	// Consumer metrics
	moduleRewritesTotal *prometheus.CounterVec
	transformCacheTotal *prometheus.CounterVec

	// System metrics
	systemUptime prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "unbarrel_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "unbarrel_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path", "status"},
		),
		httpResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "unbarrel_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "path", "status"},
		),
		httpRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "unbarrel_http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),

		entryAnalysesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "unbarrel_entry_analyses_total",
				Help: "Total number of entry analyses",
			},
			[]string{"reason", "status"},
		),
		entryAnalysisSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "unbarrel_entry_analysis_duration_seconds",
				Help:    "Entry analysis latency in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"reason"},
		),
		entriesTracked: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "unbarrel_entries_tracked",
				Help: "Current number of tracked entries",
			},
		),
		diagnosticsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "unbarrel_diagnostics_total",
				Help: "Total number of diagnostics reported",
			},
			[]string{"kind"},
		),

		moduleRewritesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "unbarrel_module_rewrites_total",
				Help: "Total number of consumer modules passed through the rewriter",
			},
			[]string{"result"},
		),
		transformCacheTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "unbarrel_transform_cache_lookups_total",
				Help: "Transform cache lookups",
			},
			[]string{"result"},
		),

		systemUptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "unbarrel_system_uptime_seconds",
				Help: "System uptime in seconds",
			},
		),
	}

	return m
}

// MetricsMiddleware returns a Fiber middleware that collects HTTP metrics
func (m *Metrics) MetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		m.httpRequestsInFlight.Inc()
		defer m.httpRequestsInFlight.Dec()

		path := normalizePath(c.Path())
		method := c.Method()

		err := c.Next()

		duration := time.Since(start).Seconds()
		code := c.Response().StatusCode()
		if err != nil {
			// The error handler has not written the status yet.
			code = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
		}
		status := statusClass(code)
		responseSize := len(c.Response().Body())

		m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		m.httpResponseSize.WithLabelValues(method, path, status).Observe(float64(responseSize))

		return err
	}
}

// RecordAnalysis records one entry analysis. reason is "startup" or
// "invalidate".
func (m *Metrics) RecordAnalysis(reason string, duration time.Duration, err error) {
	m.entryAnalysesTotal.WithLabelValues(reason, outcome(err)).Inc()
	m.entryAnalysisSeconds.WithLabelValues(reason).Observe(duration.Seconds())
}

// SetEntriesTracked updates the tracked entry gauge
func (m *Metrics) SetEntriesTracked(n int) {
	m.entriesTracked.Set(float64(n))
}

// RecordDiagnostic records a reported diagnostic
func (m *Metrics) RecordDiagnostic(kind string) {
	m.diagnosticsTotal.WithLabelValues(kind).Inc()
}

// RecordRewrite records the result of passing a consumer through the rewriter
func (m *Metrics) RecordRewrite(changed bool, err error) {
	result := "unchanged"
	switch {
	case err != nil:
		result = "error"
	case changed:
		result = "rewritten"
	}
	m.moduleRewritesTotal.WithLabelValues(result).Inc()
}

// RecordCacheLookup records a transform cache hit or miss
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.transformCacheTotal.WithLabelValues(result).Inc()
}

// UpdateUptime updates the system uptime metric
func (m *Metrics) UpdateUptime(startTime time.Time) {
	m.systemUptime.Set(time.Since(startTime).Seconds())
}

// Registry returns the registry the metrics are registered with
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns a Fiber handler that exposes Prometheus metrics
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// normalizePath bounds label cardinality for served module paths
func normalizePath(path string) string {
	if len(path) > 50 {
		return "long_path"
	}
	return path
}

// statusClass returns the HTTP status class (2xx, 3xx, 4xx, 5xx)
func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
