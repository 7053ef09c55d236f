// Package metrics defines the Prometheus collectors for the browse services
// and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestsInFlight  prometheus.Gauge
	FilterRecomputesTotal *prometheus.CounterVec
	FilterLatency         *prometheus.HistogramVec
	FilterResultCount     prometheus.Histogram
	ZeroResultQueries     prometheus.Counter
	CursorStepsTotal      *prometheus.CounterVec
	ActiveSessions        prometheus.Gauge
	SessionsEvictedTotal  prometheus.Counter
	CollectionLoadsTotal  *prometheus.CounterVec
	CollectionSize        prometheus.Gauge
	CacheHitsTotal        prometheus.Counter
	CacheMissesTotal      prometheus.Counter
	CircuitBreakerState   *prometheus.GaugeVec
}

// New creates the collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates the collectors and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		FilterRecomputesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "browse_filter_recomputes_total",
				Help: "Filter result recomputations by trigger (query, options, reload, stateless).",
			},
			[]string{"trigger"},
		),
		FilterLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "browse_filter_latency_seconds",
				Help:    "Time to compute a filter result.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
			[]string{"cache_status"},
		),
		FilterResultCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "browse_filter_result_count",
				Help:    "Number of documents in a filter result.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
			},
		),
		ZeroResultQueries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "browse_zero_result_queries_total",
				Help: "Non-empty queries that matched nothing.",
			},
		),
		CursorStepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "browse_cursor_steps_total",
				Help: "Match cursor steps by direction.",
			},
			[]string{"direction"},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "browse_active_sessions",
				Help: "Number of live browse sessions.",
			},
		),
		SessionsEvictedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "browse_sessions_evicted_total",
				Help: "Sessions removed for being idle.",
			},
		),
		CollectionLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "browse_collection_loads_total",
				Help: "Collection loads by source kind and status.",
			},
			[]string{"source", "status"},
		),
		CollectionSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "browse_collection_documents",
				Help: "Documents in the current collection.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.FilterRecomputesTotal,
		m.FilterLatency,
		m.FilterResultCount,
		m.ZeroResultQueries,
		m.CursorStepsTotal,
		m.ActiveSessions,
		m.SessionsEvictedTotal,
		m.CollectionLoadsTotal,
		m.CollectionSize,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
