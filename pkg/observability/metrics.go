package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for a Helmsman service
type Metrics struct {
	// HTTP surface
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Access decision layer
	AccessDecisionsTotal  *prometheus.CounterVec
	AccessDecisionLatency *prometheus.HistogramVec

	// Role membership cache
	RoleCacheHitsTotal   *prometheus.CounterVec
	RoleCacheMissesTotal *prometheus.CounterVec

	// Database pool
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers the collectors. A nil registry
// gets a fresh one, keeping tests isolated from the default registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helmsman_http_requests_total",
				Help: "Total HTTP requests by method, path and status code",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "helmsman_http_request_duration_seconds",
				Help:    "HTTP request latency by method and path",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AccessDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helmsman_access_decisions_total",
				Help: "Access decisions by object type, action and outcome",
			},
			[]string{"object_type", "action", "allowed"},
		),
		AccessDecisionLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "helmsman_access_decision_duration_seconds",
				Help:    "Access decision latency by object type and action",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
			},
			[]string{"object_type", "action"},
		),
		RoleCacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helmsman_role_cache_hits_total",
				Help: "Role membership cache hits by tier",
			},
			[]string{"tier"},
		),
		RoleCacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helmsman_role_cache_misses_total",
				Help: "Role membership cache misses by tier",
			},
			[]string{"tier"},
		),
		DBConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "helmsman_db_connections_active",
			Help: "Open database connections in use",
		}),
		DBConnectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "helmsman_db_connections_idle",
			Help: "Idle database connections",
		}),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AccessDecisionsTotal,
		m.AccessDecisionLatency,
		m.RoleCacheHitsTotal,
		m.RoleCacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)
	return m
}

// Handler returns the /metrics endpoint handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordAccessDecision counts one access decision outcome
func (m *Metrics) RecordAccessDecision(objectType, action string, allowed bool) {
	m.AccessDecisionsTotal.WithLabelValues(objectType, action, strconv.FormatBool(allowed)).Inc()
}

// ObserveAccessDecision records the latency of one decision
func (m *Metrics) ObserveAccessDecision(objectType, action string, elapsed time.Duration) {
	m.AccessDecisionLatency.WithLabelValues(objectType, action).Observe(elapsed.Seconds())
}

// RecordHTTPRequest counts one served request and its latency
func (m *Metrics) RecordHTTPRequest(method, path string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// RecordRoleCacheHit counts a membership cache hit for a tier
// ("local" or "redis").
func (m *Metrics) RecordRoleCacheHit(tier string) {
	m.RoleCacheHitsTotal.WithLabelValues(tier).Inc()
}

// RecordRoleCacheMiss counts a membership cache miss for a tier
func (m *Metrics) RecordRoleCacheMiss(tier string) {
	m.RoleCacheMissesTotal.WithLabelValues(tier).Inc()
}
