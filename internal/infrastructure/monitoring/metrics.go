package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Transition results
const (
	ResultCommitted = "committed"
	ResultNoop      = "noop"
	ResultRejected  = "rejected"
	ResultFailed    = "failed"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// State metrics
	TransitionsTotal *prometheus.CounterVec
	CurrentActivity  *prometheus.GaugeVec

	// Presence metrics
	PresenceCalls    *prometheus.CounterVec
	PresenceDuration *prometheus.HistogramVec
	PresenceAttached prometheus.Gauge

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests     int64 `json:"total_requests"`
	TotalErrors       int64 `json:"total_errors"`
	Transitions       int64 `json:"transitions"`
	FailedTransitions int64 `json:"failed_transitions"`
	PresenceCalls     int64 `json:"presence_calls"`
	PresenceFailures  int64 `json:"presence_failures"`
	UptimeSeconds     int64 `json:"uptime_seconds"`
	ActiveConnections int64 `json:"active_connections"`
}

// NewMetrics creates a metrics collector backed by its own registry,
// so several managers (and tests) can coexist in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kepler_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kepler_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		TransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kepler_state_transitions_total",
				Help: "Requested activity transitions by target kind and result",
			},
			[]string{"to", "result"},
		),
		CurrentActivity: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kepler_state_activity",
				Help: "1 for the activity kind the launcher is currently in",
			},
			[]string{"kind"},
		),

		PresenceCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kepler_presence_calls_total",
				Help: "Calls made to the presence client",
			},
			[]string{"op", "status"},
		),
		PresenceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kepler_presence_call_duration_seconds",
				Help:    "Presence client call duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"op"},
		),
		PresenceAttached: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "kepler_presence_attached",
				Help: "1 if a presence client is attached",
			},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "kepler_ws_connections",
				Help: "Open state stream connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kepler_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "kepler_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordTransition records the outcome of a requested transition
func (m *Metrics) RecordTransition(to, result string) {
	m.TransitionsTotal.WithLabelValues(to, result).Inc()

	m.mu.Lock()
	m.snapshot.Transitions++
	if result == ResultFailed || result == ResultRejected {
		m.snapshot.FailedTransitions++
	}
	m.mu.Unlock()
}

// SetActivity marks kind as the current activity
func (m *Metrics) SetActivity(kind string, all ...string) {
	for _, k := range all {
		m.CurrentActivity.WithLabelValues(k).Set(0)
	}
	m.CurrentActivity.WithLabelValues(kind).Set(1)
}

// RecordPresenceCall records a presence client call
func (m *Metrics) RecordPresenceCall(op, status string, duration time.Duration) {
	m.PresenceCalls.WithLabelValues(op, status).Inc()
	m.PresenceDuration.WithLabelValues(op).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.PresenceCalls++
	if status != "ok" {
		m.snapshot.PresenceFailures++
	}
	m.mu.Unlock()
}

// SetPresenceAttached sets the presence attached gauge
func (m *Metrics) SetPresenceAttached(attached bool) {
	if attached {
		m.PresenceAttached.Set(1)
		return
	}
	m.PresenceAttached.Set(0)
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// Snapshot returns the current JSON-friendly values
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	s.UptimeSeconds = int64(time.Since(m.startTime).Seconds())
	return s
}
