package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// HTTP metrics (dev server).
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Session lifecycle.
	SessionsActive prometheus.Gauge
	SessionsOpened prometheus.Counter
	SessionsClosed prometheus.Counter
	Reconnects     prometheus.Counter
	SessionsDead   prometheus.Counter

	// Transport.
	WSConnections prometheus.Gauge
	Frames        *prometheus.CounterVec

	// Window-state machine.
	Transitions *prometheus.CounterVec

	// Layout snapshots.
	SnapshotsSaved    prometheus.Counter
	SnapshotsRestored prometheus.Counter

	startTime time.Time
}

// NewMetrics creates a metrics collector registered on reg. A nil registerer
// uses the default global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termdock_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "termdock_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "termdock_sessions_active",
				Help: "Number of client sessions currently attached",
			},
		),
		SessionsOpened: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termdock_sessions_opened_total",
				Help: "Total number of sessions created",
			},
		),
		SessionsClosed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termdock_sessions_closed_total",
				Help: "Total number of sessions closed",
			},
		),
		Reconnects: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termdock_reconnects_total",
				Help: "Total number of successful re-attachments to live sessions",
			},
		),
		SessionsDead: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termdock_sessions_dead_total",
				Help: "Total number of sessions marked dead",
			},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "termdock_ws_connections",
				Help: "Open WebSocket transports",
			},
		),
		Frames: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termdock_frames_total",
				Help: "WebSocket frames by direction and type",
			},
			[]string{"direction", "type"},
		),

		Transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termdock_window_transitions_total",
				Help: "Window-state transitions by from/to state",
			},
			[]string{"from", "to"},
		),

		SnapshotsSaved: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termdock_snapshots_saved_total",
				Help: "Layout snapshots saved",
			},
		),
		SnapshotsRestored: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termdock_snapshots_restored_total",
				Help: "Layout snapshots restored",
			},
		),
	}
}

// NewTestMetrics creates a collector on a private registry, so parallel
// tests do not collide on the global one.
func NewTestMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordFrame records one WebSocket frame. Direction is "in" or "out" from
// the client's point of view.
func (m *Metrics) RecordFrame(direction, frameType string) {
	m.Frames.WithLabelValues(direction, frameType).Inc()
}

// RecordTransition records one window-state transition.
func (m *Metrics) RecordTransition(from, to string) {
	m.Transitions.WithLabelValues(from, to).Inc()
}

// Uptime returns time since the collector was created.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}
