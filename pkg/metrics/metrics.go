package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "specviewer"

// Metrics contains all Prometheus metrics for specviewer.
type Metrics struct {
	// Sessions.
	SessionsActive   prometheus.Gauge
	SessionsTotal    prometheus.Counter
	SessionsReaped   prometheus.Counter
	SessionsRejected prometheus.Counter

	// Viewer state.
	TransitionsTotal  *prometheus.CounterVec
	HistoryPushes     prometheus.Counter
	ThemeInputsTotal  prometheus.Counter
	ThemeCommitsTotal prometheus.Counter

	// HTTP.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Demo catalog.
	DemosTotal prometheus.Gauge

	// Build info.
	BuildInfo *prometheus.GaugeVec
}

// New creates a new Metrics instance and registers all metrics with the
// default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a new Metrics instance registered with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Sessions.
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Number of connected viewer sessions",
			},
		),
		SessionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_total",
				Help:      "Total number of viewer sessions opened",
			},
		),
		SessionsReaped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_reaped_total",
				Help:      "Total number of idle sessions closed by the cleanup loop",
			},
		),
		SessionsRejected: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_rejected_total",
				Help:      "Total number of sessions rejected because the limit was reached",
			},
		),

		// Viewer state.
		TransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Total number of committed state transitions",
			},
			[]string{"kind"},
		),
		HistoryPushes: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "history_pushes_total",
				Help:      "Total number of history entries pushed to browsers",
			},
		),
		ThemeInputsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "theme_inputs_total",
				Help:      "Total number of raw theme color inputs received",
			},
		),
		ThemeCommitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "theme_commits_total",
				Help:      "Total number of theme changes committed after debouncing",
			},
		),

		// HTTP.
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		// Demo catalog.
		DemosTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "demos_total",
				Help:      "Number of entries in the demo catalog",
			},
		),

		// Build info.
		BuildInfo: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "build_info",
				Help:      "Build information",
			},
			[]string{"version", "commit", "date"},
		),
	}
}

// SetBuildInfo sets the build information metric.
func (m *Metrics) SetBuildInfo(version, commit, date string) {
	m.BuildInfo.WithLabelValues(version, commit, date).Set(1)
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration)
}

// RecordSessionOpened records a new viewer session.
func (m *Metrics) RecordSessionOpened() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionClosed records a closed viewer session.
func (m *Metrics) RecordSessionClosed(reaped bool) {
	m.SessionsActive.Dec()

	if reaped {
		m.SessionsReaped.Inc()
	}
}

// RecordSessionRejected records a session refused at the limit.
func (m *Metrics) RecordSessionRejected() {
	m.SessionsRejected.Inc()
}

// RecordTransition records a committed state transition.
func (m *Metrics) RecordTransition(kind string) {
	m.TransitionsTotal.WithLabelValues(kind).Inc()
}

// RecordHistoryPush records a history entry pushed to a browser.
func (m *Metrics) RecordHistoryPush() {
	m.HistoryPushes.Inc()
}

// RecordThemeInput records a raw theme color input.
func (m *Metrics) RecordThemeInput() {
	m.ThemeInputsTotal.Inc()
}

// RecordThemeCommit records a debounced theme change.
func (m *Metrics) RecordThemeCommit() {
	m.ThemeCommitsTotal.Inc()
}

// SetDemoCount sets the size of the demo catalog.
func (m *Metrics) SetDemoCount(n int) {
	m.DemosTotal.Set(float64(n))
}
