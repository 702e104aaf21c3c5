// Package monitoring provides Prometheus metrics for the devenv backend.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Terminal metrics
	MonitorsActive  prometheus.Gauge
	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	WaitTimeouts    prometheus.Counter
	CleanupFailures prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a new metrics collector registered on reg; a nil reg
// uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devenv_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "devenv_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		MonitorsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "devenv_terminal_monitors_active",
				Help: "Number of registered terminal monitors",
			},
		),
		CommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devenv_terminal_commands_total",
				Help: "Total number of commands run through terminal monitors",
			},
			[]string{"terminal", "status"},
		),
		CommandDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "devenv_terminal_command_duration_seconds",
				Help:    "Blocking command duration in seconds",
				Buckets: []float64{.1, .5, 1, 5, 15, 60, 300, 1200},
			},
			[]string{"terminal"},
		),
		WaitTimeouts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "devenv_terminal_wait_timeouts_total",
				Help: "Total number of wait operations that timed out",
			},
		),
		CleanupFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "devenv_terminal_cleanup_failures_total",
				Help: "Total number of aborted disposals (terminal left open)",
			},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "devenv_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "devenv_uptime_seconds",
				Help: "Backend uptime in seconds",
			},
		),
	}

	go m.updateUptime()
	return m
}

// RecordHTTPRequest records metrics for one HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordCommand records the outcome of one blocking command run.
func (m *Metrics) RecordCommand(terminal, status string, duration time.Duration) {
	m.CommandsTotal.WithLabelValues(terminal, status).Inc()
	m.CommandDuration.WithLabelValues(terminal).Observe(duration.Seconds())
}

func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}
