// Package metrics provides Prometheus metrics for the Dockhand backend
// (RED for HTTP plus console-session gauges). Scrapeable at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dockhand"

var (
	// HTTPRequestTotal counts requests by method, path, status (RED: rate).
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, path, and status.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDurationSeconds is request latency histogram (RED: duration).
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10), // 1ms to ~9.3s
		},
		[]string{"method", "path"},
	)

	// ConsoleSessionsActive is the current number of live console sessions.
	ConsoleSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "console_sessions_active",
			Help:      "Number of active WebSocket console sessions.",
		},
	)

	// LogStreamsActive tracks open log-tail handles against the engine. If this
	// diverges from console_sessions_active for long, handles are leaking.
	LogStreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "log_streams_active",
			Help:      "Number of open container log-tail streams.",
		},
	)

	// ExecCommandsTotal counts console command invocations by outcome.
	ExecCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exec_commands_total",
			Help:      "Total console command invocations by outcome (ok, denied, error).",
		},
		[]string{"outcome"},
	)

	// AuthFailuresTotal counts rejected session connects by reason.
	AuthFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Total rejected connections by reason (authentication, authorization).",
		},
		[]string{"reason"},
	)
)
