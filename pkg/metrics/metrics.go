// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// MessagesTotal tracks messages sent, by kind (direct or room).
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Total chat messages sent",
		},
		[]string{"kind"},
	)

	// OpenWindows tracks currently open chat windows across sessions.
	OpenWindows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_open_windows",
			Help: "Open chat windows",
		},
	)

	// DirectoryResubscribes counts directory subscription retry attempts.
	DirectoryResubscribes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_directory_resubscribes_total",
			Help: "Directory subscription retry attempts",
		},
	)

	// StoreOpsTotal tracks document store mutations by operation.
	StoreOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_ops_total",
			Help: "Document store mutations",
		},
		[]string{"op"},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// RelayPublished counts mutations mirrored to JetStream.
	RelayPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_published_total",
			Help: "Store mutations published to the relay",
		},
	)

	// RelayApplied counts remote mutations applied locally.
	RelayApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_applied_total",
			Help: "Remote store mutations applied locally",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
