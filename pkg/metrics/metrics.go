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
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
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

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// ExchangesTotal tracks finished exchanges by terminal event type.
	ExchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_exchanges_total",
			Help: "Total chat exchanges by outcome",
		},
		[]string{"outcome"},
	)

	// ThreadsCreated tracks threads created by the run loop.
	ThreadsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_threads_created_total",
			Help: "Total hosted threads created",
		},
	)

	// RunDuration tracks wall time from run creation to terminal status.
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_run_duration_seconds",
			Help:    "Assistant run duration",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120, 300},
		},
		[]string{"status"},
	)

	// RunPollsTotal tracks run status polls.
	RunPollsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_run_polls_total",
			Help: "Total run status polls",
		},
	)

	// ToolCallsTotal tracks resolved tool calls.
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_tool_calls_total",
			Help: "Total tool calls resolved",
		},
		[]string{"tool", "status"},
	)

	// RetrievalDuration tracks knowledge base lookups.
	RetrievalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retrieval_duration_seconds",
			Help:    "Knowledge base retrieval duration",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"status"},
	)

	// JournalPublishErrors tracks events that could not be journaled.
	JournalPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "journal_publish_errors_total",
			Help: "Events that failed to publish to the journal",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordRun records the outcome of one hosted run.
func RecordRun(status string, duration float64) {
	RunDuration.WithLabelValues(status).Observe(duration)
}

// RecordToolCall records one resolved tool call.
func RecordToolCall(tool, status string) {
	ToolCallsTotal.WithLabelValues(tool, status).Inc()
}

// RecordRetrieval records one retrieval gateway call.
func RecordRetrieval(status string, duration float64) {
	RetrievalDuration.WithLabelValues(status).Observe(duration)
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
