package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ops-Assistant Metrics
var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lumo",
			Subsystem: "ops_assistant",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lumo",
			Subsystem: "ops_assistant",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Chat turn duration, labelled by how the turn ended
	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lumo",
			Subsystem: "ops_assistant",
			Name:      "turn_duration_seconds",
			Help:      "Chat turn duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"outcome"},
	)

	// Model round counter
	ModelRoundsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lumo",
			Subsystem: "ops_assistant",
			Name:      "model_rounds_total",
			Help:      "Total model completion rounds across all turns",
		},
	)

	// Tool call counter by validation/execution outcome
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lumo",
			Subsystem: "ops_assistant",
			Name:      "tool_calls_total",
			Help:      "Total SQL tool calls by outcome",
		},
		[]string{"outcome"},
	)

	// Query duration for executed SQL
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lumo",
			Subsystem: "ops_assistant",
			Name:      "query_duration_seconds",
			Help:      "Dataset query duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"outcome"},
	)

	// Conversations
	ConversationsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lumo",
			Subsystem: "ops_assistant",
			Name:      "conversations_created_total",
			Help:      "Total conversations created",
		},
	)

	// Rate limit rejections
	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lumo",
			Subsystem: "ops_assistant",
			Name:      "rate_limited_total",
			Help:      "Total requests rejected by the rate limiter",
		},
	)

	// Auth requests
	AuthRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lumo",
			Subsystem: "ops_assistant",
			Name:      "auth_requests_total",
			Help:      "Total authentication attempts",
		},
		[]string{"status"},
	)

	// Active streaming connections gauge
	ActiveStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lumo",
			Subsystem: "ops_assistant",
			Name:      "active_streams",
			Help:      "Currently active streaming connections",
		},
	)
)

// RecordRequest records an HTTP request with its duration
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint, status).Observe(durationSec)
}

// RecordTurn records a completed chat turn
func RecordTurn(outcome string, durationSec float64) {
	TurnDuration.WithLabelValues(outcome).Observe(durationSec)
}

// RecordToolCall records a SQL tool call outcome (executed, rejected, failed)
func RecordToolCall(outcome string) {
	ToolCallsTotal.WithLabelValues(outcome).Inc()
}

// RecordQuery records a dataset query duration
func RecordQuery(outcome string, durationSec float64) {
	QueryDuration.WithLabelValues(outcome).Observe(durationSec)
}

// RecordAuth records an authentication attempt
func RecordAuth(status string) {
	AuthRequestsTotal.WithLabelValues(status).Inc()
}
