// Package metrics provides Prometheus metrics for the MediaWiki REST client.
// It tracks request counts and latencies per resource, edit-token refreshes,
// mutations, rate limiting, event stream throughput and MCP tool calls.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const (
	Namespace = "mwrest"
)

var (
	// RequestsTotal counts REST calls by resource, operation and outcome.
	// Outcome is "ok" or the lower-case error kind ("not_found", "conflict", ...).
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "requests_total",
		Help:      "Total number of REST API calls",
	}, []string{"resource", "operation", "outcome"})

	// RequestDuration measures REST call latency
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "request_duration_seconds",
		Help:      "REST API call latency by resource and operation",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"resource", "operation"})

	// RequestsInFlight tracks calls currently waiting on the wiki
	RequestsInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "requests_in_flight",
		Help:      "Number of REST API calls currently in flight",
	}, []string{"resource"})

	// EditTokenRefreshes counts network fetches of the edit token
	EditTokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "edit_token_refreshes_total",
		Help:      "Edit token fetches by result",
	}, []string{"status"})

	// RateLimited counts 429 responses from the wiki
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "rate_limited_total",
		Help:      "Responses rejected by the wiki with HTTP 429",
	})

	// LimiterWaitSeconds measures time spent in the client-side rate limiter
	LimiterWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "limiter_wait_seconds",
		Help:      "Time spent waiting for the client-side rate limiter",
		Buckets:   []float64{.001, .01, .05, .1, .5, 1, 5},
	})

	// EditOperations counts write operations by type
	EditOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "edit_operations_total",
		Help:      "Edit operations by type and status",
	}, []string{"operation", "status"})

	// ContentSize tracks wikitext/HTML sizes sent to the wiki
	ContentSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "content_size_bytes",
		Help:      "Content size distribution in bytes",
		Buckets:   []float64{100, 1000, 10000, 50000, 100000, 250000, 500000, 1000000},
	}, []string{"operation"})

	// StreamEvents counts recent-change events delivered to callers
	StreamEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "stream_events_total",
		Help:      "EventStreams events delivered by wiki and change type",
	}, []string{"wiki", "type"})

	// ToolCalls counts MCP tool invocations
	ToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "tool_calls_total",
		Help:      "MCP tool calls by tool and status",
	}, []string{"tool", "status"})

	// ToolDuration measures MCP tool latency
	ToolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "tool_duration_seconds",
		Help:      "MCP tool latency by tool",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"tool"})

	// PanicsRecovered counts recovered panics in tool handlers
	PanicsRecovered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "panics_recovered_total",
		Help:      "Number of panics recovered in tool handlers",
	}, []string{"tool"})
)

// RecordRequest records a completed REST call
func RecordRequest(resource, operation, outcome string, duration float64) {
	RequestsTotal.WithLabelValues(resource, operation, outcome).Inc()
	RequestDuration.WithLabelValues(resource, operation).Observe(duration)
}

// RecordTokenRefresh records an edit token fetch
func RecordTokenRefresh(success bool) {
	EditTokenRefreshes.WithLabelValues(status(success)).Inc()
}

// RecordEdit records a mutation and the size of the submitted content
func RecordEdit(operation string, success bool, size int) {
	EditOperations.WithLabelValues(operation, status(success)).Inc()
	ContentSize.WithLabelValues(operation).Observe(float64(size))
}

// RecordStreamEvent records a delivered recent-change event
func RecordStreamEvent(wiki, changeType string) {
	StreamEvents.WithLabelValues(wiki, changeType).Inc()
}

// RecordToolCall records a completed MCP tool call
func RecordToolCall(tool string, duration float64, success bool) {
	ToolCalls.WithLabelValues(tool, status(success)).Inc()
	ToolDuration.WithLabelValues(tool).Observe(duration)
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
