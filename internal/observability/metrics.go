// Package observability provides Shannon's Prometheus metrics and
// OpenTelemetry tracing, trimmed from the teacher's much larger
// internal/observability package (metrics.go, tracing.go) down to a small
// set of counters, histograms and span helpers.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is a set of counters, histograms and a gauge for the bus, rate
// limiter, tool executor, LLM providers, planner and webhook server. No
// component in this module constructs one or reports to it.
type Metrics struct {
	// BusEventsPublished counts events published to the bus by type.
	BusEventsPublished *prometheus.CounterVec

	// BusQueueDropped counts events dropped because a subscriber's queue
	// was full.
	BusQueueDropped *prometheus.CounterVec

	// RateLimitDenied counts messages rejected by the rate limiter.
	RateLimitDenied *prometheus.CounterVec

	// ToolExecutions counts tool invocations by tool name and outcome.
	ToolExecutions *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution latency in seconds.
	ToolExecutionDuration *prometheus.HistogramVec

	// LLMRequests counts provider completions by provider and outcome.
	LLMRequests *prometheus.CounterVec

	// LLMRequestDuration measures provider completion latency in seconds.
	LLMRequestDuration *prometheus.HistogramVec

	// PlanStepsExecuted counts plan steps by outcome
	// (done|failed|skipped).
	PlanStepsExecuted *prometheus.CounterVec

	// PlansActive tracks the number of plans currently executing.
	PlansActive prometheus.Gauge

	// WebhookRequests counts inbound webhook requests by endpoint and
	// response status.
	WebhookRequests *prometheus.CounterVec
}

// NewMetrics constructs and registers every metric against Prometheus's
// default registry. Call once at startup.
func NewMetrics() *Metrics {
	return &Metrics{
		BusEventsPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shannon_bus_events_published_total",
				Help: "Total events published to the bus, by event type.",
			},
			[]string{"event_type"},
		),
		BusQueueDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shannon_bus_queue_dropped_total",
				Help: "Total events dropped because a subscriber queue was full.",
			},
			[]string{"event_type", "subscriber"},
		),
		RateLimitDenied: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shannon_rate_limit_denied_total",
				Help: "Total messages rejected by the rate limiter, by platform.",
			},
			[]string{"platform"},
		),
		ToolExecutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shannon_tool_executions_total",
				Help: "Total tool executions by tool name and outcome.",
			},
			[]string{"tool_name", "outcome"},
		),
		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shannon_tool_execution_duration_seconds",
				Help:    "Tool execution latency in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),
		LLMRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shannon_llm_requests_total",
				Help: "Total LLM provider completions by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		),
		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shannon_llm_request_duration_seconds",
				Help:    "LLM provider completion latency in seconds.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider"},
		),
		PlanStepsExecuted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shannon_plan_steps_executed_total",
				Help: "Total plan steps executed, by outcome.",
			},
			[]string{"outcome"},
		),
		PlansActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "shannon_plans_active",
				Help: "Number of plans currently executing.",
			},
		),
		WebhookRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shannon_webhook_requests_total",
				Help: "Total inbound webhook requests by endpoint and status.",
			},
			[]string{"endpoint", "status"},
		),
	}
}
