package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Query metrics
	QueriesStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reasonloop_queries_started_total",
			Help: "Total number of queries started, by initial strategy",
		},
		[]string{"strategy"},
	)

	QueriesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reasonloop_queries_completed_total",
			Help: "Total number of queries completed, by final strategy and status",
		},
		[]string{"strategy", "status"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reasonloop_query_duration_seconds",
			Help:    "End-to-end query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	// Pipeline metrics
	Escalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reasonloop_escalations_total",
			Help: "Total number of strategy escalations",
		},
		[]string{"from", "to"},
	)

	ResearchIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reasonloop_research_iterations",
			Help:    "Number of deep-reasoning rounds per query",
			Buckets: []float64{1, 2, 3, 4, 5, 7, 10},
		},
	)

	SubtasksExecuted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reasonloop_subtasks_executed_total",
			Help: "Total number of subtasks executed",
		},
	)

	SubtaskRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reasonloop_subtask_retries_total",
			Help: "Total number of subtask executions retried after a failure",
		},
	)

	// Fallback metrics: every absorbed component failure increments one of these
	ComponentFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reasonloop_component_fallbacks_total",
			Help: "Total number of component-level safe-default fallbacks",
		},
		[]string{"component", "reason"},
	)

	// Model call metrics
	ModelCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reasonloop_model_calls_total",
			Help: "Total number of model invocations, by model and status",
		},
		[]string{"model", "status"},
	)

	ModelCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reasonloop_model_call_duration_seconds",
			Help:    "Model invocation latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"model"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reasonloop_cache_hits_total",
			Help: "Total number of model response cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reasonloop_cache_misses_total",
			Help: "Total number of model response cache misses",
		},
	)

	// Circuit breaker metrics
	BreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reasonloop_breaker_state_changes_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)
