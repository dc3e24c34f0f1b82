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

	// TurnsTotal tracks chat turns by outcome.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turns_total",
			Help: "Total chat turns processed",
		},
		[]string{"outcome"},
	)

	// SessionsActive tracks the number of live slot-filling sessions.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_sessions_active",
			Help: "Number of active slot-filling sessions",
		},
	)

	// SessionsSweptTotal tracks sessions reclaimed by the idle sweep.
	SessionsSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_sessions_swept_total",
			Help: "Sessions removed by the idle sweep",
		},
	)

	// BookingsTotal tracks confirmed bookings.
	BookingsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookings_total",
			Help: "Total confirmed bookings",
		},
	)

	// CancellationsTotal tracks cancelled sessions.
	CancellationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cancellations_total",
			Help: "Total cancelled booking sessions",
		},
	)

	// ExtractionFailuresTotal tracks delegated extractions that fell back.
	ExtractionFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extraction_failures_total",
			Help: "Delegated extractions that fell back to the generic prompt",
		},
		[]string{"reason"},
	)

	// LLMCompletionDuration tracks LLM completion latency.
	LLMCompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_completion_duration_seconds",
			Help:    "LLM completion call duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 15, 25, 30},
		},
		[]string{"provider", "status"},
	)

	// VectorSearchDuration tracks semantic context lookups.
	VectorSearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vector_search_duration_seconds",
			Help:    "Vector index search duration",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordTurn records a processed chat turn.
func RecordTurn(outcome string) {
	TurnsTotal.WithLabelValues(outcome).Inc()
}

// RecordCompletion records a completion call's latency and status.
func RecordCompletion(provider, status string, duration float64) {
	LLMCompletionDuration.WithLabelValues(provider, status).Observe(duration)
}
