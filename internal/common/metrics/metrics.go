// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ZoneRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zone_requests_total",
			Help: "Total number of zone report requests by outcome",
		},
		[]string{"outcome"},
	)

	ModelCallAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_call_attempts_total",
			Help: "Total number of model API attempts by outcome",
		},
		[]string{"outcome"},
	)

	ModelCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "model_call_duration_seconds",
			Help:    "Duration of model calls including retries in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"outcome"},
	)

	SummaryExtractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summary_extractions_total",
			Help: "Machine-readable summary extraction results by status",
		},
		[]string{"status"},
	)

	SummarySchemaViolations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "summary_schema_violations_total",
			Help: "Extracted summaries that did not satisfy the response contract",
		},
	)

	ConsistencyDiagnostics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consistency_diagnostics_total",
			Help: "Consistency diagnostics emitted for model classifications",
		},
		[]string{"rule", "severity"},
	)

	RateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Requests rejected by the per-client rate limit",
		},
	)
)

// Attempt outcomes.
const (
	OutcomeSuccess        = "success"
	OutcomeRetryableError = "retryable_error"
	OutcomeFatalError     = "fatal_error"
	OutcomeExhausted      = "exhausted"
	OutcomeUnavailable    = "unavailable"
	OutcomeError          = "error"
)
