package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AnswersTotal counts graded answers by flow (user or anonymous) and outcome.
	AnswersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_answers_total",
			Help: "Total number of graded answers by flow and outcome (correct or incorrect)",
		},
		[]string{"flow", "outcome"},
	)

	// SittingsStartedTotal counts attempts created, by flow.
	SittingsStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_sittings_started_total",
			Help: "Total number of quiz attempts started by flow",
		},
		[]string{"flow"},
	)

	// SittingsCompletedTotal counts finished attempts by flow and result.
	SittingsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_sittings_completed_total",
			Help: "Total number of finished quiz attempts by flow and result (passed or failed)",
		},
		[]string{"flow", "result"},
	)

	// AttemptsRefusedTotal counts attempts refused by the single attempt policy.
	AttemptsRefusedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_attempts_refused_total",
			Help: "Total number of refused attempts by reason",
		},
		[]string{"reason"},
	)

	// GradingTogglesTotal counts correctness overrides made while marking.
	GradingTogglesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_grading_toggles_total",
			Help: "Total number of question correctness toggles made by graders",
		},
	)

	// HTTPRequestsTotal counts served requests by route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by route.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quiz_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

const (
	FlowUser      = "user"
	FlowAnonymous = "anonymous"
)

// Outcome maps a grading result to its label value.
func Outcome(correct bool) string {
	if correct {
		return "correct"
	}
	return "incorrect"
}

// Result maps a pass/fail result to its label value.
func Result(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}
