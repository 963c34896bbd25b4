package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSubmissions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "repoguardian",
		Name:      "submissions_total",
		Help:      "Analysis submissions accepted by the controller.",
	})
	metricRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "repoguardian",
		Name:      "submissions_rejected_total",
		Help:      "Submissions dropped because the repository identifier was blank.",
	})
	metricOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repoguardian",
		Name:      "analysis_outcomes_total",
		Help:      "Settled analysis requests by outcome (succeeded, failed, stale).",
	}, []string{"outcome"})
	metricRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "repoguardian",
		Name:      "analysis_request_duration_seconds",
		Help:      "Latency of calls to the analysis service.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"result"})
)

const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeStale     = "stale"
)

func RecordSubmission() {
	metricSubmissions.Inc()
}

func RecordRejected() {
	metricRejected.Inc()
}

func RecordOutcome(outcome string) {
	metricOutcomes.WithLabelValues(outcome).Inc()
}

func ObserveRequest(result string, d time.Duration) {
	metricRequestDuration.WithLabelValues(result).Observe(d.Seconds())
}

// Outcomes exposes the outcome counter for tests and diagnostics.
func Outcomes() *prometheus.CounterVec {
	return metricOutcomes
}
