// Package metrics exposes prometheus collectors for submission traffic.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	submissionSteps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kable",
			Subsystem: "submission",
			Name:      "steps_total",
			Help:      "Remote calls issued while submitting, by step and result.",
		},
		[]string{"step", "result"},
	)

	submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kable",
			Name:      "submissions_total",
			Help:      "Submissions attempted, by result.",
		},
		[]string{"result"},
	)

	submissionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "kable",
			Subsystem: "submission",
			Name:      "duration_seconds",
			Help:      "Wall time of a whole submission.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
	)

	choiceLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kable",
			Subsystem: "choices",
			Name:      "loads_total",
			Help:      "Group choice loads, by result.",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(submissionSteps, submissions, submissionDuration, choiceLoads)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func RecordStep(step string, err error) {
	submissionSteps.WithLabelValues(step, result(err)).Inc()
}

func RecordSubmission(duration time.Duration, err error) {
	submissions.WithLabelValues(result(err)).Inc()
	submissionDuration.Observe(duration.Seconds())
}

func RecordChoiceLoad(err error) {
	choiceLoads.WithLabelValues(result(err)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
