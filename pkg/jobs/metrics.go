package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	submissionCreated      = "created"
	submissionDeduplicated = "deduplicated"
	submissionRejected     = "rejected"
)

var (
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopsaas_jobs_submissions_total",
			Help: "Total job submissions by outcome.",
		},
		[]string{"queue", "outcome"},
	)
	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopsaas_jobs_transitions_total",
			Help: "Total job state transitions.",
		},
		[]string{"queue", "state"},
	)
)

func observeSubmission(queue, outcome string) {
	submissionsTotal.WithLabelValues(queue, outcome).Inc()
}

func observeTransition(queue string, state State) {
	transitionsTotal.WithLabelValues(queue, string(state)).Inc()
}
