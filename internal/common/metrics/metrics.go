// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BatchesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assignment_batches_generated_total",
			Help: "Total number of assignment batches generated",
		},
		[]string{"batch_type"},
	)

	CandidatesAssigned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assignment_candidates_assigned_total",
			Help: "Total number of candidates persisted into batches",
		},
		[]string{"tier"},
	)

	UnderfilledBatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assignment_batches_underfilled_total",
			Help: "Batches created with fewer candidates than requested quotas",
		},
	)

	CandidateResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assignment_candidate_responses_total",
			Help: "Candidate state-machine outcomes",
		},
		[]string{"outcome"},
	)

	SweepExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assignment_sweep_expired_total",
			Help: "Candidates transitioned to expired by the sweeper",
		},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "assignment_sweep_duration_seconds",
			Help: "Duration of one expiration sweep pass",
		},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assignment_notifications_sent_total",
			Help: "Outbound notifications by event and status",
		},
		[]string{"event", "status"},
	)
)
