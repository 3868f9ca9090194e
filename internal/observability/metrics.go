// Package observability exposes Prometheus collectors for the draft registry and the
// completion transaction.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	workoutPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "workout_sync",
		Subsystem: "persistence",
		Name:      "last_workout_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent workout committed by the completion transaction.",
	})

	workoutOutcomeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workout_sync",
		Subsystem: "sync",
		Name:      "workouts_total",
		Help:      "Submitted workouts grouped by outcome (applied, duplicate, skipped).",
	}, []string{"outcome"})

	completionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "workout_sync",
		Subsystem: "sync",
		Name:      "completion_duration_seconds",
		Help:      "Time spent inside a single workout completion transaction.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	})

	draftSavedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "workout_sync",
		Subsystem: "drafts",
		Name:      "saved_total",
		Help:      "Number of draft upserts accepted.",
	})

	draftExpiredCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workout_sync",
		Subsystem: "drafts",
		Name:      "expired_total",
		Help:      "Expired drafts removed, labeled by the path that removed them (read, purge).",
	}, []string{"path"})

	draftDeletedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workout_sync",
		Subsystem: "drafts",
		Name:      "deleted_total",
		Help:      "Drafts deleted, labeled by path (discard, completion).",
	}, []string{"path"})
)

func init() {
	prometheus.MustRegister(workoutPersistGauge, workoutOutcomeCounter, completionDuration, draftSavedCounter, draftExpiredCounter, draftDeletedCounter)
}

// RecordWorkoutPersisted updates the persistence watermark gauge.
func RecordWorkoutPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	workoutPersistGauge.Set(float64(ts.Unix()))
}

// RecordWorkoutOutcome counts one submitted workout.
func RecordWorkoutOutcome(outcome string) {
	workoutOutcomeCounter.WithLabelValues(outcome).Inc()
}

// ObserveCompletion records the latency of one completion transaction.
func ObserveCompletion(d time.Duration) {
	completionDuration.Observe(d.Seconds())
}

// RecordDraftSaved counts an accepted draft upsert.
func RecordDraftSaved() {
	draftSavedCounter.Inc()
}

// RecordDraftsExpired counts expired drafts removed via path.
func RecordDraftsExpired(path string, n int) {
	if n <= 0 {
		return
	}
	draftExpiredCounter.WithLabelValues(path).Add(float64(n))
}

// RecordDraftsDeleted counts drafts deleted via path.
func RecordDraftsDeleted(path string, n int) {
	if n <= 0 {
		return
	}
	draftDeletedCounter.WithLabelValues(path).Add(float64(n))
}
