// Package events defines the workout lifecycle payloads written to the outbox.
package events

import "time"

// Event types recorded in the outbox.
const (
	TypeWorkoutCompleted = "workout.completed"
	TypeDraftDiscarded   = "draft.discarded"
)

// Kafka topics the outbox dispatcher publishes to.
const (
	TopicWorkoutEvents = "workout_events"
	TopicDraftEvents   = "draft_events"
)

// WorkoutCompleted is emitted once per newly materialized workout.
type WorkoutCompleted struct {
	WorkoutID       string     `json:"workout_id"`
	OwnerID         string     `json:"owner_id"`
	Name            string     `json:"name"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DurationSeconds *int       `json:"duration_seconds,omitempty"`
	TotalVolume     float64    `json:"total_volume"`
	ExerciseCount   int        `json:"exercise_count"`
	SetCount        int        `json:"set_count"`
	DraftsCleared   int        `json:"drafts_cleared"`
}

// DraftDiscarded is emitted when an owner explicitly throws away a draft.
type DraftDiscarded struct {
	DraftID    string    `json:"draft_id"`
	OwnerID    string    `json:"owner_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
