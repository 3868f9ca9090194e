package outbox

import "github.com/joshua0624/gym-brain-v2-sub001/internal/events"

const workoutCompletedSchema = `{
  "type": "object",
  "title": "WorkoutCompleted",
  "properties": {
    "workout_id": {"type": "string"},
    "owner_id": {"type": "string"},
    "name": {"type": "string"},
    "started_at": {"type": "string", "format": "date-time"},
    "completed_at": {"type": "string", "format": "date-time"},
    "duration_seconds": {"type": "integer"},
    "total_volume": {"type": "number"},
    "exercise_count": {"type": "integer"},
    "set_count": {"type": "integer"},
    "drafts_cleared": {"type": "integer"}
  },
  "required": ["workout_id", "owner_id", "name", "started_at", "total_volume", "exercise_count", "set_count", "drafts_cleared"],
  "additionalProperties": false
}`

const draftDiscardedSchema = `{
  "type": "object",
  "title": "DraftDiscarded",
  "properties": {
    "draft_id": {"type": "string"},
    "owner_id": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["draft_id", "owner_id", "occurred_at"],
  "additionalProperties": false
}`

// schemaCatalog maps an outbox event type to the JSON schema registered for it.
var schemaCatalog = map[string]string{
	events.TypeWorkoutCompleted: workoutCompletedSchema,
	events.TypeDraftDiscarded:   draftDiscardedSchema,
}
