// Package wire holds the JSON bodies exchanged between the sync API and its clients.
package wire

import (
	"encoding/json"
	"time"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

// Draft is the remote draft as exposed over HTTP. Data and CreatedAt are omitted from
// save acknowledgements.
type Draft struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Data         json.RawMessage `json:"data,omitempty"`
	LastSyncedAt time.Time       `json:"lastSyncedAt"`
	CreatedAt    *time.Time      `json:"createdAt,omitempty"`
	ExpiresAt    time.Time       `json:"expiresAt"`
}

// GetDraftResponse answers GET /v1/drafts. Draft is null when the slot is empty.
type GetDraftResponse struct {
	Draft *Draft `json:"draft"`
}

// SaveDraftRequest is the body of POST /v1/drafts.
type SaveDraftRequest struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

// SaveDraftResponse answers POST /v1/drafts.
type SaveDraftResponse struct {
	Draft Draft `json:"draft"`
}

// DeleteDraftsResponse answers DELETE /v1/drafts.
type DeleteDraftsResponse struct {
	Success      bool `json:"success"`
	DeletedCount int  `json:"deletedCount"`
}

// SyncRequest is the body of POST /v1/sync. Workouts stay raw so that one malformed
// entry cannot reject the whole batch.
type SyncRequest struct {
	CompletedWorkouts []json.RawMessage `json:"completedWorkouts"`
	DeleteDraftIDs    []string          `json:"deleteDraftIds"`
}

// SyncedWorkout maps a submitted workout to the id it is stored under.
type SyncedWorkout struct {
	ClientID string `json:"clientId,omitempty"`
	ServerID string `json:"serverId"`
	Name     string `json:"name"`
	Status   string `json:"status"`
}

// SkippedWorkout reports a workout of the batch that was not persisted.
type SkippedWorkout struct {
	Index    int    `json:"index"`
	ClientID string `json:"clientId,omitempty"`
	Reason   string `json:"reason"`
	Code     string `json:"code"`
}

// SyncResponse answers POST /v1/sync.
type SyncResponse struct {
	Success        bool             `json:"success"`
	SyncedWorkouts []SyncedWorkout  `json:"syncedWorkouts"`
	Skipped        []SkippedWorkout `json:"skipped"`
	DeletedDrafts  int              `json:"deletedDrafts"`
}

// Set is one logged set of a stored workout.
type Set struct {
	ID              string   `json:"id"`
	SetNumber       int      `json:"setNumber"`
	Weight          *float64 `json:"weight,omitempty"`
	Reps            *int     `json:"reps,omitempty"`
	RIR             *int     `json:"rir,omitempty"`
	DurationSeconds *int     `json:"durationSeconds,omitempty"`
	Distance        *float64 `json:"distance,omitempty"`
	Notes           *string  `json:"notes,omitempty"`
	IsWarmup        bool     `json:"isWarmup"`
	IsCompleted     bool     `json:"isCompleted"`
}

// WorkoutExercise is one exercise slot of a stored workout.
type WorkoutExercise struct {
	ID          string `json:"id"`
	ExerciseID  string `json:"exerciseId"`
	OrderIndex  int    `json:"orderIndex"`
	IsCompleted bool   `json:"isCompleted"`
	Sets        []Set  `json:"sets"`
}

// Workout is a stored workout. Exercises is omitted from listings.
type Workout struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	StartedAt       time.Time         `json:"startedAt"`
	CompletedAt     *time.Time        `json:"completedAt,omitempty"`
	DurationSeconds *int              `json:"durationSeconds,omitempty"`
	TotalVolume     float64           `json:"totalVolume"`
	Notes           *string           `json:"notes,omitempty"`
	TemplateID      *string           `json:"templateId,omitempty"`
	Exercises       []WorkoutExercise `json:"exercises,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
}

// ListWorkoutsResponse answers GET /v1/workouts.
type ListWorkoutsResponse struct {
	Items      []Workout `json:"items"`
	NextCursor string    `json:"nextCursor,omitempty"`
}

// Exercise is a catalog entry.
type Exercise struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// ExercisesResponse answers GET /v1/exercises.
type ExercisesResponse struct {
	Exercises []Exercise `json:"exercises"`
}
