package domain

import (
	"context"
	"time"
)

// ExerciseType classifies catalog exercises by how they are measured.
type ExerciseType string

const (
	ExerciseTypeWeightReps     ExerciseType = "weight_reps"
	ExerciseTypeBodyweightReps ExerciseType = "bodyweight_reps"
	ExerciseTypeDuration       ExerciseType = "duration"
	ExerciseTypeDistance       ExerciseType = "distance"
)

// VolumeBearing reports whether sets of this type contribute weight × reps volume.
func (t ExerciseType) VolumeBearing() bool {
	return t == ExerciseTypeWeightReps
}

// Exercise is a catalog entry referenced by workout exercises.
type Exercise struct {
	ID   string
	Name string
	Type ExerciseType
}

// Workout is the canonical, permanent record of a finished session.
type Workout struct {
	ID              string
	Owner           string
	Name            string
	StartedAt       time.Time
	CompletedAt     *time.Time
	DurationSeconds *int
	TotalVolume     float64
	Notes           *string
	TemplateID      *string
	Exercises       []WorkoutExercise
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// WorkoutExercise is one exercise slot within a workout.
type WorkoutExercise struct {
	ID          string
	WorkoutID   string
	ExerciseID  string
	OrderIndex  int
	IsCompleted bool
	Sets        []Set
}

// Set is a single logged set.
type Set struct {
	ID                string
	WorkoutExerciseID string
	SetNumber         int
	Weight            *float64
	Reps              *int
	RIR               *int
	DurationSeconds   *int
	Distance          *float64
	Notes             *string
	IsWarmup          bool
	IsCompleted       bool
}

// SetCount returns the total number of sets across all exercises.
func (w Workout) SetCount() int {
	total := 0
	for _, ex := range w.Exercises {
		total += len(ex.Sets)
	}
	return total
}

// ComputeVolume sums weight × reps over the non-warmup sets of volume-bearing exercises.
// Exercises missing from catalog contribute nothing.
func ComputeVolume(exercises []WorkoutExercise, catalog map[string]ExerciseType) float64 {
	var total float64
	for _, ex := range exercises {
		if !catalog[ex.ExerciseID].VolumeBearing() {
			continue
		}
		for _, set := range ex.Sets {
			if set.IsWarmup || set.Weight == nil || set.Reps == nil {
				continue
			}
			total += *set.Weight * float64(*set.Reps)
		}
	}
	return total
}

// Cursor models the pagination token for workout listings.
type Cursor struct {
	StartedAt time.Time
	ID        string
}

// CompletionCommand is one workout to materialize plus the drafts its commit retires.
type CompletionCommand struct {
	Workout        Workout
	DeleteDraftIDs []string
}

// CompletionResult describes what a committed completion did.
type CompletionResult struct {
	WorkoutID     string
	Duplicate     bool
	TotalVolume   float64
	DraftsDeleted int
}

// WorkoutRepository persists canonical workouts.
type WorkoutRepository interface {
	// Complete inserts the workout tree, recomputes its volume and deletes the listed
	// drafts of the same owner in one transaction. A workout id that already exists
	// for the owner is a duplicate replay: nothing is re-inserted, drafts are still
	// deleted and Duplicate is set. An id held by another owner yields ErrForbidden.
	Complete(ctx context.Context, cmd CompletionCommand) (*CompletionResult, error)
	// Get returns the workout with its exercise and set tree, or nil when absent.
	Get(ctx context.Context, id string) (*Workout, error)
	// ListByOwner returns workouts newest first without their trees.
	ListByOwner(ctx context.Context, owner string, cursor *Cursor, limit int) ([]Workout, *Cursor, error)
}

// ExerciseRepository reads the exercise catalog.
type ExerciseRepository interface {
	ListExercises(ctx context.Context) ([]Exercise, error)
}
