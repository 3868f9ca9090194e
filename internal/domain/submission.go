package domain

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// WorkoutSubmission is a finished workout as captured by a client. Every id is
// optional; when present it is used verbatim and inserted only if absent.
type WorkoutSubmission struct {
	ID          string               `json:"id,omitempty" validate:"omitempty,max=64"`
	Name        string               `json:"name" validate:"required,max=200"`
	StartedAt   time.Time            `json:"startedAt" validate:"required"`
	CompletedAt *time.Time           `json:"completedAt,omitempty"`
	Notes       *string              `json:"notes,omitempty"`
	TemplateID  *string              `json:"templateId,omitempty"`
	Exercises   []ExerciseSubmission `json:"exercises" validate:"dive"`
}

// ExerciseSubmission is one exercise entry of a WorkoutSubmission.
type ExerciseSubmission struct {
	ID          string          `json:"id,omitempty" validate:"omitempty,max=64"`
	ExerciseID  string          `json:"exerciseId" validate:"required"`
	OrderIndex  *int            `json:"orderIndex,omitempty" validate:"omitempty,min=0"`
	IsCompleted *bool           `json:"isCompleted,omitempty"`
	Sets        []SetSubmission `json:"sets" validate:"dive"`
}

// SetSubmission is one set entry of an ExerciseSubmission.
type SetSubmission struct {
	ID              string   `json:"id,omitempty" validate:"omitempty,max=64"`
	SetNumber       *int     `json:"setNumber,omitempty" validate:"omitempty,min=1"`
	Weight          *float64 `json:"weight,omitempty" validate:"omitempty,min=0"`
	Reps            *int     `json:"reps,omitempty" validate:"omitempty,min=0"`
	RIR             *int     `json:"rir,omitempty" validate:"omitempty,min=0"`
	DurationSeconds *int     `json:"durationSeconds,omitempty" validate:"omitempty,min=0"`
	Distance        *float64 `json:"distance,omitempty" validate:"omitempty,min=0"`
	Notes           *string  `json:"notes,omitempty"`
	IsWarmup        *bool    `json:"isWarmup,omitempty"`
	IsCompleted     *bool    `json:"isCompleted,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// Validate checks a submission before any write is attempted.
func (s WorkoutSubmission) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if err := validate.Struct(s); err != nil {
		return translateValidation(err)
	}
	if s.CompletedAt != nil && s.CompletedAt.Before(s.StartedAt) {
		return &ValidationError{Field: "completedAt", Reason: "must not precede startedAt"}
	}
	return nil
}

func translateValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Reason: err.Error()}
	}
	first := verrs[0]
	field := first.Namespace()
	if idx := strings.Index(field, "."); idx >= 0 {
		field = field[idx+1:]
	}
	reason := "failed " + first.Tag()
	if first.Param() != "" {
		reason += "=" + first.Param()
	}
	return &ValidationError{Field: field, Reason: reason}
}

// Materialize turns a validated submission into a Workout owned by owner. Missing
// ids are generated; derived fields are filled by the repository at commit.
func (s WorkoutSubmission) Materialize(owner string, now time.Time) Workout {
	workout := Workout{
		ID:         idOrNew(s.ID),
		Owner:      owner,
		Name:       strings.TrimSpace(s.Name),
		StartedAt:  s.StartedAt.UTC(),
		Notes:      s.Notes,
		TemplateID: s.TemplateID,
		CreatedAt:  now,
		UpdatedAt:  now,
		Exercises:  make([]WorkoutExercise, 0, len(s.Exercises)),
	}
	if s.CompletedAt != nil {
		completed := s.CompletedAt.UTC()
		workout.CompletedAt = &completed
		duration := int(completed.Sub(workout.StartedAt) / time.Second)
		workout.DurationSeconds = &duration
	}

	for i, ex := range s.Exercises {
		exercise := WorkoutExercise{
			ID:          idOrNew(ex.ID),
			WorkoutID:   workout.ID,
			ExerciseID:  ex.ExerciseID,
			OrderIndex:  i,
			IsCompleted: boolValue(ex.IsCompleted),
			Sets:        make([]Set, 0, len(ex.Sets)),
		}
		if ex.OrderIndex != nil {
			exercise.OrderIndex = *ex.OrderIndex
		}
		for j, set := range ex.Sets {
			number := j + 1
			if set.SetNumber != nil {
				number = *set.SetNumber
			}
			exercise.Sets = append(exercise.Sets, Set{
				ID:                idOrNew(set.ID),
				WorkoutExerciseID: exercise.ID,
				SetNumber:         number,
				Weight:            set.Weight,
				Reps:              set.Reps,
				RIR:               set.RIR,
				DurationSeconds:   set.DurationSeconds,
				Distance:          set.Distance,
				Notes:             set.Notes,
				IsWarmup:          boolValue(set.IsWarmup),
				IsCompleted:       boolValue(set.IsCompleted),
			})
		}
		workout.Exercises = append(workout.Exercises, exercise)
	}
	return workout
}

func idOrNew(id string) string {
	if trimmed := strings.TrimSpace(id); trimmed != "" {
		return trimmed
	}
	return uuid.NewString()
}

func boolValue(v *bool) bool {
	return v != nil && *v
}
