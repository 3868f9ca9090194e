package domain

import (
	"context"
	"fmt"
)

// GetWorkout returns a workout tree owned by owner.
func (s *Service) GetWorkout(ctx context.Context, owner, id string) (*Workout, error) {
	workout, err := s.workouts.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load workout: %w", err)
	}
	if workout == nil {
		return nil, ErrWorkoutNotFound
	}
	if workout.Owner != owner {
		return nil, ErrForbidden
	}
	return workout, nil
}

// ListWorkouts fetches an owner's workouts with cursor pagination.
func (s *Service) ListWorkouts(ctx context.Context, owner string, cursor *Cursor, limit int) ([]Workout, *Cursor, error) {
	switch {
	case limit <= 0:
		limit = 20
	case limit > 100:
		limit = 100
	}
	return s.workouts.ListByOwner(ctx, owner, cursor, limit)
}

// ListExercises returns the exercise catalog clients cache for offline logging.
func (s *Service) ListExercises(ctx context.Context) ([]Exercise, error) {
	return s.exercises.ListExercises(ctx)
}
