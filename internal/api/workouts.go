package api

import (
	"net/http"
	"strconv"

	"github.com/joshua0624/gym-brain-v2-sub001/internal/auth"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/domain"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/persistence"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/wire"
)

func (h *Handler) getWorkout(w http.ResponseWriter, r *http.Request) {
	caller, ok := owner(w, r, auth.ScopeWorkoutsRead, auth.ScopeWorkoutsWrite)
	if !ok {
		return
	}

	workout, err := h.service.GetWorkout(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkoutView(*workout))
}

func (h *Handler) listWorkouts(w http.ResponseWriter, r *http.Request) {
	caller, ok := owner(w, r, auth.ScopeWorkoutsRead, auth.ScopeWorkoutsWrite)
	if !ok {
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	workouts, next, err := h.service.ListWorkouts(r.Context(), caller, cursor, limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	items := make([]wire.Workout, 0, len(workouts))
	for _, workout := range workouts {
		items = append(items, toWorkoutView(workout))
	}
	writeJSON(w, http.StatusOK, wire.ListWorkoutsResponse{Items: items, NextCursor: persistence.EncodeCursor(next)})
}

func (h *Handler) listExercises(w http.ResponseWriter, r *http.Request) {
	if _, ok := owner(w, r, auth.ScopeWorkoutsRead, auth.ScopeWorkoutsWrite); !ok {
		return
	}

	catalog, err := h.service.ListExercises(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := wire.ExercisesResponse{Exercises: make([]wire.Exercise, 0, len(catalog))}
	for _, ex := range catalog {
		resp.Exercises = append(resp.Exercises, wire.Exercise{ID: ex.ID, Name: ex.Name, Type: string(ex.Type)})
	}
	writeJSON(w, http.StatusOK, resp)
}

func toWorkoutView(workout domain.Workout) wire.Workout {
	view := wire.Workout{
		ID:              workout.ID,
		Name:            workout.Name,
		StartedAt:       workout.StartedAt,
		CompletedAt:     workout.CompletedAt,
		DurationSeconds: workout.DurationSeconds,
		TotalVolume:     workout.TotalVolume,
		Notes:           workout.Notes,
		TemplateID:      workout.TemplateID,
		CreatedAt:       workout.CreatedAt,
	}
	for _, ex := range workout.Exercises {
		exercise := wire.WorkoutExercise{
			ID:          ex.ID,
			ExerciseID:  ex.ExerciseID,
			OrderIndex:  ex.OrderIndex,
			IsCompleted: ex.IsCompleted,
			Sets:        make([]wire.Set, 0, len(ex.Sets)),
		}
		for _, s := range ex.Sets {
			exercise.Sets = append(exercise.Sets, wire.Set{
				ID:              s.ID,
				SetNumber:       s.SetNumber,
				Weight:          s.Weight,
				Reps:            s.Reps,
				RIR:             s.RIR,
				DurationSeconds: s.DurationSeconds,
				Distance:        s.Distance,
				Notes:           s.Notes,
				IsWarmup:        s.IsWarmup,
				IsCompleted:     s.IsCompleted,
			})
		}
		view.Exercises = append(view.Exercises, exercise)
	}
	return view
}
