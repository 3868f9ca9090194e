// Package memory implements the draft registry and workout store in process memory
// for local development and tests. A single mutex makes every operation atomic.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/joshua0624/gym-brain-v2-sub001/internal/domain"
)

// Store holds drafts keyed by owner, workouts keyed by id and the exercise catalog.
type Store struct {
	mu         sync.RWMutex
	drafts     map[string]domain.Draft
	workouts   map[string]domain.Workout
	exerciseID map[string]string
	setID      map[string]string
	catalog    map[string]domain.Exercise
}

// NewStore constructs a Store seeded with catalog. A nil catalog uses DefaultCatalog.
func NewStore(catalog []domain.Exercise) *Store {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	s := &Store{
		drafts:     make(map[string]domain.Draft),
		workouts:   make(map[string]domain.Workout),
		exerciseID: make(map[string]string),
		setID:      make(map[string]string),
		catalog:    make(map[string]domain.Exercise, len(catalog)),
	}
	for _, ex := range catalog {
		s.catalog[ex.ID] = ex
	}
	return s
}

// DefaultCatalog mirrors the exercises seeded by the Postgres migrations.
func DefaultCatalog() []domain.Exercise {
	return []domain.Exercise{
		{ID: "barbell-back-squat", Name: "Barbell Back Squat", Type: domain.ExerciseTypeWeightReps},
		{ID: "barbell-bench-press", Name: "Barbell Bench Press", Type: domain.ExerciseTypeWeightReps},
		{ID: "conventional-deadlift", Name: "Conventional Deadlift", Type: domain.ExerciseTypeWeightReps},
		{ID: "overhead-press", Name: "Overhead Press", Type: domain.ExerciseTypeWeightReps},
		{ID: "pull-up", Name: "Pull-Up", Type: domain.ExerciseTypeBodyweightReps},
		{ID: "plank", Name: "Plank", Type: domain.ExerciseTypeDuration},
		{ID: "rowing-erg", Name: "Rowing Ergometer", Type: domain.ExerciseTypeDistance},
	}
}

// Current implements domain.DraftRepository.
func (s *Store) Current(ctx context.Context, owner string, now time.Time) (*domain.Draft, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft, ok := s.drafts[owner]
	if !ok {
		return nil, false, nil
	}
	if draft.Expired(now) {
		delete(s.drafts, owner)
		return nil, true, nil
	}
	out := copyDraft(draft)
	return &out, false, nil
}

// Upsert implements domain.DraftRepository.
func (s *Store) Upsert(ctx context.Context, draft domain.Draft) (*domain.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := copyDraft(draft)
	if existing, ok := s.drafts[draft.Owner]; ok && !existing.Expired(draft.LastSyncedAt) {
		next.ID = existing.ID
		next.CreatedAt = existing.CreatedAt
	}
	s.drafts[draft.Owner] = next
	out := copyDraft(next)
	return &out, nil
}

// DeleteOwned implements domain.DraftRepository.
func (s *Store) DeleteOwned(ctx context.Context, owner, id string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteOwnedLocked(owner, []string{id}), nil
}

// OwnerOf implements domain.DraftRepository.
func (s *Store) OwnerOf(ctx context.Context, id string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for owner, draft := range s.drafts {
		if draft.ID == id {
			return owner, true, nil
		}
	}
	return "", false, nil
}

// DeleteAll implements domain.DraftRepository.
func (s *Store) DeleteAll(ctx context.Context, owner string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.drafts[owner]; !ok {
		return 0, nil
	}
	delete(s.drafts, owner)
	return 1, nil
}

// DeleteMany implements domain.DraftRepository.
func (s *Store) DeleteMany(ctx context.Context, owner string, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteOwnedLocked(owner, ids), nil
}

// PurgeExpired implements domain.DraftRepository.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for owner, draft := range s.drafts {
		if draft.Expired(now) {
			delete(s.drafts, owner)
			purged++
		}
	}
	return purged, nil
}

func (s *Store) deleteOwnedLocked(owner string, ids []string) int {
	draft, ok := s.drafts[owner]
	if !ok {
		return 0
	}
	for _, id := range ids {
		if draft.ID == id {
			delete(s.drafts, owner)
			return 1
		}
	}
	return 0
}

// Complete implements domain.WorkoutRepository. Every check runs before the first
// mutation, so a failed completion leaves the store untouched.
func (s *Store) Complete(ctx context.Context, cmd domain.CompletionCommand) (*domain.CompletionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	workout := cmd.Workout
	if existing, ok := s.workouts[workout.ID]; ok {
		if existing.Owner != workout.Owner {
			return nil, domain.ErrForbidden
		}
		return &domain.CompletionResult{
			WorkoutID:     existing.ID,
			Duplicate:     true,
			TotalVolume:   existing.TotalVolume,
			DraftsDeleted: s.deleteOwnedLocked(workout.Owner, cmd.DeleteDraftIDs),
		}, nil
	}

	types := make(map[string]domain.ExerciseType, len(workout.Exercises))
	pendingExercises := make(map[string]struct{})
	pendingSets := make(map[string]struct{})
	for _, ex := range workout.Exercises {
		catalogEntry, ok := s.catalog[ex.ExerciseID]
		if !ok {
			return nil, &domain.ValidationError{Field: "exercises.exerciseId", Reason: "unknown exercise " + ex.ExerciseID}
		}
		types[ex.ExerciseID] = catalogEntry.Type
		if _, taken := s.exerciseID[ex.ID]; taken {
			return nil, domain.ErrIdentityConflict
		}
		if _, dup := pendingExercises[ex.ID]; dup {
			return nil, domain.ErrIdentityConflict
		}
		pendingExercises[ex.ID] = struct{}{}
		for _, set := range ex.Sets {
			if _, taken := s.setID[set.ID]; taken {
				return nil, domain.ErrIdentityConflict
			}
			if _, dup := pendingSets[set.ID]; dup {
				return nil, domain.ErrIdentityConflict
			}
			pendingSets[set.ID] = struct{}{}
		}
	}

	stored := copyWorkout(workout)
	stored.TotalVolume = domain.ComputeVolume(stored.Exercises, types)
	s.workouts[stored.ID] = stored
	for _, ex := range stored.Exercises {
		s.exerciseID[ex.ID] = stored.ID
		for _, set := range ex.Sets {
			s.setID[set.ID] = ex.ID
		}
	}

	return &domain.CompletionResult{
		WorkoutID:     stored.ID,
		TotalVolume:   stored.TotalVolume,
		DraftsDeleted: s.deleteOwnedLocked(workout.Owner, cmd.DeleteDraftIDs),
	}, nil
}

// Get implements domain.WorkoutRepository.
func (s *Store) Get(ctx context.Context, id string) (*domain.Workout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workout, ok := s.workouts[id]
	if !ok {
		return nil, nil
	}
	out := copyWorkout(workout)
	return &out, nil
}

// ListByOwner implements domain.WorkoutRepository.
func (s *Store) ListByOwner(ctx context.Context, owner string, cursor *domain.Cursor, limit int) ([]domain.Workout, *domain.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]domain.Workout, 0)
	for _, workout := range s.workouts {
		if workout.Owner != owner {
			continue
		}
		if cursor != nil && !before(workout, *cursor) {
			continue
		}
		summary := workout
		summary.Exercises = nil
		matches = append(matches, summary)
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].StartedAt.Equal(matches[j].StartedAt) {
			return matches[i].StartedAt.After(matches[j].StartedAt)
		}
		return matches[i].ID > matches[j].ID
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	var next *domain.Cursor
	if len(matches) == limit && limit > 0 {
		last := matches[len(matches)-1]
		next = &domain.Cursor{StartedAt: last.StartedAt, ID: last.ID}
	}
	return matches, next, nil
}

// ListExercises implements domain.ExerciseRepository.
func (s *Store) ListExercises(ctx context.Context) ([]domain.Exercise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Exercise, 0, len(s.catalog))
	for _, ex := range s.catalog {
		out = append(out, ex)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

func before(w domain.Workout, c domain.Cursor) bool {
	if w.StartedAt.Equal(c.StartedAt) {
		return w.ID < c.ID
	}
	return w.StartedAt.Before(c.StartedAt)
}

func copyDraft(d domain.Draft) domain.Draft {
	d.Data = append([]byte(nil), d.Data...)
	return d
}

func copyWorkout(w domain.Workout) domain.Workout {
	exercises := make([]domain.WorkoutExercise, len(w.Exercises))
	for i, ex := range w.Exercises {
		ex.Sets = append([]domain.Set(nil), ex.Sets...)
		exercises[i] = ex
	}
	w.Exercises = exercises
	return w
}
