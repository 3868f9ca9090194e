package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/joshua0624/gym-brain-v2-sub001/internal/domain"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/events"
)

const workoutColumns = `workout_id, owner_id, name, started_at, completed_at, duration_seconds, total_volume, notes, template_id, created_at, updated_at`

const recomputeVolume = `UPDATE workouts SET total_volume = COALESCE((
        SELECT SUM(s.weight * s.reps)
          FROM workout_sets s
          JOIN workout_exercises we ON we.workout_exercise_id = s.workout_exercise_id
          JOIN exercises e ON e.exercise_id = we.exercise_id
         WHERE we.workout_id = $1
           AND e.exercise_type = 'weight_reps'
           AND NOT s.is_warmup
           AND s.weight IS NOT NULL
           AND s.reps IS NOT NULL
    ), 0)
    WHERE workout_id = $1
    RETURNING total_volume`

// Complete implements domain.WorkoutRepository. The workout tree, the volume
// recomputation, the draft deletes and the outbox row commit or roll back together.
func (r *Repository) Complete(ctx context.Context, cmd domain.CompletionCommand) (*domain.CompletionResult, error) {
	w := cmd.Workout

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var inserted string
	err = tx.QueryRow(ctx, `INSERT INTO workouts (`+workoutColumns+`)
        VALUES ($1,$2,$3,$4,$5,$6,0,$7,$8,$9,$10)
        ON CONFLICT (workout_id) DO NOTHING
        RETURNING workout_id`,
		w.ID, w.Owner, w.Name, w.StartedAt, w.CompletedAt, w.DurationSeconds, w.Notes, w.TemplateID, w.CreatedAt, w.UpdatedAt,
	).Scan(&inserted)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.replay(ctx, tx, cmd)
	}
	if err != nil {
		return nil, err
	}

	if err := checkCatalog(ctx, tx, w.Exercises); err != nil {
		return nil, err
	}

	for _, ex := range w.Exercises {
		if err := insertReturning(ctx, tx, `INSERT INTO workout_exercises (workout_exercise_id, workout_id, exercise_id, order_index, is_completed)
            VALUES ($1,$2,$3,$4,$5)
            ON CONFLICT (workout_exercise_id) DO NOTHING
            RETURNING workout_exercise_id`,
			ex.ID, w.ID, ex.ExerciseID, ex.OrderIndex, ex.IsCompleted,
		); err != nil {
			return nil, err
		}
		for _, s := range ex.Sets {
			if err := insertReturning(ctx, tx, `INSERT INTO workout_sets (set_id, workout_exercise_id, set_number, weight, reps, rir, duration_seconds, distance, notes, is_warmup, is_completed)
                VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
                ON CONFLICT (set_id) DO NOTHING
                RETURNING set_id`,
				s.ID, ex.ID, s.SetNumber, s.Weight, s.Reps, s.RIR, s.DurationSeconds, s.Distance, s.Notes, s.IsWarmup, s.IsCompleted,
			); err != nil {
				return nil, err
			}
		}
	}

	result := &domain.CompletionResult{WorkoutID: w.ID}
	if err := tx.QueryRow(ctx, recomputeVolume, w.ID).Scan(&result.TotalVolume); err != nil {
		return nil, err
	}

	if result.DraftsDeleted, err = deleteDrafts(ctx, tx, w.Owner, cmd.DeleteDraftIDs); err != nil {
		return nil, err
	}

	if err := r.insertOutbox(ctx, tx, outboxRecord{
		owner:         w.Owner,
		aggregateType: "workout",
		aggregateID:   w.ID,
		eventType:     events.TypeWorkoutCompleted,
		payload: events.WorkoutCompleted{
			WorkoutID:       w.ID,
			OwnerID:         w.Owner,
			Name:            w.Name,
			StartedAt:       w.StartedAt,
			CompletedAt:     w.CompletedAt,
			DurationSeconds: w.DurationSeconds,
			TotalVolume:     result.TotalVolume,
			ExerciseCount:   len(w.Exercises),
			SetCount:        w.SetCount(),
			DraftsCleared:   result.DraftsDeleted,
		},
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// replay handles a workout id that already exists. The owner's own replay still
// retires the drafts; anyone else's is refused without revealing the row.
func (r *Repository) replay(ctx context.Context, tx pgx.Tx, cmd domain.CompletionCommand) (*domain.CompletionResult, error) {
	var (
		owner  string
		result = &domain.CompletionResult{WorkoutID: cmd.Workout.ID, Duplicate: true}
	)
	err := tx.QueryRow(ctx, `SELECT owner_id, total_volume FROM workouts WHERE workout_id = $1`, cmd.Workout.ID).
		Scan(&owner, &result.TotalVolume)
	if err != nil {
		return nil, err
	}
	if owner != cmd.Workout.Owner {
		return nil, domain.ErrForbidden
	}

	if result.DraftsDeleted, err = deleteDrafts(ctx, tx, owner, cmd.DeleteDraftIDs); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

func checkCatalog(ctx context.Context, tx pgx.Tx, exercises []domain.WorkoutExercise) error {
	if len(exercises) == 0 {
		return nil
	}
	ids := make([]string, 0, len(exercises))
	for _, ex := range exercises {
		ids = append(ids, ex.ExerciseID)
	}

	rows, err := tx.Query(ctx, `SELECT exercise_id FROM exercises WHERE exercise_id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	known, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(known))
	for _, id := range known {
		seen[id] = struct{}{}
	}
	var missing []string
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return &domain.ValidationError{Field: "exercises.exerciseId", Reason: "unknown exercise " + strings.Join(missing, ", ")}
	}
	return nil
}

// insertReturning runs an insert-if-absent and maps a silently skipped row to an
// identity conflict, since the caller-supplied id already belongs to another record.
func insertReturning(ctx context.Context, tx pgx.Tx, stmt string, args ...any) error {
	var id string
	err := tx.QueryRow(ctx, stmt, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrIdentityConflict
	}
	return err
}

func deleteDrafts(ctx context.Context, tx pgx.Tx, owner string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := tx.Exec(ctx, `DELETE FROM workout_drafts WHERE owner_id = $1 AND draft_id = ANY($2)`, owner, ids)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Get implements domain.WorkoutRepository.
func (r *Repository) Get(ctx context.Context, id string) (*domain.Workout, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	workout, err := scanWorkout(tx.QueryRow(ctx, `SELECT `+workoutColumns+` FROM workouts WHERE workout_id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `SELECT workout_exercise_id, workout_id, exercise_id, order_index, is_completed
        FROM workout_exercises WHERE workout_id = $1 ORDER BY order_index, workout_exercise_id`, id)
	if err != nil {
		return nil, err
	}
	exercises, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.WorkoutExercise, error) {
		var ex domain.WorkoutExercise
		err := row.Scan(&ex.ID, &ex.WorkoutID, &ex.ExerciseID, &ex.OrderIndex, &ex.IsCompleted)
		return ex, err
	})
	if err != nil {
		return nil, err
	}

	rows, err = tx.Query(ctx, `SELECT s.set_id, s.workout_exercise_id, s.set_number, s.weight, s.reps, s.rir, s.duration_seconds, s.distance, s.notes, s.is_warmup, s.is_completed
        FROM workout_sets s
        JOIN workout_exercises we ON we.workout_exercise_id = s.workout_exercise_id
        WHERE we.workout_id = $1
        ORDER BY s.set_number, s.set_id`, id)
	if err != nil {
		return nil, err
	}
	sets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Set, error) {
		var s domain.Set
		err := row.Scan(&s.ID, &s.WorkoutExerciseID, &s.SetNumber, &s.Weight, &s.Reps, &s.RIR, &s.DurationSeconds, &s.Distance, &s.Notes, &s.IsWarmup, &s.IsCompleted)
		return s, err
	})
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	index := make(map[string]int, len(exercises))
	for i := range exercises {
		index[exercises[i].ID] = i
		exercises[i].Sets = make([]domain.Set, 0)
	}
	for _, s := range sets {
		if i, ok := index[s.WorkoutExerciseID]; ok {
			exercises[i].Sets = append(exercises[i].Sets, s)
		}
	}
	workout.Exercises = exercises
	return workout, nil
}

// ListByOwner implements domain.WorkoutRepository.
func (r *Repository) ListByOwner(ctx context.Context, owner string, cursor *domain.Cursor, limit int) ([]domain.Workout, *domain.Cursor, error) {
	args := []any{owner, limit}
	query := `SELECT ` + workoutColumns + ` FROM workouts WHERE owner_id = $1`

	if cursor != nil {
		query += ` AND (started_at, workout_id) < ($3, $4)`
		args = append(args, cursor.StartedAt, cursor.ID)
	}
	query += ` ORDER BY started_at DESC, workout_id DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Workout, error) {
		w, err := scanWorkout(row)
		if err != nil {
			return domain.Workout{}, err
		}
		return *w, nil
	})
	if err != nil {
		return nil, nil, err
	}

	var nextCursor *domain.Cursor
	if len(results) == limit && limit > 0 {
		last := results[len(results)-1]
		nextCursor = &domain.Cursor{StartedAt: last.StartedAt, ID: last.ID}
	}
	return results, nextCursor, nil
}

// ListExercises implements domain.ExerciseRepository.
func (r *Repository) ListExercises(ctx context.Context) ([]domain.Exercise, error) {
	rows, err := r.pool.Query(ctx, `SELECT exercise_id, name, exercise_type FROM exercises ORDER BY lower(name)`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Exercise, error) {
		var ex domain.Exercise
		err := row.Scan(&ex.ID, &ex.Name, &ex.Type)
		return ex, err
	})
}

func scanWorkout(row pgx.Row) (*domain.Workout, error) {
	var w domain.Workout
	if err := row.Scan(&w.ID, &w.Owner, &w.Name, &w.StartedAt, &w.CompletedAt, &w.DurationSeconds, &w.TotalVolume, &w.Notes, &w.TemplateID, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}
