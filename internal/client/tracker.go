// Package client is the offline workout tracker: it logs a workout on the device,
// autosaves it as a draft, and queues the finished workout for sync.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joshua0624/gym-brain-v2-sub001/internal/client/autosave"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/client/localstore"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/client/netmon"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/client/remote"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/client/syncqueue"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/domain"
)

var (
	// ErrNoActiveWorkout is returned when an operation needs an in-progress workout.
	ErrNoActiveWorkout = errors.New("no workout in progress")
	// ErrWorkoutInProgress is returned by Start while another workout is open.
	ErrWorkoutInProgress = errors.New("a workout is already in progress")
	// ErrUnknownExercise is returned for an exercise missing from the cached catalog.
	ErrUnknownExercise = errors.New("exercise not in catalog")
)

// Tracker ties the client components together.
type Tracker struct {
	store     *localstore.Store
	remote    *remote.Client
	monitor   *netmon.Monitor
	processor *syncqueue.Processor
	autosave  *autosave.Controller
	logger    *slog.Logger
	now       func() time.Time
}

// Config groups the tunables of a Tracker.
type Config struct {
	AutosaveInterval time.Duration
	ProbeInterval    time.Duration
	MaxRetries       int
	Logger           *slog.Logger
	Now              func() time.Time
}

// New wires a Tracker over an open store and API client.
func New(store *localstore.Store, client *remote.Client, cfg Config) *Tracker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	monitor := netmon.New(client.Ping, cfg.ProbeInterval, netmon.WithLogger(logger.With("component", "netmon")))
	return &Tracker{
		store:   store,
		remote:  client,
		monitor: monitor,
		processor: syncqueue.NewProcessor(store, client, monitor.Online,
			syncqueue.WithLogger(logger.With("component", "syncqueue")),
			syncqueue.WithMaxRetries(cfg.MaxRetries)),
		autosave: autosave.NewController(store, client, monitor.Online, cfg.AutosaveInterval,
			autosave.WithLogger(logger.With("component", "autosave")),
			autosave.WithClock(now)),
		logger: logger,
		now:    now,
	}
}

// Connect probes the server once so that later calls know whether to go remote.
func (t *Tracker) Connect(ctx context.Context) bool {
	return t.monitor.Check(ctx)
}

// Start opens a new workout.
func (t *Tracker) Start(ctx context.Context, name string) (*localstore.Draft, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("workout name is required")
	}
	if err := t.ensureIdle(ctx); err != nil {
		return nil, err
	}

	draft := localstore.Draft{
		ID: uuid.NewString(),
		Workout: domain.WorkoutSubmission{
			ID:        uuid.NewString(),
			Name:      name,
			StartedAt: t.now(),
			Exercises: []domain.ExerciseSubmission{},
		},
	}
	saved, err := t.autosave.Create(ctx, draft)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// Active returns the in-progress workout.
func (t *Tracker) Active(ctx context.Context) (*localstore.Draft, error) {
	draft, err := t.store.ActiveDraft(ctx)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, ErrNoActiveWorkout
	}
	return draft, nil
}

// AddExercise appends an exercise slot. The catalog is checked only once it has been
// cached.
func (t *Tracker) AddExercise(ctx context.Context, exerciseID string) (*localstore.Draft, error) {
	draft, err := t.Active(ctx)
	if err != nil {
		return nil, err
	}
	if err := t.checkCatalog(ctx, exerciseID); err != nil {
		return nil, err
	}

	return t.apply(ctx, draft.ID, func(d *localstore.Draft) error {
		order := len(d.Workout.Exercises)
		d.Workout.Exercises = append(d.Workout.Exercises, domain.ExerciseSubmission{
			ID:         uuid.NewString(),
			ExerciseID: exerciseID,
			OrderIndex: &order,
			Sets:       []domain.SetSubmission{},
		})
		return nil
	})
}

// SetInput describes a completed set.
type SetInput struct {
	Weight          *float64
	Reps            *int
	RIR             *int
	DurationSeconds *int
	Distance        *float64
	Warmup          bool
}

// LogSet records a completed set on the exercise at index and snapshots the workout.
func (t *Tracker) LogSet(ctx context.Context, index int, in SetInput) (*localstore.Draft, error) {
	draft, err := t.Active(ctx)
	if err != nil {
		return nil, err
	}

	return t.apply(ctx, draft.ID, func(d *localstore.Draft) error {
		if index < 0 || index >= len(d.Workout.Exercises) {
			return fmt.Errorf("exercise index %d out of range (have %d)", index, len(d.Workout.Exercises))
		}
		exercise := &d.Workout.Exercises[index]
		number := len(exercise.Sets) + 1
		completed := true
		warmup := in.Warmup
		exercise.Sets = append(exercise.Sets, domain.SetSubmission{
			ID:              uuid.NewString(),
			SetNumber:       &number,
			Weight:          in.Weight,
			Reps:            in.Reps,
			RIR:             in.RIR,
			DurationSeconds: in.DurationSeconds,
			Distance:        in.Distance,
			IsWarmup:        &warmup,
			IsCompleted:     &completed,
		})
		return nil
	})
}

func (t *Tracker) apply(ctx context.Context, id string, mutate func(*localstore.Draft) error) (*localstore.Draft, error) {
	saved, err := t.autosave.Apply(ctx, id, mutate)
	if errors.Is(err, autosave.ErrDraftClosed) {
		return nil, ErrNoActiveWorkout
	}
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// Finish closes the in-progress workout, caches it and queues it for sync. The draft
// is removed in the same local transaction, so a pending autosave cannot bring it back.
func (t *Tracker) Finish(ctx context.Context) (int64, error) {
	draft, err := t.Active(ctx)
	if err != nil {
		return 0, err
	}

	var (
		seq    int64
		closed bool
	)
	err = t.autosave.Exclusive(func() error {
		var err error
		seq, closed, err = t.store.FinishDraft(ctx, draft.ID, func(d localstore.Draft) (localstore.Closing, error) {
			workout := d.Workout
			completedAt := t.now()
			workout.CompletedAt = &completedAt
			if err := workout.Validate(); err != nil {
				return localstore.Closing{}, err
			}
			completion := syncqueue.Completion{LocalID: d.ID, Workout: workout, ResolveDraft: d.RemoteAttempted}
			if d.RemoteID != "" {
				completion.DeleteDraftIDs = []string{d.RemoteID}
			}
			return localstore.Closing{
				Workout:   localstore.Workout{ID: d.ID, Workout: workout, FinishedAt: completedAt},
				Operation: syncqueue.OperationCompleteWorkout,
				Payload:   completion,
			}, nil
		})
		return err
	})
	if err != nil {
		return 0, err
	}
	if !closed {
		return 0, ErrNoActiveWorkout
	}

	t.logger.Info("workout queued", "seq", seq, "workout", draft.Workout.ID)
	if t.monitor.Online() {
		t.processor.Kick()
	}
	return seq, nil
}

// Discard abandons the in-progress workout. The remote slot is cleared when reachable
// and still holding this workout, and otherwise left to expire.
func (t *Tracker) Discard(ctx context.Context) error {
	draft, err := t.Active(ctx)
	if err != nil {
		return err
	}

	var closed bool
	err = t.autosave.Exclusive(func() error {
		var err error
		_, closed, err = t.store.Drafts().Take(ctx, draft.ID)
		return err
	})
	if err != nil {
		return err
	}
	if !closed {
		return ErrNoActiveWorkout
	}
	if !draft.RemoteAttempted || !t.monitor.Online() {
		return nil
	}

	id, err := autosave.FindSlot(ctx, t.remote, draft.ID)
	if err == nil && id != "" {
		_, err = t.remote.DeleteDraft(ctx, id)
	}
	if err != nil {
		t.logger.Warn("remote draft discard failed", "draft", draft.ID, "error", err)
	}
	return nil
}

// Resume restores the server's draft onto this device.
func (t *Tracker) Resume(ctx context.Context) (*localstore.Draft, error) {
	if err := t.ensureIdle(ctx); err != nil {
		return nil, err
	}

	remoteDraft, err := t.remote.GetDraft(ctx)
	if err != nil {
		return nil, err
	}
	if remoteDraft == nil {
		return nil, ErrNoActiveWorkout
	}
	snap, err := autosave.DecodeSnapshot(remoteDraft.Data)
	if err != nil {
		return nil, err
	}

	synced := remoteDraft.LastSyncedAt
	draft := localstore.Draft{
		ID:              snap.LocalID,
		RemoteID:        remoteDraft.ID,
		RemoteAttempted: true,
		Workout:         snap.Workout,
		UpdatedAt:       t.now(),
		RemoteSyncedAt:  &synced,
	}
	if draft.ID == "" {
		draft.ID = uuid.NewString()
	}
	err = t.autosave.Exclusive(func() error {
		if err := t.ensureIdle(ctx); err != nil {
			return err
		}
		return t.store.Drafts().Save(ctx, draft)
	})
	if err != nil {
		return nil, err
	}
	return &draft, nil
}

func (t *Tracker) ensureIdle(ctx context.Context) error {
	active, err := t.store.ActiveDraft(ctx)
	if err != nil {
		return err
	}
	if active != nil {
		return fmt.Errorf("%w: %q", ErrWorkoutInProgress, active.Workout.Name)
	}
	return nil
}

// Sync checks connectivity and drains the queue once.
func (t *Tracker) Sync(ctx context.Context) (syncqueue.Result, error) {
	if !t.monitor.Check(ctx) {
		pending, err := t.store.Pending(ctx)
		if err != nil {
			return syncqueue.Result{}, err
		}
		return syncqueue.Result{Remaining: len(pending)}, nil
	}
	return t.processor.Drain(ctx)
}

// Status is a snapshot of the client state.
type Status struct {
	Online  bool
	Active  *localstore.Draft
	Pending []localstore.QueueEntry
	Dead    []localstore.QueueEntry
}

// Status reports connectivity, the open workout and the sync queue.
func (t *Tracker) Status(ctx context.Context) (*Status, error) {
	active, err := t.store.ActiveDraft(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := t.store.Pending(ctx)
	if err != nil {
		return nil, err
	}
	dead, err := t.store.DeadLetters(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{Online: t.monitor.Check(ctx), Active: active, Pending: pending, Dead: dead}, nil
}

// Retry re-arms a dead-lettered entry.
func (t *Tracker) Retry(ctx context.Context, seq int64) error {
	return t.processor.Retry(ctx, seq)
}

// Drop removes a queue entry without syncing it.
func (t *Tracker) Drop(ctx context.Context, seq int64) error {
	return t.processor.Drop(ctx, seq)
}

// RefreshCatalog replaces the cached exercise catalog with the server's.
func (t *Tracker) RefreshCatalog(ctx context.Context) (int, error) {
	exercises, err := t.remote.Exercises(ctx)
	if err != nil {
		return 0, err
	}
	if err := t.store.Exercises().Clear(ctx); err != nil {
		return 0, err
	}
	for _, ex := range exercises {
		entry := localstore.Exercise{ID: ex.ID, Name: ex.Name, Type: domain.ExerciseType(ex.Type)}
		if err := t.store.Exercises().Save(ctx, entry); err != nil {
			return 0, err
		}
	}
	return len(exercises), nil
}

// Catalog returns the cached exercise catalog.
func (t *Tracker) Catalog(ctx context.Context) ([]localstore.Exercise, error) {
	return t.store.Exercises().GetAll(ctx)
}

// Watch runs connectivity probing, queue draining and interval autosave until ctx is
// cancelled.
func (t *Tracker) Watch(ctx context.Context) {
	signals := t.monitor.Subscribe()
	done := make(chan struct{}, 3)
	run := func(fn func()) {
		go func() {
			fn()
			done <- struct{}{}
		}()
	}
	run(func() { t.processor.Run(ctx, signals) })
	run(func() { t.autosave.Run(ctx) })
	run(func() { t.monitor.Run(ctx) })

	t.monitor.Foreground()
	for i := 0; i < 3; i++ {
		<-done
	}
}

func (t *Tracker) checkCatalog(ctx context.Context, exerciseID string) error {
	if strings.TrimSpace(exerciseID) == "" {
		return errors.New("exercise id is required")
	}
	catalog, err := t.store.Exercises().GetAll(ctx)
	if err != nil {
		return err
	}
	if len(catalog) == 0 {
		return nil
	}
	for _, ex := range catalog {
		if ex.ID == exerciseID {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownExercise, exerciseID)
}
