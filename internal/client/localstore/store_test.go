package localstore_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joshua0624/gym-brain-v2-sub001/internal/client/localstore"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/domain"
)

func openStore(t *testing.T, opts ...localstore.Option) *localstore.Store {
	t.Helper()
	store, err := localstore.Open(filepath.Join(t.TempDir(), "gymsync.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCollectionUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	drafts := store.Drafts()

	draft := localstore.Draft{
		ID:        "local-1",
		Workout:   domain.WorkoutSubmission{ID: "w-1", Name: "Push", StartedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		UpdatedAt: time.Date(2026, 3, 1, 9, 5, 0, 0, time.UTC),
	}
	require.NoError(t, drafts.Save(ctx, draft))
	draft.Workout.Name = "Push Day"
	require.NoError(t, drafts.Save(ctx, draft))

	all, err := drafts.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "Push Day", all[0].Workout.Name)

	got, ok, err := drafts.Get(ctx, "local-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, draft, got)

	_, ok, err = drafts.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCollectionsClearIndependently(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	require.NoError(t, store.Workouts().Save(ctx, localstore.Workout{ID: "w-1"}))
	require.NoError(t, store.Exercises().Save(ctx, localstore.Exercise{ID: "plank", Name: "Plank", Type: domain.ExerciseTypeDuration}))
	_, err := store.Enqueue(ctx, "workout.completed", map[string]string{"id": "w-1"})
	require.NoError(t, err)

	require.NoError(t, store.Workouts().Clear(ctx))

	workouts, err := store.Workouts().GetAll(ctx)
	require.NoError(t, err)
	require.Empty(t, workouts)

	exercises, err := store.Exercises().GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, exercises, 1)
	require.Equal(t, domain.ExerciseTypeDuration, exercises[0].Type)

	pending, err := store.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestActiveDraftPicksLatest(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	none, err := store.ActiveDraft(ctx)
	require.NoError(t, err)
	require.Nil(t, none)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Drafts().Save(ctx, localstore.Draft{ID: "b", UpdatedAt: base}))
	require.NoError(t, store.Drafts().Save(ctx, localstore.Draft{ID: "a", UpdatedAt: base.Add(time.Minute)}))

	active, err := store.ActiveDraft(ctx)
	require.NoError(t, err)
	require.Equal(t, "a", active.ID)
}

func TestQueueSequenceSurvivesRemoval(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	first, err := store.Enqueue(ctx, "workout.completed", map[string]int{"n": 1})
	require.NoError(t, err)
	second, err := store.Enqueue(ctx, "workout.completed", map[string]int{"n": 2})
	require.NoError(t, err)
	require.Greater(t, second, first)

	removed, err := store.Remove(ctx, second)
	require.NoError(t, err)
	require.True(t, removed)

	third, err := store.Enqueue(ctx, "workout.completed", map[string]int{"n": 3})
	require.NoError(t, err)
	require.Greater(t, third, second)

	pending, err := store.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, first, pending[0].Seq)
	require.Equal(t, third, pending[1].Seq)
	require.JSONEq(t, `{"n":3}`, string(pending[1].Payload))
}

func TestQueueRetryCeilingDeadLetters(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	seq, err := store.Enqueue(ctx, "workout.completed", struct{}{})
	require.NoError(t, err)

	dead, err := store.RecordFailure(ctx, seq, "connection refused", 2)
	require.NoError(t, err)
	require.False(t, dead)

	entry, err := store.Entry(ctx, seq)
	require.NoError(t, err)
	require.Equal(t, 1, entry.RetryCount)
	require.Equal(t, "connection refused", entry.LastError)
	require.NotNil(t, entry.LastRetryAt)
	require.Equal(t, localstore.StatusPending, entry.Status)

	dead, err = store.RecordFailure(ctx, seq, "timeout", 2)
	require.NoError(t, err)
	require.True(t, dead)

	pending, err := store.Pending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)

	letters, err := store.DeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	require.Equal(t, "timeout", letters[0].LastError)

	rearmed, err := store.Rearm(ctx, seq)
	require.NoError(t, err)
	require.True(t, rearmed)

	entry, err = store.Entry(ctx, seq)
	require.NoError(t, err)
	require.Equal(t, 0, entry.RetryCount)
	require.Equal(t, localstore.StatusPending, entry.Status)

	rearmed, err = store.Rearm(ctx, seq)
	require.NoError(t, err)
	require.False(t, rearmed)
}

func TestDeadLetterImmediately(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	seq, err := store.Enqueue(ctx, "workout.completed", struct{}{})
	require.NoError(t, err)
	require.NoError(t, store.DeadLetter(ctx, seq, "validation: name is required"))

	entry, err := store.Entry(ctx, seq)
	require.NoError(t, err)
	require.Equal(t, localstore.StatusDead, entry.Status)
	require.Equal(t, 0, entry.RetryCount)

	missing, err := store.Entry(ctx, seq+100)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestUpdateDoesNotRecreateMissingDocument(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	drafts := store.Drafts()

	require.NoError(t, drafts.Save(ctx, localstore.Draft{ID: "local-1"}))
	updated, ok, err := drafts.Update(ctx, "local-1", func(d *localstore.Draft) error {
		d.Workout.Name = "Legs"
		return nil
	})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Legs", updated.Workout.Name)

	taken, ok, err := drafts.Take(ctx, "local-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Legs", taken.Workout.Name)

	_, ok, err = drafts.Update(ctx, "local-1", func(d *localstore.Draft) error {
		d.Workout.Name = "Revived"
		return nil
	})
	require.NoError(t, err)
	require.False(t, ok)

	all, err := drafts.GetAll(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestFinishDraftIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	require.NoError(t, store.Drafts().Save(ctx, localstore.Draft{ID: "local-1", RemoteID: "remote-1"}))

	_, ok, err := store.FinishDraft(ctx, "local-1", func(localstore.Draft) (localstore.Closing, error) {
		return localstore.Closing{}, errors.New("invalid workout")
	})
	require.Error(t, err)
	require.False(t, ok)
	_, ok, err = store.Drafts().Get(ctx, "local-1")
	require.NoError(t, err)
	require.True(t, ok)

	seq, ok, err := store.FinishDraft(ctx, "local-1", func(d localstore.Draft) (localstore.Closing, error) {
		return localstore.Closing{
			Workout:   localstore.Workout{ID: d.ID},
			Operation: "workout.completed",
			Payload:   map[string]string{"draft": d.RemoteID},
		}, nil
	})
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = store.Drafts().Get(ctx, "local-1")
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = store.Workouts().Get(ctx, "local-1")
	require.NoError(t, err)
	require.True(t, ok)
	entry, err := store.Entry(ctx, seq)
	require.NoError(t, err)
	require.JSONEq(t, `{"draft":"remote-1"}`, string(entry.Payload))

	_, ok, err = store.FinishDraft(ctx, "local-1", func(d localstore.Draft) (localstore.Closing, error) {
		t.Fatal("finish called for a closed draft")
		return localstore.Closing{}, nil
	})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestClaimAllowsOneInflightEntry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := openStore(t, localstore.WithClock(func() time.Time { return now }))

	first, err := store.Enqueue(ctx, "workout.completed", map[string]int{"n": 1})
	require.NoError(t, err)
	second, err := store.Enqueue(ctx, "workout.completed", map[string]int{"n": 2})
	require.NoError(t, err)

	claimed, err := store.ClaimNext(ctx, 0, time.Minute)
	require.NoError(t, err)
	require.Equal(t, first, claimed.Seq)
	require.Equal(t, localstore.StatusInflight, claimed.Status)
	require.NotNil(t, claimed.ClaimedAt)

	blocked, err := store.ClaimNext(ctx, 0, time.Minute)
	require.NoError(t, err)
	require.Nil(t, blocked)
	held, err := store.Claimed(ctx, time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	pending, err := store.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	_, err = store.Remove(ctx, first)
	require.NoError(t, err)
	claimed, err = store.ClaimNext(ctx, first, time.Minute)
	require.NoError(t, err)
	require.Equal(t, second, claimed.Seq)

	dead, err := store.RecordFailure(ctx, second, "timeout", 5)
	require.NoError(t, err)
	require.False(t, dead)
	entry, err := store.Entry(ctx, second)
	require.NoError(t, err)
	require.Equal(t, localstore.StatusPending, entry.Status)
	require.Nil(t, entry.ClaimedAt)

	none, err := store.ClaimNext(ctx, second, time.Minute)
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestAbandonedClaimExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := openStore(t, localstore.WithClock(func() time.Time { return now }))

	seq, err := store.Enqueue(ctx, "workout.completed", struct{}{})
	require.NoError(t, err)
	_, err = store.ClaimNext(ctx, 0, time.Minute)
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	blocked, err := store.ClaimNext(ctx, 0, time.Minute)
	require.NoError(t, err)
	require.Nil(t, blocked)

	now = now.Add(time.Minute)
	held, err := store.Claimed(ctx, time.Minute)
	require.NoError(t, err)
	require.False(t, held)
	reclaimed, err := store.ClaimNext(ctx, 0, time.Minute)
	require.NoError(t, err)
	require.Equal(t, seq, reclaimed.Seq)

	require.NoError(t, store.Release(ctx, seq))
	entry, err := store.Entry(ctx, seq)
	require.NoError(t, err)
	require.Equal(t, localstore.StatusPending, entry.Status)
	require.Equal(t, 0, entry.RetryCount)
}
