package client_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joshua0624/gym-brain-v2-sub001/internal/client"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/client/autosave"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/client/clienttest"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/client/localstore"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/client/remote"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/client/syncqueue"
)

func ptr[T any](v T) *T { return &v }

type fixture struct {
	srv     *clienttest.Server
	store   *localstore.Store
	tracker *client.Tracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := clienttest.NewServer(t)
	store, err := localstore.Open(filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	api := remote.New(srv.URL, clienttest.Token(t, "owner-a"), time.Second)
	tracker := client.New(store, api, client.Config{
		AutosaveInterval: 10 * time.Millisecond,
		ProbeInterval:    10 * time.Millisecond,
	})
	return &fixture{srv: srv, store: store, tracker: tracker}
}

func TestOnlineWorkoutLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.True(t, f.tracker.Connect(ctx))

	n, err := f.tracker.RefreshCatalog(ctx)
	require.NoError(t, err)
	require.Equal(t, 7, n)

	draft, err := f.tracker.Start(ctx, "Leg Day")
	require.NoError(t, err)
	require.NotEmpty(t, draft.RemoteID)

	_, err = f.tracker.Start(ctx, "Another")
	require.ErrorIs(t, err, client.ErrWorkoutInProgress)

	_, err = f.tracker.AddExercise(ctx, "not-a-lift")
	require.ErrorIs(t, err, client.ErrUnknownExercise)

	_, err = f.tracker.AddExercise(ctx, "barbell-back-squat")
	require.NoError(t, err)
	_, err = f.tracker.LogSet(ctx, 0, client.SetInput{Weight: ptr(60.0), Reps: ptr(10), Warmup: true})
	require.NoError(t, err)
	draft, err = f.tracker.LogSet(ctx, 0, client.SetInput{Weight: ptr(100.0), Reps: ptr(5)})
	require.NoError(t, err)
	require.Len(t, draft.Workout.Exercises[0].Sets, 2)

	_, err = f.tracker.LogSet(ctx, 3, client.SetInput{Reps: ptr(1)})
	require.Error(t, err)

	remoteDraft, err := f.srv.Service.GetDraft(ctx, "owner-a")
	require.NoError(t, err)
	require.Equal(t, draft.RemoteID, remoteDraft.ID)

	_, err = f.tracker.Finish(ctx)
	require.NoError(t, err)

	result, err := f.tracker.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Synced)

	remoteDraft, err = f.srv.Service.GetDraft(ctx, "owner-a")
	require.NoError(t, err)
	require.Nil(t, remoteDraft)

	stored, err := f.srv.Service.GetWorkout(ctx, "owner-a", draft.Workout.ID)
	require.NoError(t, err)
	require.Equal(t, 500.0, stored.TotalVolume)

	status, err := f.tracker.Status(ctx)
	require.NoError(t, err)
	require.True(t, status.Online)
	require.Nil(t, status.Active)
	require.Empty(t, status.Pending)
}

func TestOfflineFinishQueuesUntilReconnect(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.srv.SetDown(true)
	require.False(t, f.tracker.Connect(ctx))

	draft, err := f.tracker.Start(ctx, "Garage Session")
	require.NoError(t, err)
	require.Empty(t, draft.RemoteID)
	_, err = f.tracker.AddExercise(ctx, "pull-up")
	require.NoError(t, err)
	_, err = f.tracker.LogSet(ctx, 0, client.SetInput{Reps: ptr(8)})
	require.NoError(t, err)

	seq, err := f.tracker.Finish(ctx)
	require.NoError(t, err)

	cached, ok, err := f.store.Workouts().Get(ctx, draft.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, cached.Workout.CompletedAt)

	result, err := f.tracker.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Remaining)

	f.srv.SetDown(false)
	result, err = f.tracker.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Synced)

	_, ok, err = f.store.Workouts().Get(ctx, draft.ID)
	require.NoError(t, err)
	require.False(t, ok)

	require.ErrorIs(t, f.tracker.Drop(ctx, seq), syncqueue.ErrNotFound)
}

func TestResumeRestoresRemoteDraft(t *testing.T) {
	ctx := context.Background()
	device := newFixture(t)
	require.True(t, device.tracker.Connect(ctx))

	draft, err := device.tracker.Start(ctx, "Upper")
	require.NoError(t, err)
	_, err = device.tracker.AddExercise(ctx, "overhead-press")
	require.NoError(t, err)
	_, err = device.tracker.LogSet(ctx, 0, client.SetInput{Weight: ptr(40.0), Reps: ptr(8)})
	require.NoError(t, err)

	other, err := localstore.Open(filepath.Join(t.TempDir(), "other.db"))
	require.NoError(t, err)
	t.Cleanup(func() { other.Close() })
	api := remote.New(device.srv.URL, clienttest.Token(t, "owner-a"), time.Second)
	second := client.New(other, api, client.Config{})

	resumed, err := second.Resume(ctx)
	require.NoError(t, err)
	require.Equal(t, draft.ID, resumed.ID)
	require.Equal(t, draft.RemoteID, resumed.RemoteID)
	require.Len(t, resumed.Workout.Exercises, 1)
	require.Len(t, resumed.Workout.Exercises[0].Sets, 1)

	_, err = second.Resume(ctx)
	require.ErrorIs(t, err, client.ErrWorkoutInProgress)
}

func TestDiscardClearsBothCopies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.True(t, f.tracker.Connect(ctx))

	_, err := f.tracker.Start(ctx, "Cardio")
	require.NoError(t, err)
	require.NoError(t, f.tracker.Discard(ctx))

	_, err = f.tracker.Active(ctx)
	require.ErrorIs(t, err, client.ErrNoActiveWorkout)

	remoteDraft, err := f.srv.Service.GetDraft(ctx, "owner-a")
	require.NoError(t, err)
	require.Nil(t, remoteDraft)

	require.ErrorIs(t, f.tracker.Discard(ctx), client.ErrNoActiveWorkout)
}

func TestWatchSyncsAfterReconnect(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.srv.SetDown(true)

	_, err := f.tracker.Start(ctx, "Rows")
	require.NoError(t, err)
	_, err = f.tracker.AddExercise(ctx, "rowing-erg")
	require.NoError(t, err)
	_, err = f.tracker.LogSet(ctx, 0, client.SetInput{Distance: ptr(2000.0)})
	require.NoError(t, err)
	_, err = f.tracker.Finish(ctx)
	require.NoError(t, err)

	watchCtx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})
	go func() {
		f.tracker.Watch(watchCtx)
		close(stopped)
	}()

	f.srv.SetDown(false)
	require.Eventually(t, func() bool {
		pending, err := f.store.Pending(context.Background())
		return err == nil && len(pending) == 0
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	<-stopped
}

func TestStaleAutosaveAfterFinishDoesNotReviveDraft(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.True(t, f.tracker.Connect(ctx))

	_, err := f.tracker.Start(ctx, "Legs")
	require.NoError(t, err)
	_, err = f.tracker.AddExercise(ctx, "barbell-back-squat")
	require.NoError(t, err)
	_, err = f.tracker.LogSet(ctx, 0, client.SetInput{Weight: ptr(100.0), Reps: ptr(5)})
	require.NoError(t, err)

	stale, err := f.store.ActiveDraft(ctx)
	require.NoError(t, err)
	api := remote.New(f.srv.URL, clienttest.Token(t, "owner-a"), time.Second)
	ctrl := autosave.NewController(f.store, api, func() bool { return true }, time.Minute)

	_, err = f.tracker.Finish(ctx)
	require.NoError(t, err)
	result, err := f.tracker.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Synced)
	requests := f.srv.Requests()

	_, err = ctrl.Save(ctx, *stale)
	require.ErrorIs(t, err, autosave.ErrDraftClosed)

	_, err = f.tracker.Active(ctx)
	require.ErrorIs(t, err, client.ErrNoActiveWorkout)
	remoteDraft, err := f.srv.Service.GetDraft(ctx, "owner-a")
	require.NoError(t, err)
	require.Nil(t, remoteDraft)
	require.Equal(t, requests, f.srv.Requests())
}

func TestFinishRetiresDraftWhoseSaveWasNeverAcknowledged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.True(t, f.tracker.Connect(ctx))

	draft, err := f.tracker.Start(ctx, "Legs")
	require.NoError(t, err)
	_, err = f.tracker.AddExercise(ctx, "barbell-back-squat")
	require.NoError(t, err)
	_, err = f.tracker.LogSet(ctx, 0, client.SetInput{Weight: ptr(100.0), Reps: ptr(5)})
	require.NoError(t, err)

	_, ok, err := f.store.Drafts().Update(ctx, draft.ID, func(d *localstore.Draft) error {
		d.RemoteID = ""
		return nil
	})
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.tracker.Finish(ctx)
	require.NoError(t, err)
	result, err := f.tracker.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Synced)

	remoteDraft, err := f.srv.Service.GetDraft(ctx, "owner-a")
	require.NoError(t, err)
	require.Nil(t, remoteDraft)
}
