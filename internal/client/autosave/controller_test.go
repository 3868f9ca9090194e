package autosave_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joshua0624/gym-brain-v2-sub001/internal/client/autosave"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/client/clienttest"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/client/localstore"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/client/remote"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/domain"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/wire"
)

// closingSlot closes the local draft while the remote save is in flight.
type closingSlot struct {
	autosave.DraftSlot
	store   *localstore.Store
	deletes int
}

func (s *closingSlot) SaveDraft(ctx context.Context, name string, data json.RawMessage) (*wire.Draft, error) {
	draft, err := s.DraftSlot.SaveDraft(ctx, name, data)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.store.Drafts().Take(ctx, "local-1"); err != nil {
		return nil, err
	}
	return draft, nil
}

func (s *closingSlot) DeleteDraft(ctx context.Context, id string) (int, error) {
	s.deletes++
	return s.DraftSlot.DeleteDraft(ctx, id)
}

type fixture struct {
	srv    *clienttest.Server
	store  *localstore.Store
	online bool
	ctrl   *autosave.Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := clienttest.NewServer(t)
	store, err := localstore.Open(filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &fixture{srv: srv, store: store}
	client := remote.New(srv.URL, clienttest.Token(t, "owner-a"), time.Second)
	f.ctrl = autosave.NewController(store, client, func() bool { return f.online }, 10*time.Millisecond)
	return f
}

func sampleDraft() localstore.Draft {
	return localstore.Draft{
		ID: "local-1",
		Workout: domain.WorkoutSubmission{
			ID:        "w-1",
			Name:      "Push",
			StartedAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
			Exercises: []domain.ExerciseSubmission{{ExerciseID: "barbell-bench-press"}},
		},
	}
}

func TestSaveOfflineWritesOnlyLocally(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.ctrl.Create(ctx, sampleDraft())
	require.NoError(t, err)
	draft := sampleDraft()
	draft.Workout.Name = "Push"
	saved, err := f.ctrl.Save(ctx, draft)
	require.NoError(t, err)
	require.Empty(t, saved.RemoteID)
	require.False(t, saved.RemoteAttempted)
	require.Zero(t, f.srv.Requests())

	local, err := f.store.ActiveDraft(ctx)
	require.NoError(t, err)
	require.Equal(t, "Push", local.Workout.Name)
	require.Nil(t, local.RemoteSyncedAt)
}

func TestSaveOnlineWritesFullSnapshotRemotely(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.online = true

	saved, err := f.ctrl.Create(ctx, sampleDraft())
	require.NoError(t, err)
	require.NotEmpty(t, saved.RemoteID)
	require.NotNil(t, saved.RemoteSyncedAt)
	require.True(t, saved.RemoteAttempted)

	draft, err := f.srv.Service.GetDraft(ctx, "owner-a")
	require.NoError(t, err)
	require.Equal(t, saved.RemoteID, draft.ID)

	snap, err := autosave.DecodeSnapshot(draft.Data)
	require.NoError(t, err)
	require.Equal(t, "local-1", snap.LocalID)
	require.Equal(t, "w-1", snap.Workout.ID)
	require.Len(t, snap.Workout.Exercises, 1)

	local, _, err := f.store.Drafts().Get(ctx, "local-1")
	require.NoError(t, err)
	require.Equal(t, saved.RemoteID, local.RemoteID)
}

func TestRemoteFailureIsDeferred(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.online = true
	f.srv.SetDown(true)

	saved, err := f.ctrl.Create(ctx, sampleDraft())
	require.NoError(t, err)
	require.Empty(t, saved.RemoteID)

	local, ok, err := f.store.Drafts().Get(ctx, "local-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Push", local.Workout.Name)
}

func TestLongNamesAreTrimmedForRemote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.online = true

	draft := sampleDraft()
	draft.Workout.Name = strings.Repeat("x", 150)
	saved, err := f.ctrl.Create(ctx, draft)
	require.NoError(t, err)
	require.NotEmpty(t, saved.RemoteID)

	remoteDraft, err := f.srv.Service.GetDraft(ctx, "owner-a")
	require.NoError(t, err)
	require.Len(t, remoteDraft.Name, 100)
}

func TestRunSnapshotsActiveDraft(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t)
	f.online = true

	require.NoError(t, f.store.Drafts().Save(ctx, sampleDraft()))
	go f.ctrl.Run(ctx)

	require.Eventually(t, func() bool {
		draft, err := f.srv.Service.GetDraft(context.Background(), "owner-a")
		return err == nil && draft != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSaveDoesNotReviveClosedDraft(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.online = true

	_, err := f.ctrl.Create(ctx, sampleDraft())
	require.NoError(t, err)
	stale, err := f.store.ActiveDraft(ctx)
	require.NoError(t, err)

	require.NoError(t, f.ctrl.Exclusive(func() error {
		_, _, err := f.store.Drafts().Take(ctx, "local-1")
		return err
	}))
	_, err = f.srv.Service.DeleteDraft(ctx, "owner-a", "")
	require.NoError(t, err)
	requests := f.srv.Requests()

	_, err = f.ctrl.Save(ctx, *stale)
	require.ErrorIs(t, err, autosave.ErrDraftClosed)

	active, err := f.store.ActiveDraft(ctx)
	require.NoError(t, err)
	require.Nil(t, active)
	remoteDraft, err := f.srv.Service.GetDraft(ctx, "owner-a")
	require.NoError(t, err)
	require.Nil(t, remoteDraft)
	require.Equal(t, requests, f.srv.Requests())
}

func TestDraftClosedDuringRemoteSaveIsRetired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.online = true

	slot := &closingSlot{
		DraftSlot: remote.New(f.srv.URL, clienttest.Token(t, "owner-a"), time.Second),
		store:     f.store,
	}
	ctrl := autosave.NewController(f.store, slot, func() bool { return true }, time.Minute)

	require.NoError(t, f.store.Drafts().Save(ctx, sampleDraft()))
	_, err := ctrl.Apply(ctx, "local-1", func(d *localstore.Draft) error {
		d.Workout.Name = "Pull"
		return nil
	})
	require.ErrorIs(t, err, autosave.ErrDraftClosed)
	require.Equal(t, 1, slot.deletes)

	remoteDraft, err := f.srv.Service.GetDraft(ctx, "owner-a")
	require.NoError(t, err)
	require.Nil(t, remoteDraft)
	_, ok, err := f.store.Drafts().Get(ctx, "local-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFindSlotMatchesLocalID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.online = true

	saved, err := f.ctrl.Create(ctx, sampleDraft())
	require.NoError(t, err)
	client := remote.New(f.srv.URL, clienttest.Token(t, "owner-a"), time.Second)

	id, err := autosave.FindSlot(ctx, client, "local-1")
	require.NoError(t, err)
	require.Equal(t, saved.RemoteID, id)

	id, err = autosave.FindSlot(ctx, client, "local-2")
	require.NoError(t, err)
	require.Empty(t, id)
}

func TestRunSkipsDraftAlreadyPushed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t)
	f.online = true

	_, err := f.ctrl.Create(ctx, sampleDraft())
	require.NoError(t, err)
	requests := f.srv.Requests()

	go f.ctrl.Run(ctx)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, requests, f.srv.Requests())
}
