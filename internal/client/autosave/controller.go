// Package autosave persists full snapshots of the in-progress workout: always to the
// device, and to the server's draft slot when online.
package autosave

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joshua0624/gym-brain-v2-sub001/internal/client/localstore"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/domain"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/wire"
)

// SlotReader reads the remote draft slot.
type SlotReader interface {
	GetDraft(ctx context.Context) (*wire.Draft, error)
}

// DraftSlot is the remote draft slot.
type DraftSlot interface {
	SlotReader
	SaveDraft(ctx context.Context, name string, data json.RawMessage) (*wire.Draft, error)
	DeleteDraft(ctx context.Context, id string) (int, error)
}

// ErrDraftClosed is returned when the draft being saved was finished or discarded.
var ErrDraftClosed = errors.New("draft is closed")

// Snapshot is the payload stored in the remote draft's data field.
type Snapshot struct {
	LocalID string                   `json:"localId"`
	Workout domain.WorkoutSubmission `json:"workout"`
}

// DecodeSnapshot reads a remote draft payload.
func DecodeSnapshot(data json.RawMessage) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode draft snapshot: %w", err)
	}
	return snap, nil
}

// FindSlot returns the id of the remote draft holding localID's snapshot, or "" when
// the slot is empty or holds another draft.
func FindSlot(ctx context.Context, slot SlotReader, localID string) (string, error) {
	draft, err := slot.GetDraft(ctx)
	if err != nil {
		return "", err
	}
	if draft == nil {
		return "", nil
	}
	snap, err := DecodeSnapshot(draft.Data)
	if err != nil || snap.LocalID != localID {
		return "", nil
	}
	return draft.ID, nil
}

// Controller writes draft snapshots. Its writes, and any work run through Exclusive,
// are serialized.
type Controller struct {
	mu       sync.Mutex
	store    *localstore.Store
	remote   DraftSlot
	online   func() bool
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// Option customises a Controller.
type Option func(*Controller)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// NewController wires a Controller. interval drives Run.
func NewController(store *localstore.Store, remote DraftSlot, online func() bool, interval time.Duration, opts ...Option) *Controller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	c := &Controller{
		store:    store,
		remote:   remote,
		online:   online,
		interval: interval,
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create stores a new draft and pushes it to the server when online.
func (c *Controller) Create(ctx context.Context, draft localstore.Draft) (localstore.Draft, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	online := c.online()
	draft.UpdatedAt = c.now()
	draft.RemoteAttempted = draft.RemoteAttempted || online
	if err := c.store.Drafts().Save(ctx, draft); err != nil {
		return draft, fmt.Errorf("save local draft: %w", err)
	}
	if !online {
		return draft, nil
	}
	return c.push(ctx, draft)
}

// Save replaces the workout of an open draft with draft's. See Apply.
func (c *Controller) Save(ctx context.Context, draft localstore.Draft) (localstore.Draft, error) {
	return c.Apply(ctx, draft.ID, func(d *localstore.Draft) error {
		d.Workout = draft.Workout
		return nil
	})
}

// Apply mutates the stored draft id and snapshots the result. The local write must
// succeed and fails with ErrDraftClosed once the draft was finished or discarded. The
// remote write follows only a successful local one, when online; its failure is
// logged, never returned.
func (c *Controller) Apply(ctx context.Context, id string, mutate func(*localstore.Draft) error) (localstore.Draft, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	online := c.online()
	draft, ok, err := c.store.Drafts().Update(ctx, id, func(d *localstore.Draft) error {
		if err := mutate(d); err != nil {
			return err
		}
		d.UpdatedAt = c.now()
		d.RemoteAttempted = d.RemoteAttempted || online
		return nil
	})
	if err != nil {
		return draft, fmt.Errorf("save local draft: %w", err)
	}
	if !ok {
		return draft, ErrDraftClosed
	}
	if !online {
		c.logger.Debug("offline, remote draft save deferred", "draft", draft.ID)
		return draft, nil
	}
	return c.push(ctx, draft)
}

// Exclusive runs fn with no save in progress.
func (c *Controller) Exclusive(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn()
}

// push writes draft to the remote slot and records the slot id locally. When the draft
// was closed while the request was in flight the remote copy is removed again.
func (c *Controller) push(ctx context.Context, draft localstore.Draft) (localstore.Draft, error) {
	data, err := json.Marshal(Snapshot{LocalID: draft.ID, Workout: draft.Workout})
	if err != nil {
		return draft, fmt.Errorf("encode draft snapshot: %w", err)
	}
	remote, err := c.remote.SaveDraft(ctx, draftName(draft.Workout.Name), data)
	if err != nil {
		c.logger.Warn("remote draft save failed", "draft", draft.ID, "error", err)
		return draft, nil
	}

	synced := c.now()
	recorded, ok, err := c.store.Drafts().Update(ctx, draft.ID, func(d *localstore.Draft) error {
		d.RemoteID = remote.ID
		d.RemoteSyncedAt = &synced
		return nil
	})
	if err != nil {
		return draft, fmt.Errorf("record remote draft: %w", err)
	}
	if !ok {
		c.retire(ctx, draft.ID)
		return draft, ErrDraftClosed
	}
	return recorded, nil
}

func (c *Controller) retire(ctx context.Context, localID string) {
	id, err := FindSlot(ctx, c.remote, localID)
	if err == nil && id != "" {
		_, err = c.remote.DeleteDraft(ctx, id)
	}
	if err != nil {
		c.logger.Warn("remove remote copy of closed draft", "draft", localID, "error", err)
	}
}

// Run pushes the active draft to the server on every tick until ctx is cancelled.
// Drafts already pushed since their last change are skipped.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Controller) tick(ctx context.Context) {
	if !c.online() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	active, err := c.store.ActiveDraft(ctx)
	if err != nil {
		c.logger.Error("load active draft", "error", err)
		return
	}
	if active == nil || (active.RemoteSyncedAt != nil && !active.UpdatedAt.After(*active.RemoteSyncedAt)) {
		return
	}
	draft, ok, err := c.store.Drafts().Update(ctx, active.ID, func(d *localstore.Draft) error {
		d.RemoteAttempted = true
		return nil
	})
	if err != nil || !ok {
		if err != nil {
			c.logger.Error("interval autosave failed", "draft", active.ID, "error", err)
		}
		return
	}
	if _, err := c.push(ctx, draft); err != nil && !errors.Is(err, ErrDraftClosed) {
		c.logger.Error("interval autosave failed", "draft", draft.ID, "error", err)
	}
}

// draftName fits a workout name into the remote name bounds.
func draftName(name string) string {
	const maxRunes = 100
	runes := []rune(name)
	switch {
	case len(runes) == 0:
		return "Workout"
	case len(runes) > maxRunes:
		return string(runes[:maxRunes])
	default:
		return name
	}
}
