// Package syncqueue drains queued workout completions to the server, one entry at a time
// and oldest first. Each entry is claimed in the local store before it is sent, so
// drains in separate processes sharing one database never submit it twice.
package syncqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/joshua0624/gym-brain-v2-sub001/internal/client/autosave"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/client/localstore"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/client/remote"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/domain"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/wire"
)

// OperationCompleteWorkout is the queue operation for a finished workout.
const OperationCompleteWorkout = "workout.completed"

// DefaultMaxRetries is the number of failed attempts before an entry is dead-lettered.
const DefaultMaxRetries = 8

// Completion is the payload of a queued finished workout.
// ResolveDraft asks the drain to look up the remote draft slot and retire it too when it
// still holds this workout's snapshot.
type Completion struct {
	LocalID        string                   `json:"localId"`
	Workout        domain.WorkoutSubmission `json:"workout"`
	DeleteDraftIDs []string                 `json:"deleteDraftIds,omitempty"`
	ResolveDraft   bool                     `json:"resolveDraft,omitempty"`
}

// Syncer submits completion batches.
type Syncer interface {
	autosave.SlotReader
	Sync(ctx context.Context, req wire.SyncRequest) (*wire.SyncResponse, error)
}

// Result summarises one drain. Busy reports that another drain held the queue.
type Result struct {
	Synced       int
	Failed       int
	DeadLettered int
	Remaining    int
	Busy         bool
}

// Processor owns the drain of the local sync queue.
type Processor struct {
	store      *localstore.Store
	remote     Syncer
	online     func() bool
	maxRetries int
	lease      time.Duration
	logger     *slog.Logger

	drainMu sync.Mutex
	kick    chan struct{}
}

// Option customises a Processor.
type Option func(*Processor)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMaxRetries sets the retry ceiling.
func WithMaxRetries(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxRetries = n
		}
	}
}

// WithClaimLease sets how long a claim held by a vanished drain blocks the queue.
func WithClaimLease(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.lease = d
		}
	}
}

// NewProcessor wires a Processor.
func NewProcessor(store *localstore.Store, remote Syncer, online func() bool, opts ...Option) *Processor {
	p := &Processor{
		store:      store,
		remote:     remote,
		online:     online,
		maxRetries: DefaultMaxRetries,
		lease:      localstore.DefaultClaimLease,
		logger:     slog.Default(),
		kick:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enqueue appends a completion and requests a drain when online.
func (p *Processor) Enqueue(ctx context.Context, completion Completion) (int64, error) {
	seq, err := p.store.Enqueue(ctx, OperationCompleteWorkout, completion)
	if err != nil {
		return 0, err
	}
	p.logger.Info("workout queued", "seq", seq, "workout", completion.Workout.ID)
	if p.online() {
		p.Kick()
	}
	return seq, nil
}

// Kick requests a drain from Run. Requests made while one is pending coalesce.
func (p *Processor) Kick() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Run drains on every kick or signal until ctx is cancelled.
func (p *Processor) Run(ctx context.Context, signals <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.kick:
		case <-signals:
		}
		if _, err := p.Drain(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("drain failed", "error", err)
		}
	}
}

// Drain submits every pending entry in sequence order. Only one drain runs at a time,
// in this process or any other using the same store. A failed entry stays queued and
// the drain moves on; it stops early when connectivity drops.
func (p *Processor) Drain(ctx context.Context) (Result, error) {
	p.drainMu.Lock()
	defer p.drainMu.Unlock()

	var (
		result Result
		after  int64
	)
	for {
		if ctx.Err() != nil || !p.online() {
			return p.pause(ctx, after, &result)
		}
		entry, err := p.store.ClaimNext(ctx, after, p.lease)
		if err != nil {
			return result, err
		}
		if entry == nil {
			break
		}
		after = entry.Seq
		if err := p.process(ctx, *entry, &result); err != nil {
			if rerr := p.store.Release(context.WithoutCancel(ctx), entry.Seq); rerr != nil {
				p.logger.Error("release claim", "seq", entry.Seq, "error", rerr)
			}
			return result, err
		}
	}

	busy, err := p.store.Claimed(ctx, p.lease)
	if err != nil {
		return result, err
	}
	if busy {
		result.Busy = true
		p.logger.Info("queue held by another drain")
		if _, err := p.pause(ctx, after, &result); err != nil {
			return result, err
		}
	}
	if result.Synced+result.Failed+result.DeadLettered > 0 {
		p.logger.Info("drain finished", "synced", result.Synced, "failed", result.Failed, "dead", result.DeadLettered)
	}
	return result, nil
}

// pause counts what is left after seq after and ends the drain.
func (p *Processor) pause(ctx context.Context, after int64, result *Result) (Result, error) {
	entries, err := p.store.Pending(context.WithoutCancel(ctx))
	if err != nil {
		return *result, fmt.Errorf("load sync queue: %w", err)
	}
	for _, entry := range entries {
		if entry.Seq > after {
			result.Remaining++
		}
	}
	if !result.Busy {
		p.logger.Info("drain paused", "remaining", result.Remaining)
	}
	return *result, ctx.Err()
}

// process handles one claimed entry. Only local store failures and cancellation are
// returned.
func (p *Processor) process(ctx context.Context, entry localstore.QueueEntry, result *Result) error {
	logger := p.logger.With("seq", entry.Seq, "operation", entry.Operation)

	if entry.Operation != OperationCompleteWorkout {
		return p.deadLetter(ctx, logger, entry, fmt.Sprintf("unknown operation %q", entry.Operation), result)
	}
	var completion Completion
	if err := json.Unmarshal(entry.Payload, &completion); err != nil {
		return p.deadLetter(ctx, logger, entry, fmt.Sprintf("malformed payload: %v", err), result)
	}
	workout, err := json.Marshal(completion.Workout)
	if err != nil {
		return p.deadLetter(ctx, logger, entry, fmt.Sprintf("encode workout: %v", err), result)
	}

	drafts := completion.DeleteDraftIDs
	if completion.ResolveDraft {
		id, err := autosave.FindSlot(ctx, p.remote, completion.LocalID)
		if err != nil {
			return p.remoteFailure(ctx, logger, entry, err, result)
		}
		if id != "" && !slices.Contains(drafts, id) {
			drafts = append(drafts, id)
		}
	}

	resp, err := p.remote.Sync(ctx, wire.SyncRequest{
		CompletedWorkouts: []json.RawMessage{workout},
		DeleteDraftIDs:    drafts,
	})
	if err != nil {
		return p.remoteFailure(ctx, logger, entry, err, result)
	}

	if len(resp.SyncedWorkouts) == 1 {
		synced := resp.SyncedWorkouts[0]
		if _, err := p.store.Remove(ctx, entry.Seq); err != nil {
			return fmt.Errorf("remove synced entry %d: %w", entry.Seq, err)
		}
		if err := p.forget(ctx, completion); err != nil {
			return err
		}
		result.Synced++
		logger.Info("workout synced", "server_id", synced.ServerID, "status", synced.Status)
		return nil
	}

	if len(resp.Skipped) == 1 {
		skipped := resp.Skipped[0]
		cause := skipped.Code + ": " + skipped.Reason
		if domain.SkipCode(skipped.Code).Permanent() {
			return p.deadLetter(ctx, logger, entry, cause, result)
		}
		return p.fail(ctx, logger, entry, cause, result)
	}

	return p.fail(ctx, logger, entry, "unexpected sync response", result)
}

// remoteFailure settles an entry whose request failed. A cancelled drain hands the claim
// back without spending an attempt.
func (p *Processor) remoteFailure(ctx context.Context, logger *slog.Logger, entry localstore.QueueEntry, err error, result *Result) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if !remote.IsRetryable(err) {
		return p.deadLetter(ctx, logger, entry, err.Error(), result)
	}
	return p.fail(ctx, logger, entry, err.Error(), result)
}

// forget drops the local copies tied to a synced workout.
func (p *Processor) forget(ctx context.Context, completion Completion) error {
	if completion.LocalID == "" {
		return nil
	}
	if err := p.store.Workouts().Delete(ctx, completion.LocalID); err != nil {
		return fmt.Errorf("drop cached workout %s: %w", completion.LocalID, err)
	}
	if err := p.store.Drafts().Delete(ctx, completion.LocalID); err != nil {
		return fmt.Errorf("drop local draft %s: %w", completion.LocalID, err)
	}
	return nil
}

func (p *Processor) fail(ctx context.Context, logger *slog.Logger, entry localstore.QueueEntry, cause string, result *Result) error {
	dead, err := p.store.RecordFailure(ctx, entry.Seq, cause, p.maxRetries)
	if err != nil {
		return fmt.Errorf("record failure of entry %d: %w", entry.Seq, err)
	}
	if dead {
		result.DeadLettered++
		logger.Warn("retry ceiling reached, entry dead-lettered", "attempts", entry.RetryCount+1, "error", cause)
		return nil
	}
	result.Failed++
	logger.Warn("sync attempt failed", "attempts", entry.RetryCount+1, "error", cause)
	return nil
}

func (p *Processor) deadLetter(ctx context.Context, logger *slog.Logger, entry localstore.QueueEntry, cause string, result *Result) error {
	if err := p.store.DeadLetter(ctx, entry.Seq, cause); err != nil {
		return fmt.Errorf("dead-letter entry %d: %w", entry.Seq, err)
	}
	result.DeadLettered++
	logger.Warn("entry dead-lettered", "error", cause)
	return nil
}

// ErrNotFound is returned by Retry and Drop for an unknown seq.
var ErrNotFound = errors.New("queue entry not found")

// Retry re-arms a dead entry and requests a drain.
func (p *Processor) Retry(ctx context.Context, seq int64) error {
	ok, err := p.store.Rearm(ctx, seq)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d is not dead-lettered", ErrNotFound, seq)
	}
	p.Kick()
	return nil
}

// Drop removes an entry without syncing it.
func (p *Processor) Drop(ctx context.Context, seq int64) error {
	ok, err := p.store.Remove(ctx, seq)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, seq)
	}
	return nil
}
