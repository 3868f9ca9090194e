package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joshua0624/gym-brain-v2-sub001/internal/observability"
)

// OutcomeStatus is the per-workout result of a sync batch.
type OutcomeStatus string

const (
	OutcomeApplied   OutcomeStatus = "applied"
	OutcomeDuplicate OutcomeStatus = "duplicate"
	OutcomeSkipped   OutcomeStatus = "skipped"
)

// SkipCode explains why a workout was skipped.
type SkipCode string

const (
	SkipValidation  SkipCode = "validation"
	SkipForbidden   SkipCode = "forbidden"
	SkipConflict    SkipCode = "conflict"
	SkipWriteFailed SkipCode = "write_failed"
)

// Permanent reports whether resubmitting the same payload can never succeed.
func (c SkipCode) Permanent() bool {
	return c == SkipValidation || c == SkipForbidden || c == SkipConflict
}

// SyncItem is one submission of a batch. Err is set by the transport when the item
// could not be decoded; such items are skipped without touching storage.
type SyncItem struct {
	Submission WorkoutSubmission
	Err        error
}

// SyncInput is a completion batch for a single owner.
type SyncInput struct {
	Owner          string
	Items          []SyncItem
	DeleteDraftIDs []string
}

// WorkoutOutcome records what happened to one submitted workout.
type WorkoutOutcome struct {
	Index       int
	ClientID    string
	ServerID    string
	Name        string
	Status      OutcomeStatus
	Code        SkipCode
	Reason      string
	TotalVolume float64
}

// SyncReport aggregates the per-item outcomes of a batch.
type SyncReport struct {
	Outcomes      []WorkoutOutcome
	DeletedDrafts int
}

// Synced returns the applied and duplicate outcomes in submission order.
func (r SyncReport) Synced() []WorkoutOutcome {
	out := make([]WorkoutOutcome, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if o.Status != OutcomeSkipped {
			out = append(out, o)
		}
	}
	return out
}

// Skipped returns the outcomes that were not persisted.
func (r SyncReport) Skipped() []WorkoutOutcome {
	out := make([]WorkoutOutcome, 0)
	for _, o := range r.Outcomes {
		if o.Status == OutcomeSkipped {
			out = append(out, o)
		}
	}
	return out
}

// Sync materializes each submission in its own transaction. A failing item is logged
// and skipped; the rest of the batch continues.
//
// Draft ids are retired inside the transaction of the first workout that commits, so the
// draft disappears exactly when the workout appears. When the batch carries workouts but
// none commit, drafts stay. A batch without workouts deletes the drafts on their own.
func (s *Service) Sync(ctx context.Context, input SyncInput) (*SyncReport, error) {
	if strings.TrimSpace(input.Owner) == "" {
		return nil, &ValidationError{Field: "owner", Reason: "is required"}
	}

	report := &SyncReport{Outcomes: make([]WorkoutOutcome, 0, len(input.Items))}
	pendingDrafts := uniqueIDs(input.DeleteDraftIDs)

	for i, item := range input.Items {
		outcome := s.completeOne(ctx, input.Owner, i, item, pendingDrafts)
		if outcome.result != nil {
			report.DeletedDrafts += outcome.result.DraftsDeleted
			pendingDrafts = nil
		}
		report.Outcomes = append(report.Outcomes, outcome.WorkoutOutcome)
		observability.RecordWorkoutOutcome(string(outcome.Status))
	}

	if len(input.Items) == 0 && len(pendingDrafts) > 0 {
		deleted, err := s.drafts.DeleteMany(ctx, input.Owner, pendingDrafts)
		if err != nil {
			s.logger.Printf("draft cleanup failed (owner=%s, ids=%d): %v", input.Owner, len(pendingDrafts), err)
		} else {
			report.DeletedDrafts += deleted
		}
	}
	observability.RecordDraftsDeleted("completion", report.DeletedDrafts)

	return report, nil
}

type itemOutcome struct {
	WorkoutOutcome
	result *CompletionResult
}

func (s *Service) completeOne(ctx context.Context, owner string, index int, item SyncItem, drafts []string) itemOutcome {
	sub := item.Submission
	outcome := itemOutcome{WorkoutOutcome: WorkoutOutcome{
		Index:    index,
		ClientID: strings.TrimSpace(sub.ID),
		Name:     strings.TrimSpace(sub.Name),
	}}

	err := item.Err
	if err == nil {
		err = sub.Validate()
	}
	if err != nil {
		return s.skip(outcome, err)
	}

	start := time.Now()
	workout := sub.Materialize(owner, s.now())
	result, err := s.workouts.Complete(ctx, CompletionCommand{Workout: workout, DeleteDraftIDs: drafts})
	observability.ObserveCompletion(time.Since(start))
	if err != nil {
		return s.skip(outcome, err)
	}

	outcome.result = result
	outcome.ServerID = result.WorkoutID
	outcome.TotalVolume = result.TotalVolume
	outcome.Status = OutcomeApplied
	if result.Duplicate {
		outcome.Status = OutcomeDuplicate
	} else {
		observability.RecordWorkoutPersisted(workout.UpdatedAt)
	}
	return outcome
}

func (s *Service) skip(outcome itemOutcome, err error) itemOutcome {
	outcome.Status = OutcomeSkipped
	outcome.Code = classify(err)
	outcome.Reason = err.Error()
	s.logger.Printf("workout skipped (index=%d, client_id=%q, code=%s): %v", outcome.Index, outcome.ClientID, outcome.Code, err)
	return outcome
}

func classify(err error) SkipCode {
	switch {
	case IsValidation(err):
		return SkipValidation
	case errors.Is(err, ErrForbidden):
		return SkipForbidden
	case errors.Is(err, ErrIdentityConflict):
		return SkipConflict
	default:
		return SkipWriteFailed
	}
}

func uniqueIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// DecodeError marks a batch item whose payload could not be parsed.
func DecodeError(err error) error {
	return &ValidationError{Field: "workout", Reason: fmt.Sprintf("malformed payload: %v", err)}
}
