package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/joshua0624/gym-brain-v2-sub001/internal/observability"
)

// SaveDraftInput captures the payload of a draft save.
type SaveDraftInput struct {
	Owner string          `validate:"required"`
	Name  string          `validate:"required,min=1,max=100"`
	Data  json.RawMessage `validate:"-"`
}

// GetDraft returns the owner's live draft, or nil. An expired draft is removed by this call.
func (s *Service) GetDraft(ctx context.Context, owner string) (*Draft, error) {
	draft, expired, err := s.drafts.Current(ctx, owner, s.now())
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	if expired {
		observability.RecordDraftsExpired("read", 1)
	}
	return draft, nil
}

// SaveDraft writes the owner's draft slot and pushes its expiry to now + TTL.
// Concurrent writers race under last-write-wins.
func (s *Service) SaveDraft(ctx context.Context, input SaveDraftInput) (*Draft, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validate.Struct(input); err != nil {
		verr := translateValidation(err).(*ValidationError)
		verr.Field = strings.ToLower(verr.Field)
		return nil, verr
	}
	if err := checkStructured(input.Data); err != nil {
		return nil, err
	}

	now := s.now()
	saved, err := s.drafts.Upsert(ctx, Draft{
		ID:           uuid.NewString(),
		Owner:        input.Owner,
		Name:         input.Name,
		Data:         input.Data,
		CreatedAt:    now,
		LastSyncedAt: now,
		ExpiresAt:    now.Add(s.draftTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	observability.RecordDraftSaved()
	return saved, nil
}

// DeleteDraft removes one draft by id, or every draft of the owner when id is empty.
// A direct delete distinguishes ErrDraftNotFound from ErrForbidden.
func (s *Service) DeleteDraft(ctx context.Context, owner, id string) (int, error) {
	now := s.now()
	if strings.TrimSpace(id) == "" {
		deleted, err := s.drafts.DeleteAll(ctx, owner, now)
		if err != nil {
			return 0, fmt.Errorf("delete drafts: %w", err)
		}
		observability.RecordDraftsDeleted("discard", deleted)
		return deleted, nil
	}

	deleted, err := s.drafts.DeleteOwned(ctx, owner, id, now)
	if err != nil {
		return 0, fmt.Errorf("delete draft: %w", err)
	}
	if deleted > 0 {
		observability.RecordDraftsDeleted("discard", deleted)
		return deleted, nil
	}

	holder, found, err := s.drafts.OwnerOf(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("lookup draft: %w", err)
	}
	if found && holder != owner {
		return 0, ErrForbidden
	}
	return 0, ErrDraftNotFound
}

// PurgeExpiredDrafts is the maintenance sweep; request paths never depend on it.
func (s *Service) PurgeExpiredDrafts(ctx context.Context) (int, error) {
	purged, err := s.drafts.PurgeExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("purge drafts: %w", err)
	}
	observability.RecordDraftsExpired("purge", purged)
	return purged, nil
}

// checkStructured accepts a JSON object or array and nothing else.
func checkStructured(data json.RawMessage) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return &ValidationError{Field: "data", Reason: "is required"}
	}
	if !json.Valid(trimmed) {
		return &ValidationError{Field: "data", Reason: "must be valid JSON"}
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return &ValidationError{Field: "data", Reason: "must be an object or array"}
	}
	return nil
}
