package domain

import (
	"context"
	"encoding/json"
	"time"
)

// DefaultDraftTTL is how long a draft lives after its most recent save.
const DefaultDraftTTL = 24 * time.Hour

// MaxDraftNameLength bounds Draft.Name in characters.
const MaxDraftNameLength = 100

// Draft is the single in-flight workout snapshot an owner may resume on any device.
// Data is opaque to the server. It is stored byte for byte and returned as equivalent
// JSON; whitespace is not preserved over HTTP.
type Draft struct {
	ID           string
	Owner        string
	Name         string
	Data         json.RawMessage
	CreatedAt    time.Time
	LastSyncedAt time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the draft is past its expiry at now.
func (d Draft) Expired(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}

// DraftRepository is the persistence contract of the remote draft registry.
// Implementations enforce one row per owner.
type DraftRepository interface {
	// Current returns the owner's live draft. An expired row is deleted in the same
	// call and reported through expired.
	Current(ctx context.Context, owner string, now time.Time) (draft *Draft, expired bool, err error)
	// Upsert writes into the owner's slot. A live row keeps its id and createdAt; an
	// expired row is replaced by the incoming draft wholesale.
	Upsert(ctx context.Context, draft Draft) (*Draft, error)
	// DeleteOwned removes id when it belongs to owner and returns the affected row count.
	DeleteOwned(ctx context.Context, owner, id string, at time.Time) (int, error)
	// OwnerOf reports the owner of id, or found=false when no such draft exists.
	OwnerOf(ctx context.Context, id string) (owner string, found bool, err error)
	// DeleteAll removes every draft held by owner.
	DeleteAll(ctx context.Context, owner string, at time.Time) (int, error)
	// DeleteMany removes the subset of ids that belong to owner; others are ignored.
	DeleteMany(ctx context.Context, owner string, ids []string) (int, error)
	// PurgeExpired removes every draft whose expiry is at or before now.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}
