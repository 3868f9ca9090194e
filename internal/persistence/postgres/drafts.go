package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/joshua0624/gym-brain-v2-sub001/internal/domain"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/events"
)

const draftColumns = `draft_id, owner_id, name, data, created_at, last_synced_at, expires_at`

// Current implements domain.DraftRepository. The expired-row delete and the read share
// one transaction so a caller never observes an expired draft.
func (r *Repository) Current(ctx context.Context, owner string, now time.Time) (*domain.Draft, bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM workout_drafts WHERE owner_id = $1 AND expires_at <= $2`, owner, now)
	if err != nil {
		return nil, false, err
	}
	expired := tag.RowsAffected() > 0

	draft, err := scanDraft(tx.QueryRow(ctx, `SELECT `+draftColumns+` FROM workout_drafts WHERE owner_id = $1`, owner))
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return draft, expired, nil
}

// Upsert implements domain.DraftRepository. The owner uniqueness constraint arbitrates
// concurrent writers; an expired slot takes the incoming id and createdAt.
func (r *Repository) Upsert(ctx context.Context, draft domain.Draft) (*domain.Draft, error) {
	const stmt = `INSERT INTO workout_drafts (` + draftColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (owner_id) DO UPDATE SET
            draft_id = CASE WHEN workout_drafts.expires_at <= EXCLUDED.last_synced_at THEN EXCLUDED.draft_id ELSE workout_drafts.draft_id END,
            created_at = CASE WHEN workout_drafts.expires_at <= EXCLUDED.last_synced_at THEN EXCLUDED.created_at ELSE workout_drafts.created_at END,
            name = EXCLUDED.name,
            data = EXCLUDED.data,
            last_synced_at = EXCLUDED.last_synced_at,
            expires_at = EXCLUDED.expires_at
        RETURNING ` + draftColumns

	return scanDraft(r.pool.QueryRow(ctx, stmt,
		draft.ID,
		draft.Owner,
		draft.Name,
		string(draft.Data),
		draft.CreatedAt,
		draft.LastSyncedAt,
		draft.ExpiresAt,
	))
}

// DeleteOwned implements domain.DraftRepository and records a draft.discarded event.
func (r *Repository) DeleteOwned(ctx context.Context, owner, id string, at time.Time) (int, error) {
	return r.discard(ctx, owner, at, `DELETE FROM workout_drafts WHERE owner_id = $1 AND draft_id = $2 RETURNING draft_id`, owner, id)
}

// DeleteAll implements domain.DraftRepository and records a draft.discarded event per row.
func (r *Repository) DeleteAll(ctx context.Context, owner string, at time.Time) (int, error) {
	return r.discard(ctx, owner, at, `DELETE FROM workout_drafts WHERE owner_id = $1 RETURNING draft_id`, owner)
}

func (r *Repository) discard(ctx context.Context, owner string, at time.Time, stmt string, args ...any) (int, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		if err := r.insertOutbox(ctx, tx, outboxRecord{
			owner:         owner,
			aggregateType: "draft",
			aggregateID:   id,
			eventType:     events.TypeDraftDiscarded,
			payload:       events.DraftDiscarded{DraftID: id, OwnerID: owner, OccurredAt: at},
		}); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// OwnerOf implements domain.DraftRepository.
func (r *Repository) OwnerOf(ctx context.Context, id string) (string, bool, error) {
	var owner string
	err := r.pool.QueryRow(ctx, `SELECT owner_id FROM workout_drafts WHERE draft_id = $1`, id).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return owner, true, nil
}

// DeleteMany implements domain.DraftRepository.
func (r *Repository) DeleteMany(ctx context.Context, owner string, ids []string) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM workout_drafts WHERE owner_id = $1 AND draft_id = ANY($2)`, owner, ids)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// PurgeExpired implements domain.DraftRepository.
func (r *Repository) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM workout_drafts WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanDraft(row pgx.Row) (*domain.Draft, error) {
	var (
		d    domain.Draft
		data []byte
	)
	if err := row.Scan(&d.ID, &d.Owner, &d.Name, &data, &d.CreatedAt, &d.LastSyncedAt, &d.ExpiresAt); err != nil {
		return nil, err
	}
	d.Data = data
	return &d, nil
}
