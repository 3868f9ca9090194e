package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Queue entry states.
const (
	StatusPending  = "pending"
	StatusInflight = "inflight"
	StatusDead     = "dead"
)

// DefaultClaimLease bounds how long a claimed entry stays invisible to other drains
// when its holder never releases it.
const DefaultClaimLease = 2 * time.Minute

// QueueEntry is one pending server operation. Seq is assigned on insert and grows
// strictly, so ordering by it replays operations in the order they were queued.
type QueueEntry struct {
	Seq         int64
	Operation   string
	Payload     json.RawMessage
	CreatedAt   time.Time
	RetryCount  int
	LastError   string
	LastRetryAt *time.Time
	ClaimedAt   *time.Time
	Status      string
}

// Enqueue appends an operation and returns its sequence number.
func (s *Store) Enqueue(ctx context.Context, operation string, payload any) (int64, error) {
	return s.enqueue(ctx, s.db, operation, payload)
}

func (s *Store) enqueue(ctx context.Context, q dbtx, operation string, payload any) (int64, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encode %s payload: %w", operation, err)
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO sync_queue (operation, payload, created_at, status) VALUES (?, ?, ?, ?)`,
		operation, string(body), s.now().UnixMilli(), StatusPending)
	if err != nil {
		return 0, fmt.Errorf("enqueue %s: %w", operation, err)
	}
	return res.LastInsertId()
}

// Pending returns entries still to be sent, claimed ones included, oldest first.
func (s *Store) Pending(ctx context.Context) ([]QueueEntry, error) {
	return s.queryQueue(ctx, StatusPending, StatusInflight)
}

// DeadLetters returns entries that are no longer drained, oldest first.
func (s *Store) DeadLetters(ctx context.Context) ([]QueueEntry, error) {
	return s.queryQueue(ctx, StatusDead)
}

// ClaimNext marks the oldest pending entry after afterSeq as inflight and returns it.
// Only one entry in the whole database may be inflight at a time, so drains running in
// separate processes never send the same entry twice. A claim older than lease is
// considered abandoned and may be taken over. It returns nil when nothing is claimable.
func (s *Store) ClaimNext(ctx context.Context, afterSeq int64, lease time.Duration) (*QueueEntry, error) {
	now := s.now()
	stale := now.Add(-lease).UnixMilli()
	row := s.db.QueryRowContext(ctx,
		`UPDATE sync_queue
         SET status = 'inflight', claimed_at = ?
         WHERE seq = (
             SELECT seq FROM sync_queue
             WHERE seq > ?
               AND (status = 'pending' OR (status = 'inflight' AND claimed_at <= ?))
             ORDER BY seq
             LIMIT 1)
           AND NOT EXISTS (
             SELECT 1 FROM sync_queue WHERE status = 'inflight' AND claimed_at > ?)
         RETURNING `+queueColumns,
		now.UnixMilli(), afterSeq, stale, stale)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim queue entry: %w", err)
	}
	return entry, nil
}

// Claimed reports whether some drain holds a live claim.
func (s *Store) Claimed(ctx context.Context, lease time.Duration) (bool, error) {
	var held bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM sync_queue WHERE status = 'inflight' AND claimed_at > ?)`,
		s.now().Add(-lease).UnixMilli()).Scan(&held)
	return held, err
}

// Release returns a claimed entry to pending without counting an attempt.
func (s *Store) Release(ctx context.Context, seq int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_queue SET status = 'pending', claimed_at = NULL WHERE seq = ? AND status = 'inflight'`, seq)
	return err
}

// Entry returns the entry with the given seq.
func (s *Store) Entry(ctx context.Context, seq int64) (*QueueEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+queueColumns+` FROM sync_queue WHERE seq = ?`, seq)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// RecordFailure counts a failed attempt and releases any claim. Once retry_count
// reaches maxRetries the entry is dead-lettered; the returned flag reports that
// transition.
func (s *Store) RecordFailure(ctx context.Context, seq int64, cause string, maxRetries int) (bool, error) {
	var status string
	err := s.db.QueryRowContext(ctx,
		`UPDATE sync_queue
         SET retry_count = retry_count + 1,
             last_error = ?,
             last_retry_at = ?,
             claimed_at = NULL,
             status = CASE WHEN retry_count + 1 >= ? THEN 'dead' ELSE 'pending' END
         WHERE seq = ?
         RETURNING status`,
		cause, s.now().UnixMilli(), maxRetries, seq).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("queue entry %d not found", seq)
	}
	if err != nil {
		return false, err
	}
	return status == StatusDead, nil
}

// DeadLetter moves an entry out of the drain immediately.
func (s *Store) DeadLetter(ctx context.Context, seq int64, cause string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_queue SET status = 'dead', claimed_at = NULL, last_error = ?, last_retry_at = ? WHERE seq = ?`,
		cause, s.now().UnixMilli(), seq)
	return err
}

// Rearm returns a dead entry to the drain with a fresh retry budget.
func (s *Store) Rearm(ctx context.Context, seq int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_queue SET status = 'pending', retry_count = 0 WHERE seq = ? AND status = 'dead'`, seq)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Remove deletes an entry regardless of status.
func (s *Store) Remove(ctx context.Context, seq int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE seq = ?`, seq)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ClearQueue empties the sync queue.
func (s *Store) ClearQueue(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue`)
	return err
}

const queueColumns = `seq, operation, payload, created_at, retry_count, last_error, last_retry_at, claimed_at, status`

func (s *Store) queryQueue(ctx context.Context, statuses ...string) ([]QueueEntry, error) {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+queueColumns+` FROM sync_queue WHERE status IN (`+marks+`) ORDER BY seq`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]QueueEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *entry)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*QueueEntry, error) {
	var (
		entry     QueueEntry
		payload   string
		createdAt int64
		lastError sql.NullString
		lastRetry sql.NullInt64
		claimedAt sql.NullInt64
	)
	if err := row.Scan(&entry.Seq, &entry.Operation, &payload, &createdAt, &entry.RetryCount, &lastError, &lastRetry, &claimedAt, &entry.Status); err != nil {
		return nil, err
	}
	entry.Payload = json.RawMessage(payload)
	entry.CreatedAt = time.UnixMilli(createdAt).UTC()
	entry.LastError = lastError.String
	if lastRetry.Valid {
		at := time.UnixMilli(lastRetry.Int64).UTC()
		entry.LastRetryAt = &at
	}
	if claimedAt.Valid {
		at := time.UnixMilli(claimedAt.Int64).UTC()
		entry.ClaimedAt = &at
	}
	return &entry, nil
}
