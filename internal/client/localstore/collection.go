package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Entity is a document stored in a Collection under its key.
type Entity interface {
	Key() string
}

// dbtx is satisfied by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Collection is a JSON document table keyed by Entity.Key. Saves are idempotent upserts.
type Collection[T Entity] struct {
	store *Store
	table string
}

func newCollection[T Entity](s *Store, table string) *Collection[T] {
	return &Collection[T]{store: s, table: table}
}

// Save upserts v.
func (c *Collection[T]) Save(ctx context.Context, v T) error {
	return c.save(ctx, c.store.db, v)
}

func (c *Collection[T]) save(ctx context.Context, q dbtx, v T) error {
	id := v.Key()
	if id == "" {
		return fmt.Errorf("%s: empty id", c.table)
	}
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s: encode %s: %w", c.table, id, err)
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO `+c.table+` (id, body, updated_at) VALUES (?, ?, ?)
         ON CONFLICT (id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		id, string(body), c.store.now().UnixMilli())
	return err
}

// Get returns the document stored under id.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, bool, error) {
	return c.get(ctx, c.store.db, id)
}

func (c *Collection[T]) get(ctx context.Context, q dbtx, id string) (T, bool, error) {
	var (
		zero T
		body string
	)
	err := q.QueryRowContext(ctx, `SELECT body FROM `+c.table+` WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	return c.decode(id, body)
}

// Update applies fn to the stored document in one transaction. It reports false, and
// writes nothing, when id is absent.
func (c *Collection[T]) Update(ctx context.Context, id string, fn func(*T) error) (T, bool, error) {
	var zero T
	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return zero, false, err
	}
	defer tx.Rollback()

	v, ok, err := c.get(ctx, tx, id)
	if err != nil || !ok {
		return zero, false, err
	}
	if err := fn(&v); err != nil {
		return zero, false, err
	}
	if v.Key() != id {
		return zero, false, fmt.Errorf("%s: update changed key %s to %s", c.table, id, v.Key())
	}
	if err := c.save(ctx, tx, v); err != nil {
		return zero, false, err
	}
	if err := tx.Commit(); err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// Take removes id and returns the document it held.
func (c *Collection[T]) Take(ctx context.Context, id string) (T, bool, error) {
	return c.take(ctx, c.store.db, id)
}

func (c *Collection[T]) take(ctx context.Context, q dbtx, id string) (T, bool, error) {
	var (
		zero T
		body string
	)
	err := q.QueryRowContext(ctx, `DELETE FROM `+c.table+` WHERE id = ? RETURNING body`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	return c.decode(id, body)
}

// GetAll returns every document ordered by id.
func (c *Collection[T]) GetAll(ctx context.Context) ([]T, error) {
	rows, err := c.store.db.QueryContext(ctx, `SELECT id, body FROM `+c.table+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, err
		}
		v, _, err := c.decode(id, body)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Delete removes id. Deleting a missing id is not an error.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	_, err := c.store.db.ExecContext(ctx, `DELETE FROM `+c.table+` WHERE id = ?`, id)
	return err
}

// Clear empties the collection without touching the others.
func (c *Collection[T]) Clear(ctx context.Context) error {
	_, err := c.store.db.ExecContext(ctx, `DELETE FROM `+c.table)
	return err
}

func (c *Collection[T]) decode(id, body string) (T, bool, error) {
	var v T
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return v, false, fmt.Errorf("%s: decode %s: %w", c.table, id, err)
	}
	return v, true, nil
}
