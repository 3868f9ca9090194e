// Package localstore is the on-device durable store of the offline client: a workout
// cache, the in-progress draft, the exercise catalog cache and the sync queue, each in
// its own SQLite table.
package localstore

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store owns the SQLite database backing every collection.
type Store struct {
	db  *sql.DB
	now func() time.Time

	workouts  *Collection[Workout]
	drafts    *Collection[Draft]
	exercises *Collection[Exercise]
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for timestamps and claim leases.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open creates or opens the database at path and applies the schema. Transactions
// take the write lock when they begin so read-modify-write cycles from separate
// processes serialize instead of failing on lock upgrade.
func Open(path string, opts ...Option) (*Store, error) {
	dsn := path
	if strings.Contains(dsn, "?") {
		dsn += "&_txlock=immediate"
	} else {
		dsn += "?_txlock=immediate"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect local store: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(s)
	}
	s.workouts = newCollection[Workout](s, "workout_cache")
	s.drafts = newCollection[Draft](s, "draft_cache")
	s.exercises = newCollection[Exercise](s, "exercise_cache")
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Workouts is the cache of finished workouts awaiting or past sync.
func (s *Store) Workouts() *Collection[Workout] { return s.workouts }

// Drafts holds the in-progress workout.
func (s *Store) Drafts() *Collection[Draft] { return s.drafts }

// Exercises is the cached exercise catalog.
func (s *Store) Exercises() *Collection[Exercise] { return s.exercises }

// ActiveDraft returns the in-progress workout, or nil.
func (s *Store) ActiveDraft(ctx context.Context) (*Draft, error) {
	drafts, err := s.drafts.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(drafts) == 0 {
		return nil, nil
	}
	latest := drafts[0]
	for _, d := range drafts[1:] {
		if d.UpdatedAt.After(latest.UpdatedAt) {
			latest = d
		}
	}
	return &latest, nil
}

// Closing is what finishing a draft leaves behind: the cached workout and the queued
// operation that will publish it.
type Closing struct {
	Workout   Workout
	Operation string
	Payload   any
}

// FinishDraft closes draft id in one transaction. The draft row is removed, and the
// workout and queue entry built by finish are written. It reports false, writing
// nothing, when the draft is already gone.
func (s *Store) FinishDraft(ctx context.Context, id string, finish func(Draft) (Closing, error)) (int64, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	defer tx.Rollback()

	draft, ok, err := s.drafts.take(ctx, tx, id)
	if err != nil || !ok {
		return 0, false, err
	}
	closing, err := finish(draft)
	if err != nil {
		return 0, false, err
	}
	if err := s.workouts.save(ctx, tx, closing.Workout); err != nil {
		return 0, false, fmt.Errorf("cache workout %s: %w", closing.Workout.ID, err)
	}
	seq, err := s.enqueue(ctx, tx, closing.Operation, closing.Payload)
	if err != nil {
		return 0, false, err
	}
	if err := tx.Commit(); err != nil {
		return 0, false, err
	}
	return seq, true, nil
}
