// Package postgres implements the draft registry, the completion transaction and the
// workout read model on Postgres.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joshua0624/gym-brain-v2-sub001/internal/events"
)

// Repository provides Postgres-backed persistence for drafts, workouts and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type outboxRecord struct {
	owner         string
	aggregateType string
	aggregateID   string
	eventType     string
	payload       any
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, rec outboxRecord) error {
	body, err := json.Marshal(rec.payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[rec.eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", rec.eventType)
	}

	const stmt = `INSERT INTO outbox (owner_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (dedupe_key) DO NOTHING`

	_, err = tx.Exec(ctx, stmt,
		rec.owner,
		rec.aggregateType,
		rec.aggregateID,
		rec.eventType,
		meta.Topic,
		meta.Topic+"-value",
		meta.PartitionKeyFn(rec),
		body,
		rec.aggregateID+":"+rec.eventType,
	)
	return err
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	PartitionKeyFn func(outboxRecord) string
}

var eventCatalog = map[string]EventMetadata{
	events.TypeWorkoutCompleted: {
		Topic:          events.TopicWorkoutEvents,
		PartitionKeyFn: func(r outboxRecord) string { return r.owner },
	},
	events.TypeDraftDiscarded: {
		Topic:          events.TopicDraftEvents,
		PartitionKeyFn: func(r outboxRecord) string { return r.owner },
	},
}
