package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DRAFT_TTL", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg := Load()

	require.Equal(t, 24*time.Hour, cfg.DraftTTL)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, []string{"workout_events", "draft_events"}, cfg.ConsumerTopics)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DRAFT_TTL", "90m")
	t.Setenv("KAFKA_BROKERS", " a:9092 , ,b:9092")
	t.Setenv("STORAGE_BACKEND", "MEMORY")
	t.Setenv("OUTBOX_BATCH_SIZE", "not-a-number")

	cfg := Load()

	require.Equal(t, 90*time.Minute, cfg.DraftTTL)
	require.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	require.Equal(t, StorageMemory, cfg.StorageBackend)
	require.Equal(t, 25, cfg.OutboxBatchSize)
}
