//go:build integration

package consumer

import (
	"context"
	"encoding/binary"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkaContainer "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/joshua0624/gym-brain-v2-sub001/internal/events"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/outbox"
)

type capturingHandler struct {
	mu   sync.Mutex
	msgs []Message
}

func (h *capturingHandler) Handle(_ context.Context, msg Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msg)
	return nil
}

func (h *capturingHandler) received() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Message(nil), h.msgs...)
}

func framed(schemaID uint32, payload string) []byte {
	buf := make([]byte, 5, 5+len(payload))
	binary.BigEndian.PutUint32(buf[1:], schemaID)
	return append(buf, payload...)
}

func TestProducerToProcessorOverKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	kafkaC, err := kafkaContainer.RunContainer(ctx, testcontainers.WithEnv(map[string]string{
		"KAFKA_AUTO_CREATE_TOPICS_ENABLE": "true",
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kafkaC.Terminate(context.Background()) })

	brokers, err := kafkaC.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	conn, err := kafka.Dial("tcp", brokers[0])
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{
		Topic:             events.TopicWorkoutEvents,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     "workout-event-integration",
		Topic:       events.TopicWorkoutEvents,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	defer reader.Close()

	handler := &capturingHandler{}
	proc := NewProcessor(reader, handler, WithLogger(log.New(io.Discard, "", 0)))
	consumerCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = proc.Run(consumerCtx) }()

	producer := outbox.NewKafkaProducer(brokers)
	defer producer.Close()

	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(events.TypeWorkoutCompleted)},
		{Key: "owner_id", Value: []byte("owner-a")},
		{Key: "schema_subject", Value: []byte(events.TopicWorkoutEvents + "-value")},
	}
	require.NoError(t, producer.WriteMessages(ctx, events.TopicWorkoutEvents,
		kafka.Message{Key: []byte("owner-a"), Value: []byte("not framed"), Headers: headers},
		kafka.Message{Key: []byte("owner-a"), Value: framed(7, `{"workoutId":"w-1","totalVolume":2250}`), Headers: headers},
	))

	require.Eventually(t, func() bool { return len(handler.received()) == 1 }, time.Minute, 250*time.Millisecond)

	msg := handler.received()[0]
	require.Equal(t, events.TypeWorkoutCompleted, msg.EventType)
	require.Equal(t, "owner-a", msg.OwnerID)
	require.Equal(t, 7, msg.SchemaID)
	require.JSONEq(t, `{"workoutId":"w-1","totalVolume":2250}`, string(msg.Payload))
}
