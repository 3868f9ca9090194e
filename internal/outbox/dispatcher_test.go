package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/joshua0624/gym-brain-v2-sub001/internal/events"
)

type stubWriter struct {
	written map[string][]kafka.Message
	err     error
}

func (s *stubWriter) WriteMessages(_ context.Context, topic string, msgs ...kafka.Message) error {
	if s.err != nil {
		return s.err
	}
	if s.written == nil {
		s.written = make(map[string][]kafka.Message)
	}
	s.written[topic] = append(s.written[topic], msgs...)
	return nil
}

type stubRegistry struct {
	calls map[string]int
}

func (s *stubRegistry) EnsureSchema(_ context.Context, subject, _ string) (int, error) {
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[subject]++
	if subject == events.TopicDraftEvents+"-value" {
		return 7, nil
	}
	return 3, nil
}

func newTestDispatcher(w *stubWriter, r *stubRegistry) *Dispatcher {
	return NewDispatcher(nil, w, r, time.Second, 10, WithLogger(log.New(io.Discard, "", 0)))
}

func TestDeliverFramesAndGroupsByTopic(t *testing.T) {
	writer := &stubWriter{}
	registry := &stubRegistry{}
	d := newTestDispatcher(writer, registry)

	messages := []Message{
		{EventID: 1, OwnerID: "u1", EventType: events.TypeWorkoutCompleted, Topic: events.TopicWorkoutEvents, SchemaSubject: "workout_events-value", PartitionKey: "u1", Payload: json.RawMessage(`{"workout_id":"w1"}`)},
		{EventID: 2, OwnerID: "u1", EventType: events.TypeDraftDiscarded, Topic: events.TopicDraftEvents, SchemaSubject: "draft_events-value", PartitionKey: "u1", Payload: json.RawMessage(`{"draft_id":"d1"}`)},
		{EventID: 3, OwnerID: "u2", EventType: events.TypeWorkoutCompleted, Topic: events.TopicWorkoutEvents, SchemaSubject: "workout_events-value", PartitionKey: "u2", Payload: json.RawMessage(`{"workout_id":"w2"}`)},
	}

	require.NoError(t, d.deliver(context.Background(), messages))

	require.Len(t, writer.written[events.TopicWorkoutEvents], 2)
	require.Len(t, writer.written[events.TopicDraftEvents], 1)
	require.Equal(t, 1, registry.calls["workout_events-value"])

	record := writer.written[events.TopicDraftEvents][0]
	require.Equal(t, byte(0), record.Value[0])
	require.Equal(t, uint32(7), binary.BigEndian.Uint32(record.Value[1:5]))
	require.JSONEq(t, `{"draft_id":"d1"}`, string(record.Value[5:]))
	require.Equal(t, []byte("u1"), record.Key)

	headers := make(map[string]string)
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}
	require.Equal(t, events.TypeDraftDiscarded, headers["event_type"])
	require.Equal(t, "u1", headers["owner_id"])
}

func TestDeliverRejectsUnknownEventType(t *testing.T) {
	d := newTestDispatcher(&stubWriter{}, &stubRegistry{})

	err := d.deliver(context.Background(), []Message{{EventType: "workout.exploded", Topic: "x"}})
	require.ErrorContains(t, err, "workout.exploded")
}

func TestDeliverPropagatesWriterError(t *testing.T) {
	boom := errors.New("broker unavailable")
	d := newTestDispatcher(&stubWriter{err: boom}, &stubRegistry{})

	err := d.deliver(context.Background(), []Message{{EventType: events.TypeWorkoutCompleted, Topic: events.TopicWorkoutEvents, SchemaSubject: "workout_events-value"}})
	require.ErrorIs(t, err, boom)
}

func TestBackoffDelayIsCapped(t *testing.T) {
	m := &DLQManager{baseDelay: time.Minute}

	require.Equal(t, time.Minute, m.backoffDelay(1))
	require.Equal(t, 4*time.Minute, m.backoffDelay(3))
	require.Equal(t, time.Hour, m.backoffDelay(10))
	require.Equal(t, time.Hour, m.backoffDelay(64))
}
