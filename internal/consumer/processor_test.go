package consumer

import (
	"context"
	"encoding/binary"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func framed(schemaID uint32, payload string) []byte {
	value := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(value[1:5], schemaID)
	copy(value[5:], payload)
	return value
}

func workoutMessage(offset int64, value []byte) kafka.Message {
	return kafka.Message{
		Topic:     "workout_events",
		Partition: 0,
		Offset:    offset,
		Time:      time.Now().UTC(),
		Value:     value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("workout.completed")},
			{Key: "owner_id", Value: []byte("owner-1")},
			{Key: "schema_subject", Value: []byte("workout_events-value")},
		},
	}
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	payload := `{"workout_id":"w1","total_volume":2250}`
	reader := &stubReader{messages: []kafka.Message{workoutMessage(10, framed(42, payload))}}
	handler := &stubHandler{}

	err := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0))).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, "workout.completed", handler.last.EventType)
	require.Equal(t, "owner-1", handler.last.OwnerID)
	require.Equal(t, 42, handler.last.SchemaID)
	require.JSONEq(t, payload, string(handler.last.Payload))
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{workoutMessage(20, framed(9, `{}`))}}
	handler := &stubHandler{err: errors.New("boom")}
	before := testutil.ToFloat64(handlerErrorCounter.WithLabelValues("workout_events", "workout.completed"))

	err := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)), WithRetryDelay(0)).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Zero(t, reader.commitCalls)
	require.InDelta(t, before+1, testutil.ToFloat64(handlerErrorCounter.WithLabelValues("workout_events", "workout.completed")), 0.0001)
}

func TestProcessorCommitsPoisonRecords(t *testing.T) {
	noHeader := workoutMessage(31, framed(1, `{}`))
	noHeader.Headers = nil

	reader := &stubReader{messages: []kafka.Message{
		workoutMessage(30, []byte{0, 1}),
		noHeader,
		workoutMessage(32, framed(1, `not json`)),
	}}
	handler := &stubHandler{}

	err := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0))).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Zero(t, handler.calls)
	require.Equal(t, 3, reader.commitCalls)
}

type stubReader struct {
	messages    []kafka.Message
	index       int
	commitCalls int
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.index >= len(r.messages) {
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error { return nil }

type stubHandler struct {
	calls int
	err   error
	last  Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	return h.err
}

type testWriter struct {
	t *testing.T
}

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Log(string(p))
	return len(p), nil
}
