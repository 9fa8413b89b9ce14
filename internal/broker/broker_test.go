package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"registration-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []kafka.Message
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.pending) > 0 {
		msg := f.pending[0]
		f.pending = f.pending[1:]
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) Close() error { return nil }

func TestPublishOrderUpdated(t *testing.T) {
	w := &fakeWriter{}
	pub := NewEventPublisher(NewProducerWith(w))

	err := pub.PublishOrderUpdated(context.Background(), models.OrderUpdatedEvent{OrderID: 42, TotalParticipants: 3})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "order-42", string(w.msgs[0].Key))

	var evt models.OrderUpdatedEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &evt))
	assert.Equal(t, models.EventTypeOrderUpdated, evt.EventType)
	assert.NotEmpty(t, evt.EventID)
	assert.Equal(t, 3, evt.TotalParticipants)
}

func TestPublishWriteError(t *testing.T) {
	pub := NewEventPublisher(NewProducerWith(&fakeWriter{err: errors.New("broker down")}))
	err := pub.PublishIngestionCompleted(context.Background(), models.IngestionCompletedEvent{Orders: 1})
	assert.ErrorContains(t, err, "broker down")
}

func TestHandleMessageRoutesByType(t *testing.T) {
	w := &fakeWriter{}
	pub := NewEventPublisher(NewProducerWith(w))
	ctx := context.Background()
	require.NoError(t, pub.PublishOrdersCancelled(ctx, models.OrdersCancelledEvent{
		Results: []models.CancelResult{{OrderID: 1, Status: models.CancelStatusCancelled}},
	}))
	require.NoError(t, pub.PublishParticipantCompleted(ctx, models.ParticipantCompletedEvent{OrderID: 2}))

	h := NewEventHandler()
	var cancelled []int64
	h.OnOrdersCancelled(func(_ context.Context, e *models.OrdersCancelledEvent, raw []byte) error {
		assert.NotEmpty(t, raw)
		for _, r := range e.Results {
			cancelled = append(cancelled, r.OrderID)
		}
		return nil
	})

	for _, m := range w.msgs {
		require.NoError(t, h.HandleMessage(ctx, m))
	}
	assert.Equal(t, []int64{1}, cancelled)

	assert.Error(t, h.HandleMessage(ctx, kafka.Message{Value: []byte("not json")}))
}

func TestStartConsumingCommitsHandledMessages(t *testing.T) {
	r := &fakeReader{pending: []kafka.Message{{Offset: 1}, {Offset: 2}}}
	c := NewConsumerWith(r, "registration-events")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var seen int
	err := c.StartConsuming(ctx, func(_ context.Context, msg kafka.Message) error {
		seen++
		if msg.Offset == 2 {
			cancel()
			return errors.New("handler failed")
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, seen)

	r.mu.Lock()
	defer r.mu.Unlock()
	require.Len(t, r.committed, 1)
	assert.Equal(t, int64(1), r.committed[0].Offset)
}
