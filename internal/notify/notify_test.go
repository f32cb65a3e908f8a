package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"labbroker/pkg/kafka"
	"labbroker/pkg/logger"
	"labbroker/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	PublishFunc func(ctx context.Context, msg kafka.Message) error
}

func (m *mockPublisher) Publish(ctx context.Context, msg kafka.Message) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, msg)
	}
	return nil
}

func receive(t *testing.T, sub *Subscription) (model.Event, bool) {
	t.Helper()
	select {
	case e, ok := <-sub.C:
		return e, ok
	case <-time.After(100 * time.Millisecond):
		return model.Event{}, false
	}
}

func TestHub_RoutesByRecipient(t *testing.T) {
	hub := NewHub(4, logger.Discard())
	alice := hub.Subscribe("alice")
	bob := hub.Subscribe("bob")
	defer alice.Close()
	defer bob.Close()

	require.NoError(t, hub.Notify(context.Background(), NewEvent(model.EventBookingConfirmation, "alice", "ok")))

	e, ok := receive(t, alice)
	require.True(t, ok)
	assert.Equal(t, model.EventBookingConfirmation, e.Type)
	_, ok = receive(t, bob)
	assert.False(t, ok)

	require.NoError(t, hub.Notify(context.Background(), NewEvent(model.EventScheduleUpdate, "", nil)))
	e, ok = receive(t, alice)
	require.True(t, ok)
	assert.Equal(t, model.EventScheduleUpdate, e.Type)
	e, ok = receive(t, bob)
	require.True(t, ok)
	assert.Equal(t, model.EventScheduleUpdate, e.Type)
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub(1, logger.Discard())
	sub := hub.Subscribe("alice")
	defer sub.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, hub.Notify(context.Background(), NewEvent(model.EventScheduleUpdate, "", i)))
	}
	e, ok := receive(t, sub)
	require.True(t, ok)
	assert.Equal(t, 0, e.Data)
	_, ok = receive(t, sub)
	assert.False(t, ok)
}

func TestHub_CloseUnsubscribes(t *testing.T) {
	hub := NewHub(1, logger.Discard())
	sub := hub.Subscribe("alice")
	assert.Equal(t, 1, hub.Subscribers())

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, hub.Subscribers())

	_, open := <-sub.C
	assert.False(t, open)
	assert.NoError(t, hub.Notify(context.Background(), NewEvent(model.EventScheduleUpdate, "", nil)))
}

func TestHub_CancelledContext(t *testing.T) {
	hub := NewHub(1, logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, hub.Notify(ctx, NewEvent(model.EventScheduleUpdate, "", nil)), context.Canceled)
}

func TestMulti_JoinsErrors(t *testing.T) {
	var calls int
	ok := NotifierFunc(func(context.Context, model.Event) error { calls++; return nil })
	failing := NotifierFunc(func(context.Context, model.Event) error { calls++; return errors.New("down") })

	err := Multi(ok, failing, ok).Notify(context.Background(), NewEvent(model.EventError, "alice", "x"))
	assert.Equal(t, 3, calls)
	assert.EqualError(t, err, "down")
	assert.NoError(t, Multi(ok).Notify(context.Background(), model.Event{}))
}

func TestKafkaNotifier_Publish(t *testing.T) {
	var published []kafka.Message
	pub := &mockPublisher{PublishFunc: func(_ context.Context, msg kafka.Message) error {
		published = append(published, msg)
		return nil
	}}
	n := NewKafkaNotifier(pub, "broker-1", logger.Discard())

	require.NoError(t, n.Notify(context.Background(), NewEvent(model.EventBookingConfirmation, "alice", map[string]string{"id": "b1"})))
	require.NoError(t, n.Notify(context.Background(), NewEvent(model.EventScheduleUpdate, "", nil)))
	require.Len(t, published, 2)

	assert.Equal(t, "alice", published[0].Key)
	assert.Equal(t, "alice", published[0].Headers[kafka.HeaderRecipient])
	assert.Equal(t, "booking_confirmation", published[0].GetEventType())
	assert.Equal(t, "broker-1", published[0].GetSource())
	assert.NotEmpty(t, published[0].GetEventID())

	assert.Equal(t, broadcastKey, published[1].Key)
	_, hasRecipient := published[1].Headers[kafka.HeaderRecipient]
	assert.False(t, hasRecipient)
}

func TestKafkaNotifier_PublishError(t *testing.T) {
	pub := &mockPublisher{PublishFunc: func(context.Context, kafka.Message) error {
		return kafka.ErrProducerClosed
	}}
	err := NewKafkaNotifier(pub, "broker-1", logger.Discard()).
		Notify(context.Background(), NewEvent(model.EventScheduleUpdate, "", nil))
	assert.ErrorIs(t, err, kafka.ErrProducerClosed)
}

func TestRelay_DeliversPublishedEvents(t *testing.T) {
	hub := NewHub(4, logger.Discard())
	sub := hub.Subscribe("alice")
	defer sub.Close()
	relay := NewRelay(hub, logger.Discard())

	pub := &mockPublisher{PublishFunc: relay.Handle}
	n := NewKafkaNotifier(pub, "broker-1", logger.Discard())
	require.NoError(t, n.Notify(context.Background(), NewEvent(model.EventBookingConfirmation, "alice", "booked")))

	e, ok := receive(t, sub)
	require.True(t, ok)
	assert.Equal(t, model.EventBookingConfirmation, e.Type)
	assert.Equal(t, "alice", e.Recipient)
	assert.Equal(t, "booked", e.Data)
}

func TestRelay_RejectsGarbage(t *testing.T) {
	relay := NewRelay(NewHub(1, logger.Discard()), logger.Discard())
	err := relay.Handle(context.Background(), kafka.Message{Value: []byte("{not json")})
	assert.Error(t, err)
}
