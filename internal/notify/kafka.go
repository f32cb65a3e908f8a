package notify

import (
	"context"
	"fmt"

	"labbroker/pkg/kafka"
	"labbroker/pkg/logger"
	"labbroker/pkg/model"
)

const broadcastKey = "broadcast"

// Publisher is the part of the Kafka producer the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// KafkaNotifier publishes events to the notification topic so every broker
// instance can relay them to its own subscribers.
type KafkaNotifier struct {
	publisher Publisher
	source    string
	log       *logger.Logger
}

func NewKafkaNotifier(publisher Publisher, source string, log *logger.Logger) *KafkaNotifier {
	return &KafkaNotifier{publisher: publisher, source: source, log: log}
}

func (n *KafkaNotifier) Notify(ctx context.Context, event model.Event) error {
	key := event.Recipient
	if key == "" {
		key = broadcastKey
	}
	msg, err := kafka.NewMessage().
		WithKey(key).
		WithValue(event).
		WithEventType(string(event.Type)).
		WithRecipient(event.Recipient).
		WithSource(n.source).
		WithTimestamp(event.At).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build %s event: %w", event.Type, err)
	}
	if err := n.publisher.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	return nil
}

// Relay turns consumed notification messages back into events for the
// local hub.
type Relay struct {
	hub *Hub
	log *logger.Logger
}

func NewRelay(hub *Hub, log *logger.Logger) *Relay {
	return &Relay{hub: hub, log: log}
}

// Handle is a kafka.MessageHandler.
func (r *Relay) Handle(ctx context.Context, msg kafka.Message) error {
	var event model.Event
	if err := msg.DecodeValue(&event); err != nil {
		return fmt.Errorf("failed to decode event %s: %w", msg.GetEventID(), err)
	}
	if event.Type == "" {
		event.Type = model.EventType(msg.GetEventType())
	}
	r.log.Debug("Relaying event", "event_id", msg.GetEventID(), "type", event.Type, "source", msg.GetSource())
	return r.hub.Notify(ctx, event)
}
