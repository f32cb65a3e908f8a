package notify

import (
	"context"
	"errors"
	"time"

	"labbroker/pkg/model"
)

// Notifier delivers an event to its recipient, or to every subscriber when
// the recipient is empty.
type Notifier interface {
	Notify(ctx context.Context, event model.Event) error
}

// NotifierFunc lets a plain function serve as a Notifier.
type NotifierFunc func(ctx context.Context, event model.Event) error

func (f NotifierFunc) Notify(ctx context.Context, event model.Event) error {
	return f(ctx, event)
}

type multi []Notifier

// Multi fans an event out to every notifier and joins their errors.
func Multi(notifiers ...Notifier) Notifier {
	return multi(notifiers)
}

func (m multi) Notify(ctx context.Context, event model.Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType model.EventType, recipient string, data any) model.Event {
	return model.Event{
		Type:      eventType,
		Recipient: recipient,
		Data:      data,
		At:        time.Now().UTC(),
	}
}
