package model

import "time"

type EventType string

const (
	EventScheduleUpdate      EventType = "schedule_update"
	EventAvailabilityResults EventType = "availability_results"
	EventBookingConfirmation EventType = "booking_confirmation"
	EventError               EventType = "error"
)

// Event is a notification pushed to subscribers. Recipient is empty for
// broadcasts.
type Event struct {
	Type      EventType `json:"type"`
	Recipient string    `json:"recipient,omitempty"`
	Data      any       `json:"data"`
	At        time.Time `json:"at"`
}
