package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type ConflictKind string

const (
	ConflictCapacity ConflictKind = "CAPACITY"
	ConflictRigid    ConflictKind = "RIGID"
)

// ConflictError reports that a requested interval cannot be placed on a
// resource. Owner is set for RIGID conflicts.
type ConflictError struct {
	Kind         ConflictKind
	ResourceName string
	Owner        string
	BookingID    string
	Capacity     int
	Requested    int
	// OwnBooking is true when the blocking booking belongs to the requester.
	OwnBooking bool
}

func (e *ConflictError) Error() string {
	switch e.Kind {
	case ConflictCapacity:
		return fmt.Sprintf("student count (%d) exceeds capacity of %s (%d)", e.Requested, e.ResourceName, e.Capacity)
	case ConflictRigid:
		if e.OwnBooking {
			return fmt.Sprintf("you have already booked %s for an overlapping time", e.ResourceName)
		}
		return fmt.Sprintf("%s is booked by %s for an overlapping time", e.ResourceName, e.Owner)
	default:
		return fmt.Sprintf("conflict on %s", e.ResourceName)
	}
}

func (e *ConflictError) AppError() *AppError {
	details := map[string]any{
		"conflict": string(e.Kind),
		"resource": e.ResourceName,
	}
	if e.Kind == ConflictRigid {
		details["owner"] = e.Owner
		details["booking_id"] = e.BookingID
	} else {
		details["capacity"] = e.Capacity
		details["requested"] = e.Requested
	}
	return &AppError{
		Code:       CodeConflict,
		Message:    "Booking failed: " + e.Error(),
		HTTPStatus: http.StatusConflict,
		Details:    details,
		Err:        e,
	}
}

// PermissionError names both the acting participant and the owner of the
// target so audits can attribute the attempt.
type PermissionError struct {
	Actor  string
	Owner  string
	Action string
}

func (e *PermissionError) Error() string {
	if e.Owner == "" {
		return fmt.Sprintf("permission denied: %s may not %s", e.Actor, e.Action)
	}
	return fmt.Sprintf("permission denied: %s tried to %s a booking owned by %s", e.Actor, e.Action, e.Owner)
}

func (e *PermissionError) AppError() *AppError {
	return &AppError{
		Code:       CodePermissionDenied,
		Message:    e.Error(),
		HTTPStatus: http.StatusForbidden,
		Details: map[string]any{
			"actor":  e.Actor,
			"owner":  e.Owner,
			"action": e.Action,
		},
		Err: e,
	}
}

type NegotiationFailureKind string

const (
	FailureShiftConflict NegotiationFailureKind = "SHIFT_CONFLICT"
	FailureRejected      NegotiationFailureKind = "REJECTED"
)

// NegotiationFailure is returned when a negotiation cannot free the slot:
// either the owner rejected, or the agreed shift collided with another booking
// and was reverted.
type NegotiationFailure struct {
	Kind      NegotiationFailureKind
	BookingID string
	Shift     int
	// Blocking is the booking that collided with the shifted interval.
	Blocking string
}

func (e *NegotiationFailure) Error() string {
	switch e.Kind {
	case FailureShiftConflict:
		return fmt.Sprintf("shifting booking %s by %d minutes collides with booking %s; shift reverted", e.BookingID, e.Shift, e.Blocking)
	case FailureRejected:
		return fmt.Sprintf("owner of booking %s rejected the request", e.BookingID)
	default:
		return "negotiation failed"
	}
}

func (e *NegotiationFailure) AppError() *AppError {
	return &AppError{
		Code:       CodeNegotiationFailed,
		Message:    e.Error(),
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"reason":     string(e.Kind),
			"booking_id": e.BookingID,
		},
		Err: e,
	}
}

func IsConflict(err error, kind ConflictKind) bool {
	var c *ConflictError
	return errors.As(err, &c) && c.Kind == kind
}

func IsPermissionDenied(err error) bool {
	var p *PermissionError
	return errors.As(err, &p)
}

func IsNegotiationFailure(err error, kind NegotiationFailureKind) bool {
	var f *NegotiationFailure
	return errors.As(err, &f) && f.Kind == kind
}
