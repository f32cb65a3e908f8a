package availability

import (
	apperrors "labbroker/pkg/errors"
	"labbroker/pkg/model"
)

// Result is the outcome of checking one interval against one resource.
// Conflict is set only for StatusConflictRigid.
type Result struct {
	Status   model.AvailabilityStatus
	Conflict *model.Booking
}

// Check decides whether studentCount people can use resource during
// interval given the resource's current bookings. Capacity is checked
// before any booking is looked at. The first overlapping booking in
// slice order is reported. Check never fetches and never mutates.
func Check(resource *model.Resource, interval model.Interval, studentCount int, bookings []*model.Booking) Result {
	if studentCount > resource.Capacity {
		return Result{Status: model.StatusConflictCapacity}
	}
	for _, b := range bookings {
		if b.ResourceID != "" && resource.ID != "" && b.ResourceID != resource.ID {
			continue
		}
		if interval.Overlaps(b.Interval()) {
			return Result{Status: model.StatusConflictRigid, Conflict: b}
		}
	}
	return Result{Status: model.StatusAvailable}
}

// CheckExcluding is Check with one booking left out, used to re-validate a
// booking against the rest of its resource's schedule.
func CheckExcluding(resource *model.Resource, interval model.Interval, studentCount int, bookings []*model.Booking, excludeID string) Result {
	rest := make([]*model.Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.ID != excludeID {
			rest = append(rest, b)
		}
	}
	return Check(resource, interval, studentCount, rest)
}

// Err converts a non-available result into the typed conflict error.
// requester marks conflicts with the requester's own booking.
func (r Result) Err(resource *model.Resource, studentCount int, requester string) error {
	switch r.Status {
	case model.StatusConflictCapacity:
		return &apperrors.ConflictError{
			Kind:         apperrors.ConflictCapacity,
			ResourceName: resource.Name,
			Capacity:     resource.Capacity,
			Requested:    studentCount,
		}
	case model.StatusConflictRigid:
		return &apperrors.ConflictError{
			Kind:         apperrors.ConflictRigid,
			ResourceName: resource.Name,
			Owner:        r.Conflict.Owner,
			BookingID:    r.Conflict.ID,
			OwnBooking:   requester != "" && r.Conflict.Owner == requester,
		}
	default:
		return nil
	}
}

// ToModel renders the result in the wire shape returned to requesters.
func (r Result) ToModel(resource *model.Resource, interval model.Interval, studentCount int) model.AvailabilityResult {
	out := model.AvailabilityResult{
		ResourceName: resource.Name,
		Status:       r.Status,
		Interval:     interval,
		StudentCount: studentCount,
	}
	if r.Conflict != nil {
		out.Owner = r.Conflict.Owner
	}
	return out
}
