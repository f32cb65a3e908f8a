package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"labbroker/internal/agent"
	"labbroker/internal/availability"
	interrors "labbroker/internal/errors"
	"labbroker/internal/lock"
	"labbroker/internal/notify"
	"labbroker/internal/repository"
	"labbroker/pkg/config"
	apperrors "labbroker/pkg/errors"
	"labbroker/pkg/model"
)

// CommitRequest asks for a booking on the named resource.
type CommitRequest struct {
	Requester          model.Requester
	ResourceName       string
	Interval           model.Interval
	StudentCount       int
	FlexibilityMinutes int
}

// Confirmation is the payload of booking_confirmation events.
type Confirmation struct {
	Action       string         `json:"action"`
	ResourceName string         `json:"resource_name"`
	Booking      *model.Booking `json:"booking"`
}

const (
	ActionBooked       = "booked"
	ActionCancelled    = "cancelled"
	ActionUpdated      = "updated"
	ActionShifted      = "shifted"
	scheduleWindowDays = 7
)

// Scheduler is the only writer of new bookings. Every check-then-write runs
// under the resource lock and inside a store transaction.
type Scheduler struct {
	store    repository.Store
	locker   lock.Locker
	notifier notify.Notifier
	cfg      *config.Config
	now      func() time.Time
}

func New(store repository.Store, locker lock.Locker, notifier notify.Notifier, cfg *config.Config) *Scheduler {
	return &Scheduler{
		store:    store,
		locker:   locker,
		notifier: notifier,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Priority maps the requester's category to a tier. Unknown categories get
// the default priority.
func (s *Scheduler) Priority(requester model.Requester) int {
	if p, ok := s.cfg.PriorityTiers[requester.CategoryCode()]; ok {
		return p
	}
	return s.cfg.DefaultPriority
}

func (s *Scheduler) Commit(ctx context.Context, req CommitRequest) (*model.Booking, error) {
	if !req.Requester.CanCommit() {
		return nil, &apperrors.PermissionError{Actor: req.Requester.Username, Action: "commit bookings"}
	}
	if err := validateCommit(req); err != nil {
		return nil, err
	}

	target, err := s.store.Resources().FindByName(ctx, req.ResourceName)
	if err != nil {
		if errors.Is(err, interrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Resource", req.ResourceName)
		}
		return nil, passContext(err, apperrors.Internal("Failed to load resource", err))
	}

	var booking *model.Booking
	var resource *model.Resource
	err = s.withResource(ctx, target.ID, func(txCtx context.Context) error {
		fresh, bookings, err := agent.Snapshot(txCtx, s.store, target.ID)
		if err != nil {
			return err
		}
		if err := checkOperatingHours(fresh, req.Interval); err != nil {
			return err
		}
		result := availability.Check(fresh, req.Interval, req.StudentCount, bookings)
		if result.Status != model.StatusAvailable {
			return result.Err(fresh, req.StudentCount, req.Requester.Username)
		}

		b := &model.Booking{
			ResourceID:         fresh.ID,
			Owner:              req.Requester.Username,
			Start:              req.Interval.Start,
			End:                req.Interval.End,
			StudentCount:       req.StudentCount,
			FlexibilityMinutes: req.FlexibilityMinutes,
			Priority:           s.Priority(req.Requester),
		}
		if err := s.store.Bookings().Create(txCtx, b); err != nil {
			return passContext(err, apperrors.Internal("Failed to create booking", err))
		}
		booking, resource = b, fresh
		return nil
	})
	if err != nil {
		s.cfg.Log.Warn("Commit failed",
			"resource", req.ResourceName,
			"requester", req.Requester.Username,
			"interval", req.Interval.String(),
			"error", err,
		)
		return nil, err
	}

	s.cfg.Log.Info("Booking committed",
		"id", booking.ID,
		"resource", resource.Name,
		"owner", booking.Owner,
		"interval", booking.Interval().String(),
		"priority", booking.Priority,
	)
	s.Announce(ctx, ActionBooked, resource.Name, booking)
	return booking, nil
}

// Cancel removes a booking. Only its owner or an admin may do so.
func (s *Scheduler) Cancel(ctx context.Context, bookingID string, actor model.Requester) error {
	existing, err := s.findBooking(ctx, bookingID)
	if err != nil {
		return err
	}

	var resourceName string
	var cancelled *model.Booking
	err = s.withResource(ctx, existing.ResourceID, func(txCtx context.Context) error {
		booking, err := s.findBooking(txCtx, bookingID)
		if err != nil {
			return err
		}
		if err := requireOwner(actor, booking, "cancel"); err != nil {
			return err
		}
		if err := s.store.Bookings().Delete(txCtx, bookingID); err != nil {
			return bookingError(err, bookingID)
		}
		resourceName = s.resourceName(txCtx, booking.ResourceID)
		cancelled = booking
		return nil
	})
	if err != nil {
		s.cfg.Log.Warn("Cancel failed", "id", bookingID, "actor", actor.Username, "error", err)
		return err
	}

	s.cfg.Log.Info("Booking cancelled", "id", bookingID, "owner", cancelled.Owner, "actor", actor.Username)
	s.Announce(ctx, ActionCancelled, resourceName, cancelled)
	return nil
}

// UpdateStudentCount changes the head count of a booking within the
// resource's capacity. Only its owner or an admin may do so.
func (s *Scheduler) UpdateStudentCount(ctx context.Context, bookingID string, actor model.Requester, studentCount int) (*model.Booking, error) {
	if studentCount < 1 {
		return nil, apperrors.Validation("Student count must be at least 1", map[string]any{"student_count": studentCount})
	}
	existing, err := s.findBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	var updated *model.Booking
	var resource *model.Resource
	err = s.withResource(ctx, existing.ResourceID, func(txCtx context.Context) error {
		booking, err := s.findBooking(txCtx, bookingID)
		if err != nil {
			return err
		}
		if err := requireOwner(actor, booking, "update"); err != nil {
			return err
		}
		r, err := s.store.Resources().FindByID(txCtx, booking.ResourceID)
		if err != nil {
			return passContext(err, apperrors.Internal("Failed to load resource", err))
		}
		if studentCount > r.Capacity {
			return &apperrors.ConflictError{
				Kind:         apperrors.ConflictCapacity,
				ResourceName: r.Name,
				Capacity:     r.Capacity,
				Requested:    studentCount,
			}
		}
		if err := s.store.Bookings().UpdateStudentCount(txCtx, bookingID, studentCount); err != nil {
			return bookingError(err, bookingID)
		}
		booking.StudentCount = studentCount
		updated, resource = booking, r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Booking student count updated", "id", bookingID, "student_count", studentCount, "actor", actor.Username)
	s.Announce(ctx, ActionUpdated, resource.Name, updated)
	return updated, nil
}

// ScheduleForRange returns the bookings overlapping [from, to) grouped by
// resource name. Every resource appears, even with no bookings.
func (s *Scheduler) ScheduleForRange(ctx context.Context, from, to time.Time) (model.Schedule, error) {
	if !to.After(from) {
		return nil, apperrors.InvalidInput("Range end must be after start")
	}
	resources, err := s.store.Resources().FindAll(ctx)
	if err != nil {
		return nil, passContext(err, apperrors.Internal("Failed to load resources", err))
	}
	bookings, err := s.store.Bookings().FindInRange(ctx, from.UTC(), to.UTC())
	if err != nil {
		return nil, passContext(err, apperrors.Internal("Failed to load bookings", err))
	}

	names := make(map[string]string, len(resources))
	schedule := make(model.Schedule, len(resources))
	for _, r := range resources {
		names[r.ID] = r.Name
		schedule[r.Name] = []*model.Booking{}
	}
	for _, b := range bookings {
		name, ok := names[b.ResourceID]
		if !ok {
			continue
		}
		schedule[name] = append(schedule[name], b)
	}
	return schedule, nil
}

// WeekSchedule returns the schedule of the week containing at, from Monday
// 00:00 UTC.
func (s *Scheduler) WeekSchedule(ctx context.Context, at time.Time) (model.Schedule, error) {
	from := WeekStart(at)
	return s.ScheduleForRange(ctx, from, from.AddDate(0, 0, scheduleWindowDays))
}

// WeekStart returns Monday 00:00 UTC of the week containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -offset)
}

// Announce sends the confirmation to the owner and a schedule update to
// everyone. Delivery failures are logged: the change has already landed.
func (s *Scheduler) Announce(ctx context.Context, action, resourceName string, booking *model.Booking) {
	if s.notifier == nil {
		return
	}
	recipient := booking.Owner
	confirmation := Confirmation{Action: action, ResourceName: resourceName, Booking: booking}
	if err := s.notifier.Notify(ctx, notify.NewEvent(model.EventBookingConfirmation, recipient, confirmation)); err != nil {
		s.cfg.Log.Warn("Failed to send booking confirmation", "id", booking.ID, "recipient", recipient, "error", err)
	}

	schedule, err := s.WeekSchedule(ctx, s.now())
	if err != nil {
		s.cfg.Log.Warn("Failed to build schedule update", "error", err)
		return
	}
	if err := s.notifier.Notify(ctx, notify.NewEvent(model.EventScheduleUpdate, "", schedule)); err != nil {
		s.cfg.Log.Warn("Failed to broadcast schedule update", "error", err)
	}
}

func (s *Scheduler) withResource(ctx context.Context, resourceID string, fn func(txCtx context.Context) error) error {
	release, err := s.locker.Lock(ctx, lock.ResourceKey(resourceID))
	if err != nil {
		if errors.Is(err, interrors.ErrLockHeld) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return apperrors.Timeout("Resource is busy, please retry")
		}
		return apperrors.Internal("Failed to lock resource", err)
	}
	defer release()
	return s.store.ExecuteTransaction(ctx, fn)
}

func (s *Scheduler) findBooking(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	booking, err := s.store.Bookings().FindByID(ctx, id)
	if err != nil {
		return nil, bookingError(err, id)
	}
	return booking, nil
}

func (s *Scheduler) resourceName(ctx context.Context, id string) string {
	r, err := s.store.Resources().FindByID(ctx, id)
	if err != nil {
		return id
	}
	return r.Name
}

func validateCommit(req CommitRequest) error {
	details := map[string]any{}
	if err := req.Interval.Validate(); err != nil {
		details["interval"] = err.Error()
	}
	if req.StudentCount < 1 {
		details["student_count"] = "must be at least 1"
	}
	if req.FlexibilityMinutes < 0 {
		details["flexibility_minutes"] = "must not be negative"
	}
	if req.ResourceName == "" {
		details["resource_name"] = "is required"
	}
	if len(details) > 0 {
		return apperrors.Validation("Invalid booking request", details)
	}
	return nil
}

func checkOperatingHours(resource *model.Resource, interval model.Interval) error {
	within, err := resource.WithinOperatingHours(interval)
	if err != nil {
		return apperrors.Internal("Invalid operating hours", err)
	}
	if !within {
		return apperrors.Validation(
			fmt.Sprintf("%s is open %s-%s UTC", resource.Name, resource.OperatingStart, resource.OperatingEnd),
			map[string]any{"operating_start": resource.OperatingStart, "operating_end": resource.OperatingEnd},
		)
	}
	return nil
}

func requireOwner(actor model.Requester, booking *model.Booking, action string) error {
	if actor.IsAdmin() || (actor.Username != "" && actor.Username == booking.Owner) {
		return nil
	}
	return &apperrors.PermissionError{Actor: actor.Username, Owner: booking.Owner, Action: action}
}

func bookingError(err error, id string) error {
	switch {
	case errors.Is(err, interrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, interrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid booking ID format")
	default:
		return passContext(err, apperrors.Internal("Failed to access booking", err))
	}
}

// passContext keeps cancellation errors recognisable to callers.
func passContext(err error, wrapped error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return wrapped
}
