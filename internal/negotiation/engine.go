package negotiation

import (
	"context"
	"errors"
	"fmt"

	"labbroker/internal/availability"
	interrors "labbroker/internal/errors"
	"labbroker/internal/lock"
	"labbroker/internal/repository"
	"labbroker/internal/reputation"
	"labbroker/pkg/config"
	apperrors "labbroker/pkg/errors"
	"labbroker/pkg/model"
)

// Engine evaluates shift proposals against the target booking and applies
// agreed shifts. It reads reputation but never adjusts it.
type Engine struct {
	store   repository.Store
	locker  lock.Locker
	tracker reputation.Tracker
	policy  Policy
	cfg     *config.Config
}

func NewEngine(store repository.Store, locker lock.Locker, tracker reputation.Tracker, policy Policy, cfg *config.Config) *Engine {
	if policy == nil {
		policy = ThresholdPolicy{Threshold: cfg.NegotiationThreshold}
	}
	return &Engine{
		store:   store,
		locker:  locker,
		tracker: tracker,
		policy:  policy,
		cfg:     cfg,
	}
}

// Propose builds a proposal carrying the requester's current reputation and
// evaluates it.
func (e *Engine) Propose(ctx context.Context, requester, bookingID string, minutes int, justification string) (model.Proposal, model.Decision, error) {
	score, err := e.tracker.Get(ctx, requester)
	if err != nil {
		return model.Proposal{}, model.Decision{}, apperrors.Internal("Failed to read reputation", err)
	}
	proposal := model.Proposal{
		TargetBookingID:       bookingID,
		RequestedShiftMinutes: minutes,
		RequesterReputation:   score,
		Justification:         justification,
	}
	decision, err := e.Evaluate(ctx, proposal)
	return proposal, decision, err
}

// Evaluate decides a proposal against a snapshot of the target booking. It
// takes no lock.
func (e *Engine) Evaluate(ctx context.Context, proposal model.Proposal) (model.Decision, error) {
	if proposal.RequestedShiftMinutes == 0 {
		return model.Decision{}, apperrors.InvalidInput("Requested shift must be non-zero")
	}
	target, err := e.store.Bookings().FindByID(ctx, proposal.TargetBookingID)
	if err != nil {
		return model.Decision{}, bookingError(err, proposal.TargetBookingID)
	}

	decision := e.policy.Decide(target, proposal)
	e.cfg.Log.Info("Negotiation decided",
		"booking_id", target.ID,
		"owner", target.Owner,
		"requested_shift", proposal.RequestedShiftMinutes,
		"flexibility", target.FlexibilityMinutes,
		"reputation", proposal.RequesterReputation,
		"decision", decision.Kind,
		"offered_shift", decision.Offered(),
	)
	return decision, nil
}

// Resolve applies a decision: ACCEPT shifts by the requested amount, COUNTER
// by the offered amount, REJECT fails with NegotiationFailure{REJECTED}. A
// COUNTER offering zero minutes moves nothing and returns a nil booking.
func (e *Engine) Resolve(ctx context.Context, proposal model.Proposal, decision model.Decision) (*model.Booking, error) {
	switch decision.Kind {
	case model.DecisionAccept:
		return e.ApplyShift(ctx, proposal.TargetBookingID, proposal.RequestedShiftMinutes)
	case model.DecisionCounter:
		if decision.Offered() == 0 {
			return nil, nil
		}
		return e.ApplyShift(ctx, proposal.TargetBookingID, decision.Offered())
	default:
		return nil, &apperrors.NegotiationFailure{
			Kind:      apperrors.FailureRejected,
			BookingID: proposal.TargetBookingID,
			Shift:     proposal.RequestedShiftMinutes,
		}
	}
}

// ApplyShift moves a booking by minutes under its resource lock. The shifted
// interval is re-validated against every other booking on the resource; on
// a collision the booking keeps its original interval and the call fails
// with NegotiationFailure{SHIFT_CONFLICT}.
func (e *Engine) ApplyShift(ctx context.Context, bookingID string, minutes int) (*model.Booking, error) {
	if minutes == 0 {
		return nil, apperrors.InvalidInput("Shift must be non-zero")
	}

	target, err := e.store.Bookings().FindByID(ctx, bookingID)
	if err != nil {
		return nil, bookingError(err, bookingID)
	}

	release, err := e.locker.Lock(ctx, lock.ResourceKey(target.ResourceID))
	if err != nil {
		return nil, lockError(err)
	}
	defer release()

	var shifted *model.Booking
	err = e.store.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		booking, err := e.store.Bookings().FindByID(txCtx, bookingID)
		if err != nil {
			return bookingError(err, bookingID)
		}
		resource, err := e.store.Resources().FindByID(txCtx, booking.ResourceID)
		if err != nil {
			return apperrors.Internal("Failed to load resource of booking "+bookingID, err)
		}
		others, err := e.store.Bookings().FindByResource(txCtx, booking.ResourceID)
		if err != nil {
			return apperrors.Internal("Failed to load bookings", err)
		}

		original := booking.Interval()
		booking.SetInterval(original.Shift(minutes))

		if err := e.revalidate(resource, booking, others, minutes); err != nil {
			booking.SetInterval(original)
			e.cfg.Log.Warn("Shift reverted", "booking_id", bookingID, "shift", minutes, "error", err)
			return err
		}
		if err := e.store.Bookings().UpdateInterval(txCtx, bookingID, booking.Interval()); err != nil {
			booking.SetInterval(original)
			return apperrors.Internal("Failed to persist shift", err)
		}
		shifted = booking
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.cfg.Log.Info("Booking shifted",
		"booking_id", bookingID,
		"resource_id", shifted.ResourceID,
		"shift", minutes,
		"interval", shifted.Interval().String(),
	)
	return shifted, nil
}

func (e *Engine) revalidate(resource *model.Resource, booking *model.Booking, others []*model.Booking, minutes int) error {
	within, err := resource.WithinOperatingHours(booking.Interval())
	if err != nil {
		return apperrors.Internal("Invalid operating hours", err)
	}
	if !within {
		return apperrors.Validation("Shifted booking falls outside operating hours", map[string]any{
			"operating_start": resource.OperatingStart,
			"operating_end":   resource.OperatingEnd,
		})
	}

	result := availability.CheckExcluding(resource, booking.Interval(), booking.StudentCount, others, booking.ID)
	if result.Status == model.StatusAvailable {
		return nil
	}
	failure := &apperrors.NegotiationFailure{
		Kind:      apperrors.FailureShiftConflict,
		BookingID: booking.ID,
		Shift:     minutes,
	}
	if result.Conflict != nil {
		failure.Blocking = result.Conflict.ID
	}
	return failure
}

func bookingError(err error, id string) error {
	switch {
	case errors.Is(err, interrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, interrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid Booking ID format")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return apperrors.Internal(fmt.Sprintf("Failed to load booking %s", id), err)
	}
}

func lockError(err error) error {
	if errors.Is(err, interrors.ErrLockHeld) {
		return apperrors.Timeout("Resource is busy, please retry")
	}
	return apperrors.Internal("Failed to lock resource", err)
}
