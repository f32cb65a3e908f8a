package coordinator

import (
	"context"
	"errors"
	"math"
	"time"

	"labbroker/internal/agent"
	"labbroker/internal/dispatch"
	"labbroker/internal/negotiation"
	"labbroker/internal/notify"
	"labbroker/internal/reputation"
	"labbroker/internal/scheduler"
	"labbroker/internal/validator"
	"labbroker/pkg/config"
	apperrors "labbroker/pkg/errors"
	"labbroker/pkg/model"
)

const (
	FlowAvailability     = "availability"
	FlowTextAvailability = "text_availability"
	FlowShift            = "shift"
	FlowBook             = "book"
	FlowCancel           = "cancel"

	// CooperationReward is credited to an owner who moves a booking.
	CooperationReward = 1
)

// ShiftOutcome reports a negotiation and the availability seen after it.
// Blocking is nil when the slot was already free.
type ShiftOutcome struct {
	ResourceName string                     `json:"resource_name,omitempty"`
	Blocking     *model.Booking             `json:"blocking_booking,omitempty"`
	Proposal     *model.Proposal            `json:"proposal,omitempty"`
	Decision     *model.Decision            `json:"decision,omitempty"`
	Shifted      *model.Booking             `json:"shifted_booking,omitempty"`
	Results      []model.AvailabilityResult `json:"results"`
}

type Dependencies struct {
	Extractor   IntentExtractor
	Validator   *validator.Validator
	Registry    *agent.Registry
	Dispatcher  *dispatch.Dispatcher
	Negotiation *negotiation.Engine
	Scheduler   *scheduler.Scheduler
	Reputation  reputation.Tracker
	Notifier    notify.Notifier
}

// Coordinator drives the user-facing workflows over the engine components.
type Coordinator struct {
	deps  Dependencies
	flows *Engine
	cfg   *config.Config
}

func New(deps Dependencies, cfg *config.Config) *Coordinator {
	if deps.Extractor == nil {
		deps.Extractor = JSONExtractor{}
	}
	c := &Coordinator{deps: deps, cfg: cfg}
	c.flows = NewEngine(
		NewFlow(FlowAvailability,
			NewStep("validate_request", c.validateRequest),
			NewStep("dispatch_query", c.dispatchQuery),
			NewStep("publish_results", c.publishResults),
		),
		NewFlow(FlowTextAvailability,
			NewStep("extract_intent", c.extractIntent),
			NewStep("validate_request", c.validateRequest),
			NewStep("dispatch_query", c.dispatchQuery),
			NewStep("publish_results", c.publishResults),
		),
		NewFlow(FlowShift,
			NewStep("validate_request", c.validateRequest),
			NewStep("require_lab", c.requireLab),
			NewStep("locate_blocking", c.locateBlocking),
			NewStep("negotiate", c.negotiate),
			NewStep("apply_decision", c.applyDecision),
			NewStep("dispatch_query", c.dispatchQuery),
			NewStep("publish_results", c.publishResults),
		),
		NewFlow(FlowBook,
			NewStep("validate_request", c.validateRequest),
			NewStep("require_lab", c.requireLab),
			NewStep("commit", c.commit),
		),
		NewFlow(FlowCancel,
			NewStep("cancel", c.cancel),
		),
	)
	return c
}

// Availability answers a structured availability query.
func (c *Coordinator) Availability(ctx context.Context, requester model.Requester, req model.StructuredRequest) ([]model.AvailabilityResult, error) {
	fc := NewFlowContext(ctx, requester)
	fc.Request = &req
	if err := c.run(FlowAvailability, fc); err != nil {
		return nil, err
	}
	return fc.Results, nil
}

// AvailabilityFromText extracts a request from free text and answers it.
func (c *Coordinator) AvailabilityFromText(ctx context.Context, requester model.Requester, text string) ([]model.AvailabilityResult, error) {
	fc := NewFlowContext(ctx, requester)
	fc.Text = text
	if err := c.run(FlowTextAvailability, fc); err != nil {
		return nil, err
	}
	return fc.Results, nil
}

// RequestShift negotiates with the owner of the booking blocking the
// requested slot. An agreed shift is applied, the owner is rewarded and the
// lab is queried again.
func (c *Coordinator) RequestShift(ctx context.Context, requester model.Requester, req model.ShiftRequest) (*ShiftOutcome, error) {
	fc := NewFlowContext(ctx, requester)
	fc.Request = &req.StructuredRequest
	fc.Justification = req.Justification
	fc.ShiftMinutes = req.ShiftMinutes
	fc.Shift = &ShiftOutcome{}
	if err := c.run(FlowShift, fc); err != nil {
		return nil, err
	}
	return fc.Shift, nil
}

func (c *Coordinator) Book(ctx context.Context, requester model.Requester, req model.BookingRequest) (*model.Booking, error) {
	fc := NewFlowContext(ctx, requester)
	fc.Request = &req.StructuredRequest
	fc.FlexibilityMinutes = req.FlexibilityMinutes
	if err := c.run(FlowBook, fc); err != nil {
		return nil, err
	}
	return fc.Booking, nil
}

func (c *Coordinator) Cancel(ctx context.Context, requester model.Requester, bookingID string) error {
	fc := NewFlowContext(ctx, requester)
	fc.BookingID = bookingID
	return c.run(FlowCancel, fc)
}

// run executes a flow and reports a failure to the requester as an error
// event. The returned error is the step's own error.
func (c *Coordinator) run(flow string, fc *FlowContext) error {
	err := c.flows.Run(flow, fc)
	if err == nil {
		return nil
	}

	var stepErr *StepError
	if errors.As(err, &stepErr) {
		c.cfg.Log.Warn("Flow failed", "flow", flow, "step", stepErr.Step, "requester", fc.Requester.Username, "error", stepErr.Err)
		err = stepErr.Err
	} else {
		c.cfg.Log.Error("Flow failed", "flow", flow, "error", err)
	}

	if fc.Ctx.Err() == nil && c.deps.Notifier != nil && fc.Requester.Username != "" {
		event := notify.NewEvent(model.EventError, fc.Requester.Username, apperrors.AsAppError(err).Message)
		if nerr := c.deps.Notifier.Notify(fc.Ctx, event); nerr != nil {
			c.cfg.Log.Warn("Failed to send error event", "requester", fc.Requester.Username, "error", nerr)
		}
	}
	return err
}

func (c *Coordinator) extractIntent(fc *FlowContext) error {
	req, err := c.deps.Extractor.Extract(fc.Ctx, fc.Text)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return apperrors.InvalidInput("Could not understand the request: " + err.Error())
	}
	fc.Request = req
	return nil
}

func (c *Coordinator) validateRequest(fc *FlowContext) error {
	if fc.Request == nil {
		return apperrors.InvalidInput("Request is required")
	}
	interval, err := c.deps.Validator.ValidateRequest(fc.Request)
	if err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return apperrors.Validation("Invalid request", verrs.Details())
		}
		return apperrors.Validation("Invalid request", map[string]any{"error": err.Error()})
	}
	if fc.FlexibilityMinutes < 0 {
		return apperrors.Validation("Invalid request", map[string]any{"flexibility_minutes": "must not be negative"})
	}
	if fc.ShiftMinutes < 0 || fc.ShiftMinutes > 1440 {
		return apperrors.Validation("Invalid request", map[string]any{"shift_minutes": "must be between 0 and 1440"})
	}
	fc.Interval = interval
	return nil
}

func (c *Coordinator) requireLab(fc *FlowContext) error {
	if fc.Request.LabName == "" {
		return apperrors.Validation("Invalid request", map[string]any{"lab_name": "is required"})
	}
	return nil
}

func (c *Coordinator) dispatchQuery(fc *FlowContext) error {
	results, err := c.deps.Dispatcher.Query(fc.Ctx, dispatch.Query{
		Interval:     fc.Interval,
		StudentCount: fc.Request.StudentCount,
		LabName:      fc.Request.LabName,
		Equipment:    fc.Request.Equipment,
	})
	if err != nil {
		return err
	}
	fc.Results = results
	if fc.Shift != nil {
		fc.Shift.Results = results
	}
	return nil
}

func (c *Coordinator) publishResults(fc *FlowContext) error {
	if c.deps.Notifier == nil {
		return nil
	}
	event := notify.NewEvent(model.EventAvailabilityResults, fc.Requester.Username, fc.Results)
	if err := c.deps.Notifier.Notify(fc.Ctx, event); err != nil {
		c.cfg.Log.Warn("Failed to publish availability results", "requester", fc.Requester.Username, "error", err)
	}
	return nil
}

func (c *Coordinator) locateBlocking(fc *FlowContext) error {
	a, err := c.deps.Registry.ByName(fc.Ctx, fc.Request.LabName)
	if err != nil {
		return err
	}
	result, resource, err := a.Check(fc.Ctx, fc.Interval, fc.Request.StudentCount)
	if err != nil {
		return err
	}
	fc.Shift.ResourceName = resource.Name
	switch result.Status {
	case model.StatusAvailable:
		return nil
	case model.StatusConflictRigid:
		if result.Conflict.Owner == fc.Requester.Username {
			return result.Err(resource, fc.Request.StudentCount, fc.Requester.Username)
		}
		fc.Shift.Blocking = result.Conflict
		return nil
	default:
		// Moving bookings cannot fix a capacity conflict.
		return result.Err(resource, fc.Request.StudentCount, fc.Requester.Username)
	}
}

func (c *Coordinator) negotiate(fc *FlowContext) error {
	blocking := fc.Shift.Blocking
	if blocking == nil {
		return nil
	}
	minutes := ClearingShift(blocking.Interval(), fc.Interval)
	if fc.ShiftMinutes > 0 {
		if minutes < 0 {
			minutes = -fc.ShiftMinutes
		} else {
			minutes = fc.ShiftMinutes
		}
	}
	proposal, decision, err := c.deps.Negotiation.Propose(fc.Ctx, fc.Requester.Username, blocking.ID, minutes, fc.Justification)
	if err != nil {
		return err
	}
	fc.Shift.Proposal = &proposal
	fc.Shift.Decision = &decision
	return nil
}

func (c *Coordinator) applyDecision(fc *FlowContext) error {
	if fc.Shift.Decision == nil {
		return nil
	}
	shifted, err := c.deps.Negotiation.Resolve(fc.Ctx, *fc.Shift.Proposal, *fc.Shift.Decision)
	if err != nil {
		return err
	}
	if shifted == nil {
		return nil
	}
	fc.Shift.Shifted = shifted

	score, err := c.deps.Reputation.Adjust(fc.Ctx, shifted.Owner, CooperationReward)
	if err != nil {
		c.cfg.Log.Warn("Failed to reward cooperating owner", "owner", shifted.Owner, "error", err)
	} else {
		c.cfg.Log.Info("Cooperating owner rewarded", "owner", shifted.Owner, "reputation", score)
	}
	c.deps.Scheduler.Announce(fc.Ctx, scheduler.ActionShifted, fc.Shift.ResourceName, shifted)
	return nil
}

func (c *Coordinator) commit(fc *FlowContext) error {
	booking, err := c.deps.Scheduler.Commit(fc.Ctx, scheduler.CommitRequest{
		Requester:          fc.Requester,
		ResourceName:       fc.Request.LabName,
		Interval:           fc.Interval,
		StudentCount:       fc.Request.StudentCount,
		FlexibilityMinutes: fc.FlexibilityMinutes,
	})
	if err != nil {
		return err
	}
	fc.Booking = booking
	return nil
}

func (c *Coordinator) cancel(fc *FlowContext) error {
	return c.deps.Scheduler.Cancel(fc.Ctx, fc.BookingID, fc.Requester)
}

// ClearingShift returns the smallest shift in minutes that moves blocking
// clear of wanted: later by wanted.End-blocking.Start or earlier by
// blocking.End-wanted.Start. Ties favour moving later.
func ClearingShift(blocking, wanted model.Interval) int {
	later := ceilMinutes(wanted.End.Sub(blocking.Start))
	earlier := ceilMinutes(blocking.End.Sub(wanted.Start))
	if earlier < later {
		return -earlier
	}
	return later
}

func ceilMinutes(d time.Duration) int {
	return int(math.Ceil(d.Minutes()))
}
