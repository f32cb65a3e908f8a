package coordinator

import (
	"context"
	"fmt"

	"labbroker/pkg/model"
)

// FlowContext carries one request through the steps of a flow. Each step
// reads what earlier steps produced and fills in its own part.
type FlowContext struct {
	Ctx       context.Context
	Requester model.Requester

	Text               string
	Request            *model.StructuredRequest
	Interval           model.Interval
	FlexibilityMinutes int
	Justification      string
	ShiftMinutes       int
	BookingID          string

	Results []model.AvailabilityResult
	Booking *model.Booking
	Shift   *ShiftOutcome
}

func NewFlowContext(ctx context.Context, requester model.Requester) *FlowContext {
	return &FlowContext{Ctx: ctx, Requester: requester}
}

type Step struct {
	Name    string
	Execute func(fc *FlowContext) error
}

func NewStep(name string, execute func(fc *FlowContext) error) *Step {
	return &Step{Name: name, Execute: execute}
}

type Flow struct {
	Name  string
	Steps []*Step
}

func NewFlow(name string, steps ...*Step) *Flow {
	return &Flow{Name: name, Steps: steps}
}

// StepError names the step that failed and keeps the cause inspectable with
// errors.Is and errors.As.
type StepError struct {
	Flow string
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s step failed: %v", e.Flow, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Engine runs named flows step by step. A step error or a cancelled context
// stops the flow.
type Engine struct {
	flows map[string]*Flow
}

func NewEngine(flows ...*Flow) *Engine {
	m := make(map[string]*Flow, len(flows))
	for _, f := range flows {
		m[f.Name] = f
	}
	return &Engine{flows: m}
}

func (e *Engine) Run(name string, fc *FlowContext) error {
	f, ok := e.flows[name]
	if !ok {
		return fmt.Errorf("unsupported flow: %v", name)
	}
	for _, step := range f.Steps {
		if err := fc.Ctx.Err(); err != nil {
			return &StepError{Flow: name, Step: step.Name, Err: err}
		}
		if err := step.Execute(fc); err != nil {
			return &StepError{Flow: name, Step: step.Name, Err: err}
		}
	}
	return nil
}
