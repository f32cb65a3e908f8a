package coordinator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_RunsStepsInOrder(t *testing.T) {
	var order []string
	step := func(name string) *Step {
		return NewStep(name, func(*FlowContext) error {
			order = append(order, name)
			return nil
		})
	}
	engine := NewEngine(NewFlow("f", step("a"), step("b"), step("c")))

	require.NoError(t, engine.Run("f", NewFlowContext(context.Background(), admin)))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestEngine_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	var ran bool
	engine := NewEngine(NewFlow("f",
		NewStep("fail", func(*FlowContext) error { return boom }),
		NewStep("after", func(*FlowContext) error { ran = true; return nil }),
	))

	err := engine.Run("f", NewFlowContext(context.Background(), admin))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, ran)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "fail", stepErr.Step)
	assert.Equal(t, "f", stepErr.Flow)
}

func TestEngine_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var ran int
	engine := NewEngine(NewFlow("f",
		NewStep("first", func(*FlowContext) error { ran++; cancel(); return nil }),
		NewStep("second", func(*FlowContext) error { ran++; return nil }),
	))

	err := engine.Run("f", NewFlowContext(ctx, admin))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, ran)
}

func TestEngine_UnknownFlow(t *testing.T) {
	err := NewEngine().Run("missing", NewFlowContext(context.Background(), admin))
	assert.EqualError(t, err, "unsupported flow: missing")
}
