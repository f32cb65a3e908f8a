package negotiation

import (
	"context"
	"testing"
	"time"

	"labbroker/internal/agent"
	"labbroker/internal/lock"
	"labbroker/internal/repository"
	"labbroker/internal/reputation"
	"labbroker/pkg/config"
	apperrors "labbroker/pkg/errors"
	"labbroker/pkg/logger"
	"labbroker/pkg/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

type fixture struct {
	engine   *Engine
	store    repository.Store
	tracker  reputation.Tracker
	resource *model.Resource
}

func newFixture(t *testing.T, resource *model.Resource) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	require.NoError(t, store.Resources().Create(context.Background(), resource))
	tracker := reputation.NewMemoryTracker(reputation.DefaultScore)
	cfg := &config.Config{Log: logger.Discard(), NegotiationThreshold: 8}
	return &fixture{
		engine:   NewEngine(store, lock.NewKeyedMutex(), tracker, nil, cfg),
		store:    store,
		tracker:  tracker,
		resource: resource,
	}
}

func (f *fixture) book(t *testing.T, owner string, start, end time.Time, flexibility int) *model.Booking {
	t.Helper()
	b := &model.Booking{
		ResourceID:         f.resource.ID,
		Owner:              owner,
		Start:              start,
		End:                end,
		StudentCount:       1,
		FlexibilityMinutes: flexibility,
	}
	require.NoError(t, f.store.Bookings().Create(context.Background(), b))
	return b
}

func (f *fixture) check(t *testing.T, interval model.Interval, n int) model.AvailabilityStatus {
	t.Helper()
	result, _, err := agent.New(f.resource, f.store).Check(context.Background(), interval, n)
	require.NoError(t, err)
	return result.Status
}

func TestEngine_AliceScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &model.Resource{Name: "AI Lab", Capacity: 30})
	alice := f.book(t, "alice", at(10, 0), at(11, 0), 20)

	request := model.NewInterval(at(10, 30), at(11, 30))
	result, _, err := agent.New(f.resource, f.store).Check(ctx, request, 5)
	require.NoError(t, err)
	require.Equal(t, model.StatusConflictRigid, result.Status)
	assert.Equal(t, "alice", result.Conflict.Owner)

	proposal, decision, err := f.engine.Propose(ctx, "bob", alice.ID, 15, "exam prep")
	require.NoError(t, err)
	assert.Equal(t, 10, proposal.RequesterReputation)
	require.Equal(t, model.DecisionAccept, decision.Kind)

	shifted, err := f.engine.Resolve(ctx, proposal, decision)
	require.NoError(t, err)
	assert.True(t, shifted.Start.Equal(at(10, 15)))
	assert.True(t, shifted.End.Equal(at(11, 15)))

	stored, err := f.store.Bookings().FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, shifted.Interval(), stored.Interval())

	// 10:15-11:15 still overlaps 10:30-11:30.
	assert.Equal(t, model.StatusConflictRigid, f.check(t, request, 5))
}

func TestEngine_ShiftClearsTouchingRequest(t *testing.T) {
	f := newFixture(t, &model.Resource{Name: "AI Lab", Capacity: 30})
	alice := f.book(t, "alice", at(10, 0), at(11, 0), 20)

	request := model.NewInterval(at(9, 15), at(10, 15))
	require.Equal(t, model.StatusConflictRigid, f.check(t, request, 5))

	_, err := f.engine.ApplyShift(context.Background(), alice.ID, 15)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAvailable, f.check(t, request, 5))
}

func TestEngine_ShiftConflictRevertsExactly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &model.Resource{Name: "AI Lab", Capacity: 30})
	alice := f.book(t, "alice", at(10, 0).Add(1500*time.Millisecond), at(11, 0), 60)
	bob := f.book(t, "bob", at(11, 30), at(12, 30), 0)

	before, err := f.store.Bookings().FindByID(ctx, alice.ID)
	require.NoError(t, err)

	_, err = f.engine.ApplyShift(ctx, alice.ID, 45)
	require.Error(t, err)
	assert.True(t, apperrors.IsNegotiationFailure(err, apperrors.FailureShiftConflict))

	var failure *apperrors.NegotiationFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, bob.ID, failure.Blocking)
	assert.Equal(t, 45, failure.Shift)

	after, err := f.store.Bookings().FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, apperrors.CodeNegotiationFailed, apperrors.AsAppError(err).Code)
}

func TestEngine_ShiftOutsideOperatingHours(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &model.Resource{Name: "AI Lab", Capacity: 30, OperatingStart: "08:00", OperatingEnd: "18:00"})
	late := f.book(t, "alice", at(17, 0), at(18, 0), 30)

	_, err := f.engine.ApplyShift(ctx, late.ID, 15)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	stored, err := f.store.Bookings().FindByID(ctx, late.ID)
	require.NoError(t, err)
	assert.True(t, stored.Start.Equal(at(17, 0)))
}

func TestEngine_CounterAppliesOfferedShift(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &model.Resource{Name: "AI Lab", Capacity: 30})
	alice := f.book(t, "alice", at(10, 0), at(11, 0), 20)

	proposal, decision, err := f.engine.Propose(ctx, "bob", alice.ID, 30, "")
	require.NoError(t, err)
	require.Equal(t, model.DecisionCounter, decision.Kind)
	assert.Equal(t, 20, decision.Offered())

	shifted, err := f.engine.Resolve(ctx, proposal, decision)
	require.NoError(t, err)
	assert.True(t, shifted.Start.Equal(at(10, 20)))
}

func TestEngine_LowReputationIsCountered(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &model.Resource{Name: "AI Lab", Capacity: 30})
	alice := f.book(t, "alice", at(10, 0), at(11, 0), 20)

	_, err := f.tracker.Adjust(ctx, "mallory", -5)
	require.NoError(t, err)

	proposal, decision, err := f.engine.Propose(ctx, "mallory", alice.ID, 15, "")
	require.NoError(t, err)
	assert.Equal(t, 5, proposal.RequesterReputation)
	assert.Equal(t, model.DecisionCounter, decision.Kind)
	assert.Equal(t, 10, decision.Offered())
}

func TestEngine_ZeroCounterMovesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &model.Resource{Name: "AI Lab", Capacity: 30})
	alice := f.book(t, "alice", at(10, 0), at(11, 0), 1)

	_, err := f.tracker.Adjust(ctx, "mallory", -5)
	require.NoError(t, err)

	proposal, decision, err := f.engine.Propose(ctx, "mallory", alice.ID, 1, "")
	require.NoError(t, err)
	require.Equal(t, model.DecisionCounter, decision.Kind)
	require.NotNil(t, decision.OfferedShiftMinutes)
	assert.Equal(t, 0, decision.Offered())

	shifted, err := f.engine.Resolve(ctx, proposal, decision)
	require.NoError(t, err)
	assert.Nil(t, shifted)

	stored, err := f.store.Bookings().FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, stored.Start.Equal(at(10, 0)))
	assert.True(t, stored.End.Equal(at(11, 0)))
}

func TestEngine_RejectDoesNotTouchBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &model.Resource{Name: "AI Lab", Capacity: 30})
	alice := f.book(t, "alice", at(10, 0), at(11, 0), 10)

	proposal, decision, err := f.engine.Propose(ctx, "bob", alice.ID, 60, "")
	require.NoError(t, err)
	require.Equal(t, model.DecisionReject, decision.Kind)

	_, err = f.engine.Resolve(ctx, proposal, decision)
	assert.True(t, apperrors.IsNegotiationFailure(err, apperrors.FailureRejected))

	stored, err := f.store.Bookings().FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, stored.Start.Equal(at(10, 0)))
}

func TestEngine_Errors(t *testing.T) {
	f := newFixture(t, &model.Resource{Name: "AI Lab", Capacity: 30})
	alice := f.book(t, "alice", at(10, 0), at(11, 0), 10)

	_, err := f.engine.ApplyShift(context.Background(), uuid.NewString(), 10)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = f.engine.ApplyShift(context.Background(), alice.ID, 0)
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.engine.Evaluate(context.Background(), model.Proposal{TargetBookingID: uuid.NewString(), RequestedShiftMinutes: 5})
	assert.True(t, apperrors.IsNotFound(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.engine.ApplyShift(ctx, alice.ID, 5)
	assert.ErrorIs(t, err, context.Canceled)

	stored, err := f.store.Bookings().FindByID(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.True(t, stored.Start.Equal(at(10, 0)))
}
