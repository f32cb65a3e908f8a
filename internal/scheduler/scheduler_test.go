package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"labbroker/internal/lock"
	"labbroker/internal/notify"
	"labbroker/internal/repository"
	"labbroker/pkg/config"
	apperrors "labbroker/pkg/errors"
	"labbroker/pkg/logger"
	"labbroker/pkg/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	day     = time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC) // Wednesday
	alice   = model.Requester{Username: "alice", Email: "p.alice@uni.edu", Role: model.RoleFaculty}
	bob     = model.Requester{Username: "bob", Email: "b.bob@uni.edu", Role: model.RoleStaff}
	student = model.Requester{Username: "sam", Email: "s.sam@uni.edu", Role: model.RoleStudent}
	admin   = model.Requester{Username: "root", Role: model.RoleAdmin}
)

func span(fromHour, toHour int) model.Interval {
	return model.NewInterval(day.Add(time.Duration(fromHour)*time.Hour), day.Add(time.Duration(toHour)*time.Hour))
}

type recorder struct {
	mu     sync.Mutex
	events []model.Event
	err    error
}

func (r *recorder) Notify(_ context.Context, e model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recorder) ofType(t model.EventType) []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	scheduler *Scheduler
	store     repository.Store
	events    *recorder
	lab       *model.Resource
}

func newFixture(t *testing.T, lab *model.Resource) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	require.NoError(t, store.Resources().Create(context.Background(), lab))
	cfg := &config.Config{
		Log:             logger.Discard(),
		DefaultPriority: 3,
		PriorityTiers:   map[string]int{"P": 1, "B": 2},
	}
	events := &recorder{}
	s := New(store, lock.NewKeyedMutex(), events, cfg)
	s.now = func() time.Time { return day.Add(9 * time.Hour) }
	return &fixture{scheduler: s, store: store, events: events, lab: lab}
}

func (f *fixture) commit(req CommitRequest) (*model.Booking, error) {
	if req.ResourceName == "" {
		req.ResourceName = f.lab.Name
	}
	if req.StudentCount == 0 {
		req.StudentCount = 1
	}
	return f.scheduler.Commit(context.Background(), req)
}

func (f *fixture) bookings(t *testing.T) []*model.Booking {
	t.Helper()
	out, err := f.store.Bookings().FindByResource(context.Background(), f.lab.ID)
	require.NoError(t, err)
	return out
}

func TestCommit_Success(t *testing.T) {
	f := newFixture(t, &model.Resource{Name: "AI Lab", Capacity: 20})

	b, err := f.commit(CommitRequest{Requester: alice, ResourceName: "ai lab", Interval: span(10, 11), StudentCount: 5, FlexibilityMinutes: 15})
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, "alice", b.Owner)
	assert.Equal(t, f.lab.ID, b.ResourceID)
	assert.Equal(t, 1, b.Priority)
	assert.Equal(t, 15, b.FlexibilityMinutes)
	require.Len(t, f.bookings(t), 1)

	confirmations := f.events.ofType(model.EventBookingConfirmation)
	require.Len(t, confirmations, 1)
	assert.Equal(t, "alice", confirmations[0].Recipient)
	assert.Equal(t, ActionBooked, confirmations[0].Data.(Confirmation).Action)

	updates := f.events.ofType(model.EventScheduleUpdate)
	require.Len(t, updates, 1)
	assert.Empty(t, updates[0].Recipient)
	schedule := updates[0].Data.(model.Schedule)
	assert.Len(t, schedule["AI Lab"], 1)
}

func TestCommit_Errors(t *testing.T) {
	tests := []struct {
		name   string
		seed   []CommitRequest
		req    CommitRequest
		assert func(t *testing.T, err error)
	}{
		{
			name: "student may not commit",
			req:  CommitRequest{Requester: student, Interval: span(10, 11)},
			assert: func(t *testing.T, err error) {
				assert.True(t, apperrors.IsPermissionDenied(err))
				assert.Contains(t, err.Error(), "sam")
			},
		},
		{
			name: "capacity exceeded",
			req:  CommitRequest{Requester: alice, Interval: span(10, 11), StudentCount: 25},
			assert: func(t *testing.T, err error) {
				assert.True(t, apperrors.IsConflict(err, apperrors.ConflictCapacity))
			},
		},
		{
			name: "overlap names owner",
			seed: []CommitRequest{{Requester: alice, Interval: span(10, 11)}},
			req:  CommitRequest{Requester: bob, Interval: span(10, 12)},
			assert: func(t *testing.T, err error) {
				assert.True(t, apperrors.IsConflict(err, apperrors.ConflictRigid))
				assert.Contains(t, err.Error(), "alice")
			},
		},
		{
			name: "overlap with own booking",
			seed: []CommitRequest{{Requester: alice, Interval: span(10, 11)}},
			req:  CommitRequest{Requester: alice, Interval: span(10, 12)},
			assert: func(t *testing.T, err error) {
				var conflict *apperrors.ConflictError
				require.ErrorAs(t, err, &conflict)
				assert.True(t, conflict.OwnBooking)
				assert.Contains(t, err.Error(), "you have already booked")
			},
		},
		{
			name: "unknown resource",
			req:  CommitRequest{Requester: alice, ResourceName: "Physics Lab", Interval: span(10, 11)},
			assert: func(t *testing.T, err error) {
				assert.True(t, apperrors.IsNotFound(err))
			},
		},
		{
			name: "inverted interval",
			req:  CommitRequest{Requester: alice, Interval: model.NewInterval(day.Add(11*time.Hour), day.Add(10*time.Hour))},
			assert: func(t *testing.T, err error) {
				assert.True(t, apperrors.IsValidation(err))
			},
		},
		{
			name: "negative flexibility",
			req:  CommitRequest{Requester: alice, Interval: span(10, 11), FlexibilityMinutes: -5},
			assert: func(t *testing.T, err error) {
				assert.True(t, apperrors.IsValidation(err))
			},
		},
		{
			name: "outside operating hours",
			req:  CommitRequest{Requester: alice, Interval: span(18, 20)},
			assert: func(t *testing.T, err error) {
				assert.True(t, apperrors.IsValidation(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &model.Resource{Name: "AI Lab", Capacity: 20, OperatingStart: "08:00", OperatingEnd: "19:00"})
			for _, seed := range tt.seed {
				_, err := f.commit(seed)
				require.NoError(t, err)
			}
			before := len(f.bookings(t))

			_, err := f.commit(tt.req)
			require.Error(t, err)
			tt.assert(t, err)
			assert.Len(t, f.bookings(t), before)
		})
	}
}

func TestCommit_TouchingIntervalsBothSucceed(t *testing.T) {
	f := newFixture(t, &model.Resource{Name: "AI Lab", Capacity: 20})
	_, err := f.commit(CommitRequest{Requester: alice, Interval: span(10, 11)})
	require.NoError(t, err)
	_, err = f.commit(CommitRequest{Requester: bob, Interval: span(11, 12)})
	require.NoError(t, err)
	assert.Len(t, f.bookings(t), 2)
}

func TestCommit_ConcurrentOverlapsCommitOnce(t *testing.T) {
	f := newFixture(t, &model.Resource{Name: "AI Lab", Capacity: 20})

	const racers = 16
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			requester := model.Requester{Username: uuid.NewString(), Role: model.RoleFaculty}
			_, errs[i] = f.commit(CommitRequest{Requester: requester, Interval: span(10, 11)})
		}(i)
	}
	wg.Wait()

	var ok, rigid int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperrors.IsConflict(err, apperrors.ConflictRigid):
			rigid++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, racers-1, rigid)
	assert.Len(t, f.bookings(t), 1)
}

func TestCommit_CancelledContextLeavesNoBooking(t *testing.T) {
	f := newFixture(t, &model.Resource{Name: "AI Lab", Capacity: 20})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.scheduler.Commit(ctx, CommitRequest{Requester: alice, ResourceName: "AI Lab", Interval: span(10, 11), StudentCount: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, f.bookings(t))
	assert.Empty(t, f.events.ofType(model.EventBookingConfirmation))
}

func TestCommit_NotificationFailureKeepsBooking(t *testing.T) {
	f := newFixture(t, &model.Resource{Name: "AI Lab", Capacity: 20})
	f.events.err = errors.New("hub down")

	_, err := f.commit(CommitRequest{Requester: alice, Interval: span(10, 11)})
	require.NoError(t, err)
	assert.Len(t, f.bookings(t), 1)
}

func TestPriority(t *testing.T) {
	f := newFixture(t, &model.Resource{Name: "AI Lab", Capacity: 20})
	assert.Equal(t, 1, f.scheduler.Priority(alice))
	assert.Equal(t, 2, f.scheduler.Priority(bob))
	assert.Equal(t, 3, f.scheduler.Priority(admin))
	assert.Equal(t, 2, f.scheduler.Priority(model.Requester{Username: "x", Category: "b"}))
}

func TestCancel(t *testing.T) {
	tests := []struct {
		name    string
		actor   model.Requester
		wantErr func(error) bool
	}{
		{name: "owner", actor: alice},
		{name: "admin", actor: admin},
		{name: "other user", actor: bob, wantErr: apperrors.IsPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &model.Resource{Name: "AI Lab", Capacity: 20})
			b, err := f.commit(CommitRequest{Requester: alice, Interval: span(10, 11), StudentCount: 4})
			require.NoError(t, err)

			err = f.scheduler.Cancel(context.Background(), b.ID, tt.actor)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Empty(t, f.bookings(t))
				return
			}

			require.Error(t, err)
			assert.True(t, tt.wantErr(err))
			assert.Contains(t, err.Error(), tt.actor.Username)
			assert.Contains(t, err.Error(), "alice")

			stored, err := f.store.Bookings().FindByID(context.Background(), b.ID)
			require.NoError(t, err)
			assert.Equal(t, b, stored)
		})
	}
}

func TestCancel_NotFound(t *testing.T) {
	f := newFixture(t, &model.Resource{Name: "AI Lab", Capacity: 20})
	err := f.scheduler.Cancel(context.Background(), uuid.NewString(), alice)
	assert.True(t, apperrors.IsNotFound(err))
	err = f.scheduler.Cancel(context.Background(), "", alice)
	assert.True(t, apperrors.IsValidation(err))
}

func TestUpdateStudentCount(t *testing.T) {
	f := newFixture(t, &model.Resource{Name: "AI Lab", Capacity: 20})
	b, err := f.commit(CommitRequest{Requester: alice, Interval: span(10, 11), StudentCount: 4})
	require.NoError(t, err)
	ctx := context.Background()

	updated, err := f.scheduler.UpdateStudentCount(ctx, b.ID, alice, 12)
	require.NoError(t, err)
	assert.Equal(t, 12, updated.StudentCount)

	_, err = f.scheduler.UpdateStudentCount(ctx, b.ID, alice, 21)
	assert.True(t, apperrors.IsConflict(err, apperrors.ConflictCapacity))

	_, err = f.scheduler.UpdateStudentCount(ctx, b.ID, alice, 0)
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.scheduler.UpdateStudentCount(ctx, b.ID, bob, 5)
	assert.True(t, apperrors.IsPermissionDenied(err))

	stored, err := f.store.Bookings().FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, stored.StudentCount)
}

func TestScheduleForRange(t *testing.T) {
	f := newFixture(t, &model.Resource{Name: "AI Lab", Capacity: 20})
	require.NoError(t, f.store.Resources().Create(context.Background(), &model.Resource{Name: "Chem Lab", Capacity: 10}))

	_, err := f.commit(CommitRequest{Requester: alice, Interval: span(10, 11)})
	require.NoError(t, err)
	_, err = f.commit(CommitRequest{Requester: alice, Interval: model.NewInterval(day.AddDate(0, 0, 10), day.AddDate(0, 0, 10).Add(time.Hour))})
	require.NoError(t, err)

	schedule, err := f.scheduler.WeekSchedule(context.Background(), day)
	require.NoError(t, err)
	assert.Len(t, schedule["AI Lab"], 1)
	assert.Empty(t, schedule["Chem Lab"])
	assert.Contains(t, schedule, "Chem Lab")

	_, err = f.scheduler.ScheduleForRange(context.Background(), day, day)
	assert.True(t, apperrors.IsValidation(err))
}

func TestWeekStart(t *testing.T) {
	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		in   time.Time
		want time.Time
	}{
		{in: monday, want: monday},
		{in: monday.Add(13 * time.Hour), want: monday},
		{in: time.Date(2025, 3, 16, 23, 59, 0, 0, time.UTC), want: monday},
		{in: time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC), want: monday.AddDate(0, 0, 7)},
		{in: time.Date(2025, 3, 10, 0, 30, 0, 0, time.FixedZone("CET", 3600)), want: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WeekStart(tt.in), tt.in.String())
	}
}

var _ notify.Notifier = (*recorder)(nil)
