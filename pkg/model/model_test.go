package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, minute int) time.Time {
	return time.Date(2025, 3, 10, hour, minute, 0, 0, time.UTC)
}

func TestInterval_Overlaps(t *testing.T) {
	base := NewInterval(at(10, 0), at(11, 0))

	tests := []struct {
		name  string
		other Interval
		want  bool
	}{
		{name: "identical", other: base, want: true},
		{name: "contained", other: NewInterval(at(10, 15), at(10, 45)), want: true},
		{name: "partial start", other: NewInterval(at(9, 30), at(10, 30)), want: true},
		{name: "partial end", other: NewInterval(at(10, 59), at(12, 0)), want: true},
		{name: "touching before", other: NewInterval(at(9, 0), at(10, 0)), want: false},
		{name: "touching after", other: NewInterval(at(11, 0), at(12, 0)), want: false},
		{name: "disjoint", other: NewInterval(at(13, 0), at(14, 0)), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Overlaps(tt.other))
			assert.Equal(t, tt.want, tt.other.Overlaps(base), "overlap must be symmetric")
		})
	}
}

func TestInterval_ShiftAndValidate(t *testing.T) {
	i := NewInterval(at(10, 0), at(11, 0))

	later := i.Shift(15)
	assert.Equal(t, at(10, 15), later.Start)
	assert.Equal(t, at(11, 15), later.End)
	assert.Equal(t, i, later.Shift(-15))
	assert.Equal(t, time.Hour, later.Duration())

	require.NoError(t, i.Validate())
	assert.Error(t, NewInterval(at(11, 0), at(10, 0)).Validate())
	assert.Error(t, NewInterval(at(10, 0), at(10, 0)).Validate())
	assert.Error(t, Interval{End: at(10, 0)}.Validate())
}

func TestNewInterval_NormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	i := NewInterval(time.Date(2025, 3, 10, 12, 0, 0, 0, loc), time.Date(2025, 3, 10, 13, 0, 0, 0, loc))
	assert.Equal(t, at(10, 0), i.Start)
	assert.Equal(t, time.UTC, i.Start.Location())
}

func TestResource_WithinOperatingHours(t *testing.T) {
	lab := &Resource{Name: "Chem Lab", OperatingStart: "08:00", OperatingEnd: "18:00"}

	tests := []struct {
		name     string
		resource *Resource
		interval Interval
		want     bool
		wantErr  bool
	}{
		{name: "inside", resource: lab, interval: NewInterval(at(9, 0), at(10, 0)), want: true},
		{name: "exactly the window", resource: lab, interval: NewInterval(at(8, 0), at(18, 0)), want: true},
		{name: "starts too early", resource: lab, interval: NewInterval(at(7, 30), at(9, 0)), want: false},
		{name: "ends too late", resource: lab, interval: NewInterval(at(17, 0), at(18, 30)), want: false},
		{name: "spans midnight", resource: lab, interval: NewInterval(at(17, 0), at(17, 0).Add(12*time.Hour)), want: false},
		{name: "no window", resource: &Resource{Name: "AI Lab"}, interval: NewInterval(at(2, 0), at(3, 0)), want: true},
		{name: "bad window", resource: &Resource{Name: "X", OperatingStart: "8am", OperatingEnd: "18:00"}, interval: NewInterval(at(9, 0), at(10, 0)), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.resource.WithinOperatingHours(tt.interval)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequester(t *testing.T) {
	tests := []struct {
		name      string
		requester Requester
		canCommit bool
		admin     bool
		category  string
	}{
		{name: "student", requester: Requester{Username: "s", Role: RoleStudent, Email: "s.doe@uni.edu"}, category: "S"},
		{name: "faculty from email", requester: Requester{Username: "p", Role: RoleFaculty, Email: "p.smith@uni.edu"}, canCommit: true, category: "P"},
		{name: "explicit category", requester: Requester{Username: "b", Role: RoleStaff, Category: "b"}, canCommit: true, category: "B"},
		{name: "admin", requester: Requester{Username: "root", Role: RoleAdmin}, canCommit: true, admin: true, category: ""},
		{name: "no role", requester: Requester{Username: "x"}, category: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.canCommit, tt.requester.CanCommit())
			assert.Equal(t, tt.admin, tt.requester.IsAdmin())
			assert.Equal(t, tt.category, tt.requester.CategoryCode())
		})
	}
}

func TestStructuredRequest_Interval(t *testing.T) {
	req := &StructuredRequest{Date: "2025-03-10", StartTime: "10:00", EndTime: "11:30"}
	req.ApplyDefaults()
	assert.Equal(t, 1, req.StudentCount)

	i, err := req.Interval()
	require.NoError(t, err)
	assert.Equal(t, at(10, 0), i.Start)
	assert.Equal(t, at(11, 30), i.End)

	_, err = (&StructuredRequest{Date: "2025-03-10", StartTime: "11:00", EndTime: "10:00"}).Interval()
	assert.Error(t, err)
	_, err = (&StructuredRequest{Date: "10/03/2025", StartTime: "10:00", EndTime: "11:00"}).Interval()
	assert.Error(t, err)
}

func TestDecision(t *testing.T) {
	assert.Equal(t, StateAccepted, Accept().State())
	assert.Equal(t, StateRejected, Reject().State())
	assert.Equal(t, StateProposed, Decision{}.State())

	counter := Counter(-15)
	assert.Equal(t, StateCountered, counter.State())
	assert.Equal(t, -15, counter.Offered())
	assert.Equal(t, 0, Accept().Offered())
}
