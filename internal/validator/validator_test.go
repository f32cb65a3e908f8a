package validator

import (
	"errors"
	"labbroker/pkg/logger"
	"labbroker/pkg/model"
	"strings"
	"testing"
)

func TestValidateResource(t *testing.T) {
	v := New(logger.Discard())

	tests := []struct {
		name      string
		resource  *model.Resource
		wantError string
	}{
		{
			name:     "valid",
			resource: &model.Resource{Name: "AI Lab", Capacity: 20, Equipment: []string{"GPU", "3D printer"}},
		},
		{
			name:     "valid with operating hours",
			resource: &model.Resource{Name: "AI Lab", Capacity: 20, OperatingStart: "08:00", OperatingEnd: "18:00"},
		},
		{
			name:      "zero capacity",
			resource:  &model.Resource{Name: "AI Lab"},
			wantError: "Capacity is required",
		},
		{
			name:      "bad clock",
			resource:  &model.Resource{Name: "AI Lab", Capacity: 1, OperatingStart: "8am", OperatingEnd: "18:00"},
			wantError: "HH:MM",
		},
		{
			name:      "half an operating window",
			resource:  &model.Resource{Name: "AI Lab", Capacity: 1, OperatingStart: "08:00"},
			wantError: "must be set together",
		},
		{
			name:      "inverted operating window",
			resource:  &model.Resource{Name: "AI Lab", Capacity: 1, OperatingStart: "18:00", OperatingEnd: "08:00"},
			wantError: "must be after operating_start",
		},
		{
			name:      "duplicate equipment",
			resource:  &model.Resource{Name: "AI Lab", Capacity: 1, Equipment: []string{"GPU", "gpu"}},
			wantError: "unique tags",
		},
		{
			name:      "blank equipment",
			resource:  &model.Resource{Name: "AI Lab", Capacity: 1, Equipment: []string{" "}},
			wantError: "unique tags",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateResource(tt.resource)
			if tt.wantError == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantError) {
				t.Fatalf("expected error containing %q, got %v", tt.wantError, err)
			}
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Errorf("expected ValidationErrors, got %T", err)
			}
		})
	}
}

func TestValidateRequest(t *testing.T) {
	v := New(logger.Discard())

	t.Run("defaults student count", func(t *testing.T) {
		req := &model.StructuredRequest{Date: "2025-03-10", StartTime: "10:00", EndTime: "11:00"}
		interval, err := v.ValidateRequest(req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.StudentCount != 1 {
			t.Errorf("expected default student count 1, got %d", req.StudentCount)
		}
		if interval.Duration().Hours() != 1 {
			t.Errorf("unexpected interval %s", interval)
		}
	})

	t.Run("end before start", func(t *testing.T) {
		req := &model.StructuredRequest{Date: "2025-03-10", StartTime: "11:00", EndTime: "10:00"}
		if _, err := v.ValidateRequest(req); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("bad date", func(t *testing.T) {
		req := &model.StructuredRequest{Date: "10/03/2025", StartTime: "10:00", EndTime: "11:00"}
		_, err := v.ValidateRequest(req)
		if err == nil || !strings.Contains(err.Error(), "YYYY-MM-DD") {
			t.Fatalf("expected date error, got %v", err)
		}
	})
}

func TestValidateProposal(t *testing.T) {
	v := New(logger.Discard())

	if err := v.ValidateProposal(&model.Proposal{TargetBookingID: "b1", RequestedShiftMinutes: -15}); err != nil {
		t.Errorf("negative shift should be valid: %v", err)
	}
	if err := v.ValidateProposal(&model.Proposal{TargetBookingID: "b1"}); err == nil {
		t.Error("zero shift should be rejected")
	}
}

func TestValidateRequester(t *testing.T) {
	v := New(logger.Discard())

	if err := v.ValidateRequester(&model.Requester{Username: "alice", Role: model.RoleFaculty}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := v.ValidateRequester(&model.Requester{Username: "alice", Role: "janitor"}); err == nil {
		t.Error("unknown role should be rejected")
	}
}
