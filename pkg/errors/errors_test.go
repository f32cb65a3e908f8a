package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name: "without underlying error",
			appErr: &AppError{
				Code:    CodeNotFound,
				Message: "resource not found",
			},
			expected: "NOT_FOUND: resource not found",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodeInternal,
				Message: "internal error",
				Err:     errors.New("database connection failed"),
			},
			expected: "INTERNAL_ERROR: internal error (caused by: database connection failed)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appErr.Error(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestAsAppError_DomainErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{
			name:       "capacity conflict",
			err:        &ConflictError{Kind: ConflictCapacity, ResourceName: "AI Lab", Capacity: 20, Requested: 25},
			wantCode:   CodeConflict,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "wrapped rigid conflict",
			err:        fmt.Errorf("commit: %w", &ConflictError{Kind: ConflictRigid, ResourceName: "AI Lab", Owner: "alice"}),
			wantCode:   CodeConflict,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "permission denied",
			err:        &PermissionError{Actor: "bob", Owner: "alice", Action: "cancel"},
			wantCode:   CodePermissionDenied,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "shift conflict",
			err:        &NegotiationFailure{Kind: FailureShiftConflict, BookingID: "b1", Shift: 15, Blocking: "b2"},
			wantCode:   CodeNegotiationFailed,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "deadline exceeded",
			err:        fmt.Errorf("lock: %w", context.DeadlineExceeded),
			wantCode:   CodeTimeout,
			wantStatus: http.StatusGatewayTimeout,
		},
		{
			name:       "plain error",
			err:        errors.New("boom"),
			wantCode:   CodeInternal,
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := AsAppError(tt.err)
			if appErr.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, appErr.Code)
			}
			if appErr.StatusCode() != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, appErr.StatusCode())
			}
		})
	}
}

func TestPermissionError_NamesBothParties(t *testing.T) {
	err := &PermissionError{Actor: "bob", Owner: "alice", Action: "cancel"}
	msg := err.Error()
	for _, want := range []string{"bob", "alice"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}
	details := err.AppError().Details
	if details["actor"] != "bob" || details["owner"] != "alice" {
		t.Errorf("unexpected details: %v", details)
	}
}

func TestConflictError_OwnBookingMessage(t *testing.T) {
	err := &ConflictError{Kind: ConflictRigid, ResourceName: "AI Lab", Owner: "alice", OwnBooking: true}
	if !strings.Contains(err.Error(), "already booked") {
		t.Errorf("unexpected message: %s", err.Error())
	}
	if !IsConflict(err, ConflictRigid) || IsConflict(err, ConflictCapacity) {
		t.Error("conflict kind predicate mismatch")
	}
}
