package model

import (
	"fmt"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// StructuredRequest is what the intent extractor yields for a free-text query.
type StructuredRequest struct {
	Date         string   `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime    string   `json:"start_time" validate:"required,hhmm"`
	EndTime      string   `json:"end_time" validate:"required,hhmm"`
	StudentCount int      `json:"student_count" validate:"min=1,max=1000"`
	LabName      string   `json:"lab_name,omitempty" validate:"omitempty,max=100"`
	Equipment    []string `json:"equipment,omitempty" validate:"omitempty,max=20,equipment_tags"`
}

func (r *StructuredRequest) ApplyDefaults() {
	if r.StudentCount == 0 {
		r.StudentCount = 1
	}
}

// Interval resolves date and clock times into a UTC interval.
func (r *StructuredRequest) Interval() (Interval, error) {
	start, err := time.ParseInLocation(DateLayout+"T"+ClockLayout, r.Date+"T"+r.StartTime, time.UTC)
	if err != nil {
		return Interval{}, fmt.Errorf("invalid start: %w", err)
	}
	end, err := time.ParseInLocation(DateLayout+"T"+ClockLayout, r.Date+"T"+r.EndTime, time.UTC)
	if err != nil {
		return Interval{}, fmt.Errorf("invalid end: %w", err)
	}
	i := NewInterval(start, end)
	if err := i.Validate(); err != nil {
		return Interval{}, err
	}
	return i, nil
}

// BookingRequest is a structured request naming the lab to commit.
type BookingRequest struct {
	StructuredRequest
	FlexibilityMinutes int `json:"flexibility_minutes" validate:"min=0,max=1440"`
}

// ShiftRequest asks the coordinator to negotiate the named lab free for the
// requested slot.
type ShiftRequest struct {
	StructuredRequest
	Justification string `json:"justification,omitempty" validate:"omitempty,max=2000"`
	// ShiftMinutes asks for a shift of this size instead of the smallest
	// one that clears the slot. The direction is always the clearing one.
	ShiftMinutes int `json:"shift_minutes,omitempty" validate:"min=0,max=1440"`
}
