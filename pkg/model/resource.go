package model

import (
	"fmt"
	"time"
)

// Resource is a bookable lab. Name is unique across the catalog.
type Resource struct {
	ID             string    `json:"id,omitempty" bson:"_id,omitempty" yaml:"-"`
	Name           string    `json:"name" bson:"name" yaml:"name" validate:"required,min=2,max=100"`
	Capacity       int       `json:"capacity" bson:"capacity" yaml:"capacity" validate:"required,min=1,max=1000"`
	Equipment      []string  `json:"equipment,omitempty" bson:"equipment" yaml:"equipment" validate:"omitempty,max=50,equipment_tags"`
	Description    string    `json:"description,omitempty" bson:"description" yaml:"description" validate:"omitempty,max=1000"`
	OperatingStart string    `json:"operating_start,omitempty" bson:"operating_start,omitempty" yaml:"operating_start" validate:"omitempty,hhmm"`
	OperatingEnd   string    `json:"operating_end,omitempty" bson:"operating_end,omitempty" yaml:"operating_end" validate:"omitempty,hhmm"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at" yaml:"-"`
}

type ResourceUpdate struct {
	Name           string    `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Capacity       *int      `json:"capacity,omitempty" validate:"omitempty,min=1,max=1000"`
	Equipment      *[]string `json:"equipment,omitempty" validate:"omitempty,max=50,equipment_tags"`
	Description    *string   `json:"description,omitempty" validate:"omitempty,max=1000"`
	OperatingStart *string   `json:"operating_start,omitempty" validate:"omitempty,hhmm"`
	OperatingEnd   *string   `json:"operating_end,omitempty" validate:"omitempty,hhmm"`
}

func (r *Resource) HasOperatingHours() bool {
	return r.OperatingStart != "" && r.OperatingEnd != ""
}

// WithinOperatingHours reports whether the interval fits inside the daily
// operating window. Resources without a window accept any interval. An
// interval spanning midnight never fits a window.
func (r *Resource) WithinOperatingHours(i Interval) (bool, error) {
	if !r.HasOperatingHours() {
		return true, nil
	}
	open, err := ParseClock(r.OperatingStart)
	if err != nil {
		return false, fmt.Errorf("resource %s: invalid operating_start: %w", r.Name, err)
	}
	closing, err := ParseClock(r.OperatingEnd)
	if err != nil {
		return false, fmt.Errorf("resource %s: invalid operating_end: %w", r.Name, err)
	}
	start := i.Start.UTC()
	end := i.End.UTC()
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	if end.After(day.Add(24 * time.Hour)) {
		return false, nil
	}
	return !start.Before(day.Add(open)) && !end.After(day.Add(closing)), nil
}

// ParseClock parses "HH:MM" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
