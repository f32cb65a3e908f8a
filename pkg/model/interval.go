package model

import (
	"fmt"
	"time"
)

// Interval is a half-open [Start, End) span in UTC.
type Interval struct {
	Start time.Time `json:"start" bson:"start"`
	End   time.Time `json:"end" bson:"end"`
}

func NewInterval(start, end time.Time) Interval {
	return Interval{Start: start.UTC(), End: end.UTC()}
}

func (i Interval) Validate() error {
	if i.Start.IsZero() || i.End.IsZero() {
		return fmt.Errorf("interval start and end are required")
	}
	if !i.End.After(i.Start) {
		return fmt.Errorf("interval end (%s) must be after start (%s)",
			i.End.Format(time.RFC3339), i.Start.Format(time.RFC3339))
	}
	return nil
}

// Overlaps reports whether the two intervals share any instant.
// Touching endpoints do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && i.End.After(other.Start)
}

func (i Interval) Shift(minutes int) Interval {
	d := time.Duration(minutes) * time.Minute
	return Interval{Start: i.Start.Add(d), End: i.End.Add(d)}
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

func (i Interval) String() string {
	return fmt.Sprintf("%s - %s", i.Start.Format(time.RFC3339), i.End.Format(time.RFC3339))
}
