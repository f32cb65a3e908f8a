package model

import (
	"time"
)

type Booking struct {
	ID                 string    `json:"id,omitempty" bson:"_id,omitempty"`
	ResourceID         string    `json:"resource_id" bson:"resource_id" validate:"required"`
	Owner              string    `json:"owner" bson:"owner" validate:"required,min=1,max=100"`
	Start              time.Time `json:"start" bson:"start" validate:"required"`
	End                time.Time `json:"end" bson:"end" validate:"required,gtfield=Start"`
	StudentCount       int       `json:"student_count" bson:"student_count" validate:"required,min=1"`
	FlexibilityMinutes int       `json:"flexibility_minutes" bson:"flexibility_minutes" validate:"min=0,max=1440"`
	Priority           int       `json:"priority" bson:"priority" validate:"min=0"`
	CreatedAt          time.Time `json:"created_at" bson:"created_at"`
}

func (b *Booking) Interval() Interval {
	return Interval{Start: b.Start, End: b.End}
}

func (b *Booking) SetInterval(i Interval) {
	b.Start = i.Start
	b.End = i.End
}

// Clone returns a copy safe to mutate without touching the snapshot it came from.
func (b *Booking) Clone() *Booking {
	c := *b
	return &c
}

// Schedule is a ranged snapshot of bookings grouped by resource name.
type Schedule map[string][]*Booking
