package model

type AvailabilityStatus string

const (
	StatusAvailable        AvailabilityStatus = "AVAILABLE"
	StatusConflictCapacity AvailabilityStatus = "CONFLICT_CAPACITY"
	StatusConflictRigid    AvailabilityStatus = "CONFLICT_RIGID"
	// StatusError marks a dispatcher element whose resource could not answer.
	StatusError AvailabilityStatus = "ERROR"
)

// AvailabilityResult is one element of an aggregated availability answer.
type AvailabilityResult struct {
	ResourceName string             `json:"resource_name"`
	Status       AvailabilityStatus `json:"status"`
	Interval     Interval           `json:"interval"`
	StudentCount int                `json:"student_count"`
	Owner        string             `json:"owner,omitempty"`
	Error        string             `json:"error,omitempty"`
}
