package model

type DecisionKind string

const (
	DecisionAccept  DecisionKind = "ACCEPT"
	DecisionReject  DecisionKind = "REJECT"
	DecisionCounter DecisionKind = "COUNTER"
)

type NegotiationState string

const (
	StateProposed  NegotiationState = "PROPOSED"
	StateAccepted  NegotiationState = "ACCEPTED"
	StateRejected  NegotiationState = "REJECTED"
	StateCountered NegotiationState = "COUNTERED"
)

// Proposal asks the owner of TargetBookingID to move it by
// RequestedShiftMinutes (positive is later). It lives only as long as the
// negotiation that carries it.
type Proposal struct {
	TargetBookingID       string `json:"target_booking_id" validate:"required"`
	RequestedShiftMinutes int    `json:"requested_shift_minutes" validate:"required,ne=0"`
	RequesterReputation   int    `json:"requester_reputation"`
	Justification         string `json:"justification,omitempty" validate:"omitempty,max=2000"`
}

type Decision struct {
	Kind                DecisionKind `json:"decision"`
	OfferedShiftMinutes *int         `json:"offered_shift_minutes,omitempty"`
}

func Accept() Decision {
	return Decision{Kind: DecisionAccept}
}

func Reject() Decision {
	return Decision{Kind: DecisionReject}
}

func Counter(offered int) Decision {
	return Decision{Kind: DecisionCounter, OfferedShiftMinutes: &offered}
}

// State maps a decision to the terminal negotiation state it produces.
func (d Decision) State() NegotiationState {
	switch d.Kind {
	case DecisionAccept:
		return StateAccepted
	case DecisionReject:
		return StateRejected
	case DecisionCounter:
		return StateCountered
	default:
		return StateProposed
	}
}

// Offered returns the counter-offered shift, or 0 when the decision carries none.
func (d Decision) Offered() int {
	if d.OfferedShiftMinutes == nil {
		return 0
	}
	return *d.OfferedShiftMinutes
}
