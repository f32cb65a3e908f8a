package negotiation

import "labbroker/pkg/model"

// Policy decides how the owner of target answers a proposal. Implementations
// must be pure: no I/O and no mutation of target.
type Policy interface {
	Decide(target *model.Booking, proposal model.Proposal) model.Decision
}

// PolicyFunc lets a plain function serve as a Policy.
type PolicyFunc func(target *model.Booking, proposal model.Proposal) model.Decision

func (f PolicyFunc) Decide(target *model.Booking, proposal model.Proposal) model.Decision {
	return f(target, proposal)
}

// ThresholdPolicy treats the owner's flexibility F as a ceiling and the
// requester's reputation as the gate for offering it in full.
//
//	|R| > 2F                -> REJECT
//	|R| <= F and rep >= T   -> ACCEPT
//	rep >= T                -> COUNTER min(F, |R|)
//	otherwise               -> COUNTER F/2
//
// A counter keeps the direction of the request and may offer zero minutes.
type ThresholdPolicy struct {
	Threshold int
}

func (p ThresholdPolicy) Decide(target *model.Booking, proposal model.Proposal) model.Decision {
	flex := target.FlexibilityMinutes
	requested, sign := abs(proposal.RequestedShiftMinutes)
	trusted := proposal.RequesterReputation >= p.Threshold

	if requested > 2*flex {
		return model.Reject()
	}
	if requested <= flex && trusted {
		return model.Accept()
	}

	offered := flex / 2
	if trusted {
		offered = min(flex, requested)
	}
	return model.Counter(sign * offered)
}

func abs(n int) (int, int) {
	if n < 0 {
		return -n, -1
	}
	return n, 1
}
