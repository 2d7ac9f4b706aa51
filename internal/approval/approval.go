// Package approval implements a two-party decision gate.
//
// The same gate backs both deal-terms approval and fund release: each
// party independently approves or rejects, the gate completes exactly
// once when both approve, and a mixed approve/reject pair shows as a
// conflict until the rejecting party relents or the deal restarts.
package approval

import "errors"

// Common errors
var (
	ErrAlreadyDecided = errors.New("party has already decided")
	ErrUnknownParty   = errors.New("party is not part of this gate")
)

// Status is one party's standing decision
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Outcome is the state of the gate as a whole
type Outcome string

const (
	OutcomeOpen     Outcome = "open"     // at least one party still waiting
	OutcomeComplete Outcome = "complete" // both approved
	OutcomeConflict Outcome = "conflict" // one approved, one rejected
)

// Party identifies a side of the gate
type Party string

const (
	PartyBuyer  Party = "buyer"
	PartySeller Party = "seller"
)

// Gate tracks both parties' decisions. It is a plain value embedded in a
// session; callers hold whatever lock guards the session.
type Gate struct {
	Buyer  Status `json:"buyer"`
	Seller Status `json:"seller"`
	Fired  bool   `json:"fired"` // completion side effect already ran
}

// NewGate returns a gate with both parties waiting
func NewGate() Gate {
	return Gate{Buyer: StatusWaiting, Seller: StatusWaiting}
}

// StatusOf returns one party's current decision
func (g *Gate) StatusOf(p Party) Status {
	if p == PartySeller {
		return g.Seller
	}
	return g.Buyer
}

// Decide records a party's approval or rejection. An approval is final:
// an approved party gets ErrAlreadyDecided and the gate is unchanged.
// A rejection is not; the rejecting party may still come back and
// approve, which is how a conflict resolves without a restart.
func (g *Gate) Decide(p Party, approve bool) error {
	status := StatusApproved
	if !approve {
		status = StatusRejected
	}

	switch p {
	case PartyBuyer:
		if g.Buyer == StatusApproved || g.Buyer == status {
			return ErrAlreadyDecided
		}
		g.Buyer = status
	case PartySeller:
		if g.Seller == StatusApproved || g.Seller == status {
			return ErrAlreadyDecided
		}
		g.Seller = status
	default:
		return ErrUnknownParty
	}

	return nil
}

// Outcome reports the gate's overall state
func (g *Gate) Outcome() Outcome {
	if g.Buyer == StatusWaiting || g.Seller == StatusWaiting {
		return OutcomeOpen
	}
	if g.Buyer == StatusApproved && g.Seller == StatusApproved {
		return OutcomeComplete
	}
	return OutcomeConflict
}

// TryFire reports whether the completion side effect should run now.
// It returns true exactly once, the first time it is called after both
// parties approved.
func (g *Gate) TryFire() bool {
	if g.Fired || g.Outcome() != OutcomeComplete {
		return false
	}
	g.Fired = true
	return true
}

// Reset returns the gate to its initial state. Used on deal restart.
func (g *Gate) Reset() {
	*g = NewGate()
}
