package agent

import "github.com/freeeve/negotiator/pkg/negotiation"

// Event is an inbound notification from the session host. The set of
// events is closed: SessionStart, ProposalReceived, YourTurn and
// SessionFinished.
type Event interface {
	isEvent()
}

// SessionStart carries everything fixed for the session.
type SessionStart struct {
	Self   negotiation.PartyID
	Domain *negotiation.Domain
	Oracle negotiation.UtilitySpace
	Clock  negotiation.Clock
}

// ProposalReceived reports a bid offered by the counterpart.
type ProposalReceived struct {
	From negotiation.PartyID
	Bid  negotiation.Bid
}

// YourTurn asks the party for exactly one action.
type YourTurn struct{}

// SessionFinished reports the end of the session. Agreement is zero when
// no deal was reached.
type SessionFinished struct {
	Agreement negotiation.Bid
	Reason    string
}

func (SessionStart) isEvent()     {}
func (ProposalReceived) isEvent() {}
func (YourTurn) isEvent()         {}
func (SessionFinished) isEvent()  {}
