package negotiation

import (
	"encoding/json"
	"fmt"
)

// PartyID identifies a negotiation participant.
type PartyID string

// ActionType distinguishes the two actions of the alternating-offers protocol.
type ActionType string

const (
	ActionOffer  ActionType = "offer"
	ActionAccept ActionType = "accept"
)

// Action is either an offer of a bid or the acceptance of the counterpart's
// last offered bid.
type Action struct {
	Type  ActionType `json:"type"`
	Actor PartyID    `json:"actor"`
	Bid   Bid        `json:"bid"`
}

// NewOffer creates an offer action.
func NewOffer(actor PartyID, b Bid) *Action {
	return &Action{Type: ActionOffer, Actor: actor, Bid: b}
}

// NewAccept creates an accept action.
func NewAccept(actor PartyID, b Bid) *Action {
	return &Action{Type: ActionAccept, Actor: actor, Bid: b}
}

func (a Action) String() string {
	return fmt.Sprintf("%s(%s, %s)", a.Type, a.Actor, a.Bid)
}

// UnmarshalJSON decodes an action and rejects unknown types or missing bids.
func (a *Action) UnmarshalJSON(data []byte) error {
	type plain Action
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	switch p.Type {
	case ActionOffer, ActionAccept:
	default:
		return fmt.Errorf("unknown action type %q", p.Type)
	}
	if p.Bid.IsZero() {
		return fmt.Errorf("%s action without bid", p.Type)
	}
	*a = Action(p)
	return nil
}
