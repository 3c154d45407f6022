package agent

import (
	"github.com/freeeve/negotiator/pkg/negotiation"
)

// Snapshot is a deep copy of a party's mutable decision state.
type Snapshot struct {
	Party        negotiation.PartyID `json:"party"`
	Phase        string              `json:"phase"`
	Strategy     string              `json:"strategy"`
	Turn         int                 `json:"turn"`
	Threshold    float64             `json:"threshold"`
	LastReceived negotiation.Bid     `json:"last_received"`
	LastOffer    negotiation.Bid     `json:"last_offer"`
	History      []negotiation.Bid   `json:"history"`
	Frequencies  []FrequencyEntry    `json:"frequencies"`
	Weights      map[string]float64  `json:"weights"`
}

// Snapshot captures the current state. It is safe to keep after further
// turns.
func (p *Party) Snapshot() Snapshot {
	s := Snapshot{
		Party:        p.self,
		Phase:        p.phase.String(),
		Strategy:     p.strategy.Name(),
		Turn:         p.turn,
		Threshold:    p.threshold,
		LastReceived: p.lastReceived,
		LastOffer:    p.lastOffer,
	}
	if p.model != nil {
		s.History = p.model.History()
		s.Frequencies = p.model.Table()
		s.Weights = p.model.Weights()
	}
	return s
}
