package agent

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/freeeve/negotiator/pkg/negotiation"
)

var errNoNashPoint = errors.New("agent: no Nash point")

// Turn is the read-only view of negotiation state handed to a Strategy.
type Turn struct {
	Number       int     // 1-based count of our own turns
	Time         float64 // normalised elapsed time
	Round        int     // current round, or Number when the clock has no rounds
	TotalRounds  int     // 0 when the clock has no rounds
	Threshold    float64 // acceptance threshold before tightening
	LastReceived negotiation.Bid

	Domain   *negotiation.Domain
	Index    *BidIndex
	Opponent OpponentEstimator
	History  []negotiation.Bid
	Rand     *rand.Rand
}

// Strategy picks the bid to offer on a turn. An error makes the controller
// fall back to the best bid.
type Strategy interface {
	Name() string
	NextBid(t *Turn) (negotiation.Bid, error)
}

// StrategyForName returns the strategy registered under name. Unknown names
// get the concession strategy.
func StrategyForName(name string, s Settings) Strategy {
	switch name {
	case "accommodating":
		return AccommodatingStrategy{}
	case "hardliner":
		return HardlinerStrategy{}
	case "random":
		return RandomStrategy{}
	default:
		return ConcessionStrategy{EarlyRounds: s.EarlyRounds}
	}
}

// StrategyNames lists the names StrategyForName understands.
func StrategyNames() []string {
	return []string{"concession", "accommodating", "hardliner", "random"}
}

// --- ConcessionStrategy ---

// ConcessionStrategy opens with the best bid, walks down the ranking one
// bid per turn for EarlyRounds turns, then offers the Nash point of the
// estimated joint utility surface.
type ConcessionStrategy struct {
	EarlyRounds int
}

func (ConcessionStrategy) Name() string { return "concession" }

func (s ConcessionStrategy) NextBid(t *Turn) (negotiation.Bid, error) {
	if t.LastReceived.IsZero() && t.Number <= 1 {
		return t.Index.Best(), nil
	}
	if t.Number <= s.EarlyRounds {
		return t.Index.At(t.Number - 1), nil
	}

	entries := t.Index.Entries()
	candidates := make([]Candidate, len(entries))
	for i, e := range entries {
		candidates[i] = Candidate{Bid: e.Bid, Own: e.Utility, Opp: t.Opponent.EstimateUtility(e.Bid)}
	}
	nash, ok := NashPoint(candidates)
	if !ok {
		return negotiation.Bid{}, errNoNashPoint
	}
	return nash.Bid, nil
}

// --- AccommodatingStrategy ---

// AccommodatingStrategy picks a random bid we still find acceptable and then
// copies one issue value from a random past opponent proposal into it,
// signalling accommodation at a small cost in our own utility.
type AccommodatingStrategy struct{}

func (AccommodatingStrategy) Name() string { return "accommodating" }

func (AccommodatingStrategy) NextBid(t *Turn) (negotiation.Bid, error) {
	preferred := randomAbove(t)
	if len(t.History) == 0 {
		return preferred, nil
	}
	return Mutate(preferred, t.History, t.Domain.IssueNames(), t.Rand)
}

// Mutate returns a copy of base where one uniformly random issue takes the
// value that a uniformly random history bid assigns to it.
func Mutate(base negotiation.Bid, history []negotiation.Bid, issues []string, rng *rand.Rand) (negotiation.Bid, error) {
	if len(history) == 0 || len(issues) == 0 {
		return base, nil
	}
	donor := pick(rng, history)
	issue := pick(rng, issues)
	v, ok := donor.Value(issue)
	if !ok {
		return negotiation.Bid{}, fmt.Errorf("agent: history bid %s has no value for %q", donor, issue)
	}
	return base.With(issue, v), nil
}

// --- HardlinerStrategy ---

// HardlinerStrategy always offers the best bid.
type HardlinerStrategy struct{}

func (HardlinerStrategy) Name() string { return "hardliner" }

func (HardlinerStrategy) NextBid(t *Turn) (negotiation.Bid, error) {
	return t.Index.Best(), nil
}

// --- RandomStrategy ---

// RandomStrategy offers a uniformly random bid at or above the threshold.
type RandomStrategy struct{}

func (RandomStrategy) Name() string { return "random" }

func (RandomStrategy) NextBid(t *Turn) (negotiation.Bid, error) {
	return randomAbove(t), nil
}

// randomAbove draws from the bids meeting the threshold, or returns the best
// bid when none does.
func randomAbove(t *Turn) negotiation.Bid {
	above := t.Index.Above(t.Threshold)
	if len(above) == 0 {
		return t.Index.Best()
	}
	return pick(t.Rand, above).Bid
}
