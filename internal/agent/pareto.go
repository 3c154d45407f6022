package agent

import "github.com/freeeve/negotiator/pkg/negotiation"

// Candidate is a bid scored for both parties: our own utility and the
// estimated opponent utility.
type Candidate struct {
	Bid negotiation.Bid
	Own float64
	Opp float64
}

// ParetoFrontier returns the candidates not dominated by any other
// candidate. It sweeps the input once, keeping an accepted set: a candidate
// dominated by an accepted point is dropped, otherwise it is accepted and
// evicts the accepted points it dominates. O(n^2) in the worst case.
// Accepted points keep their input order.
func ParetoFrontier(candidates []Candidate) []Candidate {
	if len(candidates) == 0 {
		return nil
	}
	frontier := []Candidate{candidates[0]}
	for _, c := range candidates[1:] {
		dominated := false
		for _, p := range frontier {
			if dominates(p, c) {
				dominated = true
				break
			}
		}
		if dominated {
			continue
		}
		kept := frontier[:0]
		for _, p := range frontier {
			if !dominates(c, p) {
				kept = append(kept, p)
			}
		}
		frontier = append(kept, c)
	}
	return frontier
}

// dominates reports whether a is at least as good as b for both parties and
// strictly better for one.
func dominates(a, b Candidate) bool {
	if a.Own < b.Own || a.Opp < b.Opp {
		return false
	}
	return a.Own > b.Own || a.Opp > b.Opp
}

// NashPoint returns the Pareto-efficient candidate maximising Own×Opp.
// Ties go to the first maximiser in candidate order. It returns false only
// when there are no candidates.
func NashPoint(candidates []Candidate) (Candidate, bool) {
	frontier := ParetoFrontier(candidates)
	if len(frontier) == 0 {
		return Candidate{}, false
	}
	best := frontier[0]
	bestProduct := best.Own * best.Opp
	for _, c := range frontier[1:] {
		if p := c.Own * c.Opp; p > bestProduct {
			best, bestProduct = c, p
		}
	}
	return best, true
}
