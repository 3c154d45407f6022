package agent

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/freeeve/negotiator/pkg/negotiation"
)

// OpponentEstimator guesses the counterpart's utility for a bid.
type OpponentEstimator interface {
	EstimateUtility(b negotiation.Bid) float64
}

// FrequencyEntry is one row of the frequency table.
type FrequencyEntry struct {
	Issue string            `json:"issue"`
	Value negotiation.Value `json:"value"`
	Count int               `json:"count"`
}

// FrequencyModel estimates opponent preferences from how often each issue
// value appears in the opponent's proposals. Counts only grow within a
// session. It is owned by a single Party and is not safe for concurrent use.
type FrequencyModel struct {
	domain   *negotiation.Domain
	exponent float64

	history []negotiation.Bid
	counts  map[string]map[negotiation.Value]int
	weights map[string]float64

	window       int
	chiThreshold float64
	weightStep   float64
}

// NewFrequencyModel creates an empty model with uniform issue weights.
func NewFrequencyModel(d *negotiation.Domain, s Settings) *FrequencyModel {
	m := &FrequencyModel{
		domain:       d,
		exponent:     s.FrequencyExponent,
		counts:       make(map[string]map[negotiation.Value]int, len(d.Issues)),
		weights:      make(map[string]float64, len(d.Issues)),
		window:       s.WeightWindow,
		chiThreshold: s.ChiThreshold,
		weightStep:   s.WeightStep,
	}
	for _, is := range d.Issues {
		m.counts[is.Name] = make(map[negotiation.Value]int)
		m.weights[is.Name] = 1 / float64(len(d.Issues))
	}
	return m
}

// Observe records a received proposal: it is appended to the history and
// every (issue, value) it assigns is counted. Issue weights are then
// re-estimated when a full pair of windows is available.
func (m *FrequencyModel) Observe(b negotiation.Bid) {
	m.history = append(m.history, b)
	for issue, v := range b.Values() {
		c, ok := m.counts[issue]
		if !ok {
			continue
		}
		c[v]++
	}
	m.reestimateWeights()
}

// Count returns how many observed proposals assigned v to issue.
func (m *FrequencyModel) Count(issue string, v negotiation.Value) int {
	return m.counts[issue][v]
}

// History returns the received proposals, oldest first.
func (m *FrequencyModel) History() []negotiation.Bid {
	out := make([]negotiation.Bid, len(m.history))
	copy(out, m.history)
	return out
}

// Len returns the number of observed proposals.
func (m *FrequencyModel) Len() int { return len(m.history) }

// Table returns the non-zero counts ordered by domain issue order, then
// value order.
func (m *FrequencyModel) Table() []FrequencyEntry {
	var out []FrequencyEntry
	for _, is := range m.domain.Issues {
		for _, v := range is.Values {
			if c := m.counts[is.Name][v]; c > 0 {
				out = append(out, FrequencyEntry{Issue: is.Name, Value: v, Count: c})
			}
		}
	}
	return out
}

// Weights returns a copy of the current issue weights.
func (m *FrequencyModel) Weights() map[string]float64 {
	out := make(map[string]float64, len(m.weights))
	for k, w := range m.weights {
		out[k] = w
	}
	return out
}

// desirability is the damped, Laplace-smoothed raw score of a value.
func (m *FrequencyModel) desirability(issue string, v negotiation.Value) float64 {
	return math.Pow(float64(m.counts[issue][v]+1), m.exponent)
}

// ValueScore returns the normalised desirability of v for issue, in (0,1].
func (m *FrequencyModel) ValueScore(issue string, v negotiation.Value) float64 {
	is, ok := m.domain.Issue(issue)
	if !ok {
		return 0
	}
	scores := make([]float64, len(is.Values))
	for i, x := range is.Values {
		scores[i] = m.desirability(issue, x)
	}
	return m.desirability(issue, v) / floats.Max(scores)
}

// EstimateUtility returns the weighted sum of the bid's value scores.
// It is recomputed from the current counts on every call.
func (m *FrequencyModel) EstimateUtility(b negotiation.Bid) float64 {
	var u float64
	for _, is := range m.domain.Issues {
		v, ok := b.Value(is.Name)
		if !ok {
			continue
		}
		u += m.weights[is.Name] * m.ValueScore(is.Name, v)
	}
	return u
}

// reestimateWeights compares the two most recent windows of k proposals.
// Issues whose value distribution shifted gain weight when the opponent has
// conceded overall and at least one issue stayed stable.
func (m *FrequencyModel) reestimateWeights() {
	k := m.window
	n := len(m.history)
	if k < 1 || n < 2*k || n%k != 0 {
		return
	}
	prev := m.history[n-2*k : n-k]
	curr := m.history[n-k:]

	var shifted []string
	stable := 0
	for _, is := range m.domain.Issues {
		if stat.ChiSquare(windowFrequencies(is, prev, k), windowFrequencies(is, curr, k)) > m.chiThreshold {
			shifted = append(shifted, is.Name)
		} else {
			stable++
		}
	}
	if stable == 0 || len(shifted) == 0 {
		return
	}
	if m.meanEstimate(curr) >= m.meanEstimate(prev) {
		return // no concession
	}

	for _, issue := range shifted {
		m.weights[issue] += m.weightStep
	}
	m.normalizeWeights()
}

func (m *FrequencyModel) meanEstimate(window []negotiation.Bid) float64 {
	est := make([]float64, len(window))
	for i, b := range window {
		est[i] = m.EstimateUtility(b)
	}
	return floats.Sum(est) / float64(len(est))
}

func (m *FrequencyModel) normalizeWeights() {
	w := make([]float64, len(m.domain.Issues))
	for i, is := range m.domain.Issues {
		w[i] = m.weights[is.Name]
	}
	sum := floats.Sum(w)
	if sum <= 0 {
		return
	}
	floats.Scale(1/sum, w)
	for i, is := range m.domain.Issues {
		m.weights[is.Name] = w[i]
	}
}

// windowFrequencies returns, per legal value of the issue, (1+count)/k over
// the window.
func windowFrequencies(is negotiation.Issue, window []negotiation.Bid, k int) []float64 {
	fr := make([]float64, len(is.Values))
	for i, v := range is.Values {
		c := 0
		for _, b := range window {
			if bv, ok := b.Value(is.Name); ok && bv == v {
				c++
			}
		}
		fr[i] = (1 + float64(c)) / float64(k)
	}
	return fr
}

// RandomEstimator assigns every bid a uniformly random opponent utility.
//
// Deprecated: it ignores everything the opponent has proposed. Use
// FrequencyModel.
type RandomEstimator struct {
	Rand *rand.Rand
}

// EstimateUtility returns a fresh random number in [0,1).
func (e RandomEstimator) EstimateUtility(negotiation.Bid) float64 {
	return e.Rand.Float64()
}
