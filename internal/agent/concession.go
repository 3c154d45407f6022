package agent

import "github.com/freeeve/negotiator/pkg/negotiation"

// Concession is a linear time-dependent acceptance schedule that moves
// from High at t=0 to Low at t=1.
type Concession struct {
	Low  float64
	High float64
}

// Threshold returns Low + (1-t)(High-Low), with t clamped to [0,1].
func (c Concession) Threshold(t float64) float64 {
	switch {
	case t < 0:
		t = 0
	case t > 1:
		t = 1
	}
	return c.Low + (1-t)*(c.High-c.Low)
}

// Tighten moves the threshold toward the utility of the bid we are about
// to offer. Utilities at or above High pin it to High, at or below Low pin
// it to Low; in between it slides from bidUtil toward Low as round
// approaches total. Without rounds pass round=0, total=1.
func (c Concession) Tighten(bidUtil float64, round, total int) float64 {
	switch {
	case bidUtil >= c.High:
		return c.High
	case bidUtil <= c.Low:
		return c.Low
	}
	if total <= 0 {
		total = 1
	}
	return bidUtil - (bidUtil-c.Low)*float64(round)/float64(total)
}

// Acceptable reports whether a received bid with the given utility clears
// the threshold. The zero bid (nothing received yet) is never acceptable.
func Acceptable(b negotiation.Bid, utility, threshold float64) bool {
	if b.IsZero() {
		return false
	}
	return utility > threshold
}
