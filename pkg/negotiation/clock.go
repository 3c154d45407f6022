package negotiation

import "time"

// Clock reports negotiation progress. Time is normalised to [0,1]. Rounds
// reports discrete progress when the session is round based.
type Clock interface {
	Time() float64
	Rounds() (current, total int, ok bool)
}

// RoundClock is a deadline counted in rounds. The session host advances it
// once per turn; the decision core only reads it.
type RoundClock struct {
	current int
	total   int
}

// NewRoundClock creates a clock for a session of total rounds.
func NewRoundClock(total int) *RoundClock {
	if total < 1 {
		total = 1
	}
	return &RoundClock{total: total}
}

// Advance moves to the next round. It never passes the total.
func (c *RoundClock) Advance() {
	if c.current < c.total {
		c.current++
	}
}

// Time returns current/total.
func (c *RoundClock) Time() float64 {
	return float64(c.current) / float64(c.total)
}

// Rounds returns the current and total round counts.
func (c *RoundClock) Rounds() (int, int, bool) {
	return c.current, c.total, true
}

// Done reports whether the last round has been reached.
func (c *RoundClock) Done() bool { return c.current >= c.total }

// TimeClock is a wall-clock deadline.
type TimeClock struct {
	Start    time.Time
	Duration time.Duration
	Now      func() time.Time // defaults to time.Now
}

// NewTimeClock starts a deadline of d from now.
func NewTimeClock(d time.Duration) *TimeClock {
	return &TimeClock{Start: time.Now(), Duration: d}
}

// Time returns the elapsed fraction of the deadline, clamped to [0,1].
func (c *TimeClock) Time() float64 {
	if c.Duration <= 0 {
		return 1
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	t := float64(now().Sub(c.Start)) / float64(c.Duration)
	switch {
	case t < 0:
		return 0
	case t > 1:
		return 1
	}
	return t
}

// Rounds is not supported by a wall-clock deadline.
func (c *TimeClock) Rounds() (int, int, bool) { return 0, 0, false }
