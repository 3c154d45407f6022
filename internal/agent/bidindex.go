package agent

import (
	"fmt"
	"sort"

	"github.com/freeeve/negotiator/pkg/negotiation"
)

// ScoredBid pairs a bid with our own utility for it.
type ScoredBid struct {
	Bid     negotiation.Bid
	Utility float64
}

// BidIndex caches our utility for every bid in the legal bid space, sorted
// by utility descending. It is immutable after construction and safe to
// share between readers.
type BidIndex struct {
	entries []ScoredBid
	rank    map[string]int // bid key -> rank
}

// BuildBidIndex enumerates the domain's bid space, queries the oracle once
// per bid and sorts the result. Ties keep enumeration order.
func BuildBidIndex(d *negotiation.Domain, oracle negotiation.UtilitySpace) (*BidIndex, error) {
	if oracle == nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, ErrNoOracle)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	bids := d.Bids()
	if len(bids) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, negotiation.ErrEmptyBidSpace)
	}

	entries := make([]ScoredBid, len(bids))
	for i, b := range bids {
		u, err := oracle.Utility(b)
		if err != nil {
			return nil, fmt.Errorf("%w: utility of %s: %w", ErrConfiguration, b, err)
		}
		if u < 0 || u > 1 {
			return nil, fmt.Errorf("%w: %w: %s has %v", ErrConfiguration, ErrInvalidUtility, b, u)
		}
		entries[i] = ScoredBid{Bid: b, Utility: u}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Utility > entries[j].Utility
	})

	rank := make(map[string]int, len(entries))
	for i, e := range entries {
		rank[e.Bid.Key()] = i
	}
	return &BidIndex{entries: entries, rank: rank}, nil
}

// Len returns the size of the bid space.
func (x *BidIndex) Len() int { return len(x.entries) }

// Best returns the bid with maximum utility.
func (x *BidIndex) Best() negotiation.Bid { return x.entries[0].Bid }

// At returns the bid at the given rank (0 is best). Out-of-range ranks are
// clamped to the valid range.
func (x *BidIndex) At(rank int) negotiation.Bid {
	return x.entries[x.clamp(rank)].Bid
}

// EntryAt returns the scored bid at the given rank, clamped like At.
func (x *BidIndex) EntryAt(rank int) ScoredBid {
	return x.entries[x.clamp(rank)]
}

func (x *BidIndex) clamp(rank int) int {
	switch {
	case rank < 0:
		return 0
	case rank >= len(x.entries):
		return len(x.entries) - 1
	}
	return rank
}

// UtilityOf returns the cached utility of b, or false if b is not a legal bid.
func (x *BidIndex) UtilityOf(b negotiation.Bid) (float64, bool) {
	r, ok := x.rank[b.Key()]
	if !ok || b.IsZero() {
		return 0, false
	}
	return x.entries[r].Utility, true
}

// Rank returns the rank of b, or -1 if b is not in the index.
func (x *BidIndex) Rank(b negotiation.Bid) int {
	if b.IsZero() {
		return -1
	}
	r, ok := x.rank[b.Key()]
	if !ok {
		return -1
	}
	return r
}

// Contains reports whether b is in the legal bid space.
func (x *BidIndex) Contains(b negotiation.Bid) bool { return x.Rank(b) >= 0 }

// WorstAcceptable returns the lowest-utility bid whose utility is still at
// least threshold, or Best if no bid qualifies.
func (x *BidIndex) WorstAcceptable(threshold float64) negotiation.Bid {
	n := x.countAbove(threshold)
	if n == 0 {
		return x.Best()
	}
	return x.entries[n-1].Bid
}

// Above returns every entry with utility at least threshold, best first.
func (x *BidIndex) Above(threshold float64) []ScoredBid {
	n := x.countAbove(threshold)
	out := make([]ScoredBid, n)
	copy(out, x.entries[:n])
	return out
}

// countAbove returns how many leading entries have utility >= threshold.
func (x *BidIndex) countAbove(threshold float64) int {
	return sort.Search(len(x.entries), func(i int) bool {
		return x.entries[i].Utility < threshold
	})
}

// Entries returns a copy of the whole index, best first.
func (x *BidIndex) Entries() []ScoredBid {
	out := make([]ScoredBid, len(x.entries))
	copy(out, x.entries)
	return out
}

// Worst returns the lowest utility in the bid space.
func (x *BidIndex) Worst() float64 {
	return x.entries[len(x.entries)-1].Utility
}
