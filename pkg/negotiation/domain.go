// Package negotiation holds the shared vocabulary of a bilateral negotiation:
// issues and their value domains, bids, utility spaces, clocks and the two
// actions a party can take.
package negotiation

import (
	"errors"
	"fmt"
)

// MaxBidSpace caps the number of bids a domain may enumerate.
const MaxBidSpace = 1 << 20

var (
	ErrEmptyDomain      = errors.New("domain has no issues")
	ErrEmptyBidSpace    = errors.New("domain has an empty bid space")
	ErrBidSpaceTooLarge = errors.New("domain bid space too large")
)

// Value is an opaque issue value. Values are compared by identity only;
// numeric values use their canonical decimal text.
type Value string

// Issue is a negotiable attribute with a finite, ordered value domain.
type Issue struct {
	Name   string  `json:"name"`
	Values []Value `json:"values"`
}

// Domain is the ordered set of issues that every bid must assign.
type Domain struct {
	Name   string  `json:"name"`
	Issues []Issue `json:"issues"`
}

// Validate checks that the domain has at least one issue, unique issue names,
// unique values per issue and a non-empty bid space no larger than MaxBidSpace.
func (d *Domain) Validate() error {
	if d == nil || len(d.Issues) == 0 {
		return ErrEmptyDomain
	}
	seen := make(map[string]bool, len(d.Issues))
	for _, is := range d.Issues {
		if is.Name == "" {
			return fmt.Errorf("domain %q: issue with empty name", d.Name)
		}
		if seen[is.Name] {
			return fmt.Errorf("domain %q: duplicate issue %q", d.Name, is.Name)
		}
		seen[is.Name] = true
		if len(is.Values) == 0 {
			return fmt.Errorf("issue %q: %w", is.Name, ErrEmptyBidSpace)
		}
		vals := make(map[Value]bool, len(is.Values))
		for _, v := range is.Values {
			if vals[v] {
				return fmt.Errorf("issue %q: duplicate value %q", is.Name, v)
			}
			vals[v] = true
		}
	}
	if d.Size() > MaxBidSpace {
		return fmt.Errorf("domain %q: %w", d.Name, ErrBidSpaceTooLarge)
	}
	return nil
}

// IssueNames returns the issue names in domain order.
func (d *Domain) IssueNames() []string {
	names := make([]string, len(d.Issues))
	for i, is := range d.Issues {
		names[i] = is.Name
	}
	return names
}

// Issue returns the issue with the given name.
func (d *Domain) Issue(name string) (Issue, bool) {
	for _, is := range d.Issues {
		if is.Name == name {
			return is, true
		}
	}
	return Issue{}, false
}

// Size returns the cardinality of the bid space. It saturates just above
// MaxBidSpace so oversized domains cannot overflow.
func (d *Domain) Size() int {
	if d == nil || len(d.Issues) == 0 {
		return 0
	}
	n := 1
	for _, is := range d.Issues {
		n *= len(is.Values)
		if n > MaxBidSpace {
			return MaxBidSpace + 1
		}
	}
	return n
}

// Contains reports whether b assigns exactly the domain's issues, each to a
// legal value.
func (d *Domain) Contains(b Bid) bool {
	if b.IsZero() || len(b.values) != len(d.Issues) {
		return false
	}
	for _, is := range d.Issues {
		v, ok := b.values[is.Name]
		if !ok || !is.has(v) {
			return false
		}
	}
	return true
}

func (is Issue) has(v Value) bool {
	for _, x := range is.Values {
		if x == v {
			return true
		}
	}
	return false
}

// Bids enumerates the full bid space in mixed-radix order, the last issue
// varying fastest. The domain must be valid.
func (d *Domain) Bids() []Bid {
	size := d.Size()
	if size == 0 || size > MaxBidSpace {
		return nil
	}
	bids := make([]Bid, 0, size)
	idx := make([]int, len(d.Issues))
	for {
		vals := make(map[string]Value, len(d.Issues))
		for i, is := range d.Issues {
			vals[is.Name] = is.Values[idx[i]]
		}
		bids = append(bids, Bid{values: vals})

		// Increment the odometer from the last issue.
		i := len(idx) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(d.Issues[i].Values) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return bids
		}
	}
}
