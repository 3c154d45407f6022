package negotiation

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Bid is an immutable assignment of one value to every issue of a domain.
// The zero Bid means "no bid" and is never legal in any domain.
type Bid struct {
	values map[string]Value
}

// NewBid builds a bid from an issue->value map. The map is copied.
func NewBid(values map[string]Value) Bid {
	if len(values) == 0 {
		return Bid{}
	}
	cp := make(map[string]Value, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return Bid{values: cp}
}

// IsZero reports whether b is the "no bid" sentinel.
func (b Bid) IsZero() bool { return len(b.values) == 0 }

// Value returns the value assigned to issue.
func (b Bid) Value(issue string) (Value, bool) {
	v, ok := b.values[issue]
	return v, ok
}

// Issues returns the assigned issue names, sorted.
func (b Bid) Issues() []string {
	names := make([]string, 0, len(b.values))
	for k := range b.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Values returns a copy of the issue->value map.
func (b Bid) Values() map[string]Value {
	cp := make(map[string]Value, len(b.values))
	for k, v := range b.values {
		cp[k] = v
	}
	return cp
}

// With returns a new bid equal to b except that issue is set to v.
func (b Bid) With(issue string, v Value) Bid {
	cp := b.Values()
	cp[issue] = v
	return Bid{values: cp}
}

// Equal reports whether both bids assign the same values to the same issues.
func (b Bid) Equal(o Bid) bool {
	if len(b.values) != len(o.values) {
		return false
	}
	for k, v := range b.values {
		if ov, ok := o.values[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Key returns a canonical string for b, suitable as a map key.
func (b Bid) Key() string {
	var sb strings.Builder
	for i, k := range b.Issues() {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(strconv.Quote(k))
		sb.WriteByte('=')
		sb.WriteString(strconv.Quote(string(b.values[k])))
	}
	return sb.String()
}

func (b Bid) String() string {
	if b.IsZero() {
		return "Bid{}"
	}
	var sb strings.Builder
	sb.WriteString("Bid{")
	for i, k := range b.Issues() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(string(b.values[k]))
	}
	sb.WriteByte('}')
	return sb.String()
}

type bidJSON struct {
	IssueValues map[string]Value `json:"issuevalues"`
}

// MarshalJSON encodes the bid as {"issuevalues":{...}}; the zero bid is null.
func (b Bid) MarshalJSON() ([]byte, error) {
	if b.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(bidJSON{IssueValues: b.values})
}

// UnmarshalJSON decodes {"issuevalues":{...}} or null.
func (b *Bid) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = Bid{}
		return nil
	}
	var raw bidJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = NewBid(raw.IssueValues)
	return nil
}
