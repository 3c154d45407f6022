package negotiation

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
)

// UtilitySpace maps a bid to a utility in [0,1]. It is the party's private
// preference oracle.
type UtilitySpace interface {
	Utility(b Bid) (float64, error)
}

// LinearAdditive is a utility space where a bid's utility is the weighted
// sum of per-issue value utilities.
type LinearAdditive struct {
	Name           string                       `json:"name"`
	Domain         Domain                       `json:"domain"`
	IssueWeights   map[string]float64           `json:"issueWeights"`
	ValueUtilities map[string]map[Value]float64 `json:"valueUtilities"`
	Reservation    float64                      `json:"reservation,omitempty"`
}

// Validate checks the domain, that every issue has a non-negative weight,
// that weights sum to 1 (within 1e-6) and that value utilities lie in [0,1].
func (p *LinearAdditive) Validate() error {
	if err := p.Domain.Validate(); err != nil {
		return err
	}
	var sum float64
	for _, is := range p.Domain.Issues {
		w, ok := p.IssueWeights[is.Name]
		if !ok {
			return fmt.Errorf("profile %q: missing weight for issue %q", p.Name, is.Name)
		}
		if w < 0 {
			return fmt.Errorf("profile %q: negative weight for issue %q", p.Name, is.Name)
		}
		sum += w
		for _, v := range is.Values {
			u := p.ValueUtilities[is.Name][v]
			if u < 0 || u > 1 {
				return fmt.Errorf("profile %q: utility %v for %s=%s outside [0,1]", p.Name, u, is.Name, v)
			}
		}
	}
	if math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("profile %q: issue weights sum to %v, want 1", p.Name, sum)
	}
	return nil
}

// Utility returns Σ weight(issue) × utility(issue, value). Missing value
// utilities count as 0. Bids outside the domain are rejected.
func (p *LinearAdditive) Utility(b Bid) (float64, error) {
	if !p.Domain.Contains(b) {
		return 0, fmt.Errorf("profile %q: bid %s not in domain %q", p.Name, b, p.Domain.Name)
	}
	var u float64
	for _, is := range p.Domain.Issues {
		v, _ := b.Value(is.Name)
		u += p.IssueWeights[is.Name] * p.ValueUtilities[is.Name][v]
	}
	return u, nil
}

// ReadProfile decodes and validates a LinearAdditive profile.
func ReadProfile(r io.Reader) (*LinearAdditive, error) {
	var p LinearAdditive
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadProfile reads a LinearAdditive profile from a JSON file.
func LoadProfile(path string) (*LinearAdditive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open profile: %w", err)
	}
	defer f.Close()
	return ReadProfile(f)
}
