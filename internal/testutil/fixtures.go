// Package testutil provides shared fixtures for unit tests and helpers for
// integration tests that run against real Postgres and Redis instances.
package testutil

import (
	"fmt"

	"github.com/freeeve/negotiator/pkg/negotiation"
)

// OracleFunc adapts a function to negotiation.UtilitySpace.
type OracleFunc func(b negotiation.Bid) (float64, error)

func (f OracleFunc) Utility(b negotiation.Bid) (float64, error) { return f(b) }

// ColorSizeDomain returns color{red,blue} x size{S,M,L}, six bids.
func ColorSizeDomain() *negotiation.Domain {
	return &negotiation.Domain{
		Name: "color-size",
		Issues: []negotiation.Issue{
			{Name: "color", Values: []negotiation.Value{"red", "blue"}},
			{Name: "size", Values: []negotiation.Value{"S", "M", "L"}},
		},
	}
}

// EnumerationOracle gives the i-th bid of d's enumeration utility
// (i+1)/n, so utility increases strictly with enumeration order.
func EnumerationOracle(d *negotiation.Domain) OracleFunc {
	bids := d.Bids()
	rank := make(map[string]int, len(bids))
	for i, b := range bids {
		rank[b.Key()] = i
	}
	n := float64(len(bids))
	return func(b negotiation.Bid) (float64, error) {
		i, ok := rank[b.Key()]
		if !ok {
			return 0, fmt.Errorf("bid %s not in domain", b)
		}
		return float64(i+1) / n, nil
	}
}

// ConstOracle gives every bid the same utility.
func ConstOracle(u float64) OracleFunc {
	return func(negotiation.Bid) (float64, error) { return u, nil }
}

// Bid builds a bid assigning values to d's issues in order.
func Bid(d *negotiation.Domain, values ...string) negotiation.Bid {
	if len(values) != len(d.Issues) {
		panic(fmt.Sprintf("testutil.Bid: %d values for %d issues", len(values), len(d.Issues)))
	}
	m := make(map[string]negotiation.Value, len(values))
	for i, is := range d.Issues {
		m[is.Name] = negotiation.Value(values[i])
	}
	return negotiation.NewBid(m)
}

// LaptopDomain returns a three-issue domain of 27 bids.
func LaptopDomain() negotiation.Domain {
	return negotiation.Domain{
		Name: "laptop",
		Issues: []negotiation.Issue{
			{Name: "brand", Values: []negotiation.Value{"Dell", "Lenovo", "HP"}},
			{Name: "memory", Values: []negotiation.Value{"4", "8", "16"}},
			{Name: "disk", Values: []negotiation.Value{"256", "512", "1024"}},
		},
	}
}

// LaptopProfiles returns a buyer and a seller with opposed preferences on
// memory and disk and differing tastes in brand.
func LaptopProfiles() (buyer, seller *negotiation.LinearAdditive) {
	buyer = &negotiation.LinearAdditive{
		Name:   "buyer",
		Domain: LaptopDomain(),
		IssueWeights: map[string]float64{
			"brand": 0.2, "memory": 0.5, "disk": 0.3,
		},
		ValueUtilities: map[string]map[negotiation.Value]float64{
			"brand":  {"Dell": 1, "Lenovo": 0.6, "HP": 0.3},
			"memory": {"4": 0.1, "8": 0.5, "16": 1},
			"disk":   {"256": 0.2, "512": 0.6, "1024": 1},
		},
	}
	seller = &negotiation.LinearAdditive{
		Name:   "seller",
		Domain: LaptopDomain(),
		IssueWeights: map[string]float64{
			"brand": 0.4, "memory": 0.3, "disk": 0.3,
		},
		ValueUtilities: map[string]map[negotiation.Value]float64{
			"brand":  {"Dell": 0.3, "Lenovo": 0.7, "HP": 1},
			"memory": {"4": 1, "8": 0.7, "16": 0.2},
			"disk":   {"256": 1, "512": 0.6, "1024": 0.3},
		},
	}
	return buyer, seller
}
