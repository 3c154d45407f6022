package agent

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/freeeve/negotiator/internal/testutil"
	"github.com/freeeve/negotiator/pkg/negotiation"
)

type strategyFunc func(t *Turn) (negotiation.Bid, error)

func (strategyFunc) Name() string                               { return "func" }
func (f strategyFunc) NextBid(t *Turn) (negotiation.Bid, error) { return f(t) }

func newTestParty(t *testing.T, s Settings, strategy Strategy) *Party {
	t.Helper()
	p, err := NewParty(s, strategy, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("new party: %v", err)
	}
	return p
}

func startColorSize(t *testing.T, p *Party, clock negotiation.Clock) *negotiation.Domain {
	t.Helper()
	d := testutil.ColorSizeDomain()
	ev := SessionStart{Self: "me", Domain: d, Oracle: testutil.EnumerationOracle(d), Clock: clock}
	if _, err := p.Handle(context.Background(), ev); err != nil {
		t.Fatalf("start: %v", err)
	}
	return d
}

func mustTurn(t *testing.T, p *Party) *negotiation.Action {
	t.Helper()
	a, err := p.Handle(context.Background(), YourTurn{})
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if a == nil {
		t.Fatal("turn produced no action")
	}
	return a
}

func receive(t *testing.T, p *Party, b negotiation.Bid) {
	t.Helper()
	if _, err := p.Handle(context.Background(), ProposalReceived{From: "them", Bid: b}); err != nil {
		t.Fatalf("receive %s: %v", b, err)
	}
}

func TestParty_FirstOfferAfterProposalIsBest(t *testing.T) {
	p := newTestParty(t, DefaultSettings(), nil)
	d := startColorSize(t, p, negotiation.NewRoundClock(10))
	receive(t, p, testutil.Bid(d, "red", "S"))

	a := mustTurn(t, p)
	if a.Type != negotiation.ActionOffer {
		t.Fatalf("expected offer, got %s", a)
	}
	if want := testutil.Bid(d, "blue", "L"); !a.Bid.Equal(want) {
		t.Errorf("expected %s, got %s", want, a.Bid)
	}
	if a.Actor != "me" {
		t.Errorf("expected actor me, got %s", a.Actor)
	}
}

func TestParty_FirstTurnNeverAccepts(t *testing.T) {
	s := DefaultSettings()
	s.ThresholdLow, s.ThresholdHigh = 0, 0
	p := newTestParty(t, s, nil)
	d := startColorSize(t, p, negotiation.NewRoundClock(10))

	a := mustTurn(t, p)
	if a.Type != negotiation.ActionOffer {
		t.Fatalf("expected offer on the first turn, got %s", a)
	}
	if want := testutil.Bid(d, "blue", "L"); !a.Bid.Equal(want) {
		t.Errorf("expected best bid, got %s", a.Bid)
	}
}

func TestParty_AcceptsAboveThreshold(t *testing.T) {
	s := DefaultSettings()
	s.TightenThreshold = false
	clock := negotiation.NewRoundClock(1)
	clock.Advance() // t = 1, threshold = low

	tests := []struct {
		color, size string
		accept      bool
	}{
		{"blue", "L", true},  // 1.0
		{"blue", "M", true},  // 0.83
		{"blue", "S", false}, // 0.67
		{"red", "L", false},  // 0.5
	}
	for _, tt := range tests {
		p := newTestParty(t, s, nil)
		d := startColorSize(t, p, clock)
		b := testutil.Bid(d, tt.color, tt.size)
		receive(t, p, b)

		a := mustTurn(t, p)
		if got := a.Type == negotiation.ActionAccept; got != tt.accept {
			t.Errorf("(%s,%s): expected accept=%v, got %s", tt.color, tt.size, tt.accept, a)
		}
		if a.Type == negotiation.ActionAccept && !a.Bid.Equal(b) {
			t.Errorf("accept must name the received bid, got %s", a.Bid)
		}
		if math.Abs(p.Threshold()-0.7) > 1e-12 {
			t.Errorf("expected threshold 0.7, got %v", p.Threshold())
		}
	}
}

func TestParty_TightensTowardChosenBid(t *testing.T) {
	d := testutil.ColorSizeDomain()
	clock := negotiation.NewRoundClock(10)
	for i := 0; i < 5; i++ {
		clock.Advance()
	}

	tests := []struct {
		name string
		bid  negotiation.Bid
		want float64
	}{
		{"best pins high", testutil.Bid(d, "blue", "L"), 1.0},
		{"weak pins low", testutil.Bid(d, "red", "L"), 0.7},
		{"interpolates", testutil.Bid(d, "blue", "M"), 5.0/6 - (5.0/6-0.7)*0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bid := tt.bid
			p := newTestParty(t, DefaultSettings(), strategyFunc(func(*Turn) (negotiation.Bid, error) { return bid, nil }))
			startColorSize(t, p, clock)
			a := mustTurn(t, p)
			if !a.Bid.Equal(bid) {
				t.Errorf("expected offer %s, got %s", bid, a.Bid)
			}
			if math.Abs(p.Threshold()-tt.want) > 1e-9 {
				t.Errorf("expected threshold %v, got %v", tt.want, p.Threshold())
			}
		})
	}
}

func TestParty_TimeClock(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &negotiation.TimeClock{Start: start, Duration: time.Minute, Now: func() time.Time { return start.Add(30 * time.Second) }}

	var seen *Turn
	p := newTestParty(t, DefaultSettings(), strategyFunc(func(turn *Turn) (negotiation.Bid, error) {
		seen = turn
		return turn.Index.Best(), nil
	}))
	startColorSize(t, p, clock)
	mustTurn(t, p)
	mustTurn(t, p)

	if seen.Time != 0.5 {
		t.Errorf("expected time 0.5, got %v", seen.Time)
	}
	if seen.Round != 2 || seen.TotalRounds != 0 {
		t.Errorf("expected round 2 of 0 without a round clock, got %d of %d", seen.Round, seen.TotalRounds)
	}
	if math.Abs(seen.Threshold-0.85) > 1e-12 {
		t.Errorf("expected pre-tighten threshold 0.85, got %v", seen.Threshold)
	}
}

func TestParty_FallsBackToBest(t *testing.T) {
	d := testutil.ColorSizeDomain()
	tests := []struct {
		name     string
		strategy Strategy
	}{
		{"error", strategyFunc(func(*Turn) (negotiation.Bid, error) { return negotiation.Bid{}, errors.New("boom") })},
		{"zero bid", strategyFunc(func(*Turn) (negotiation.Bid, error) { return negotiation.Bid{}, nil })},
		{"illegal bid", strategyFunc(func(*Turn) (negotiation.Bid, error) {
			return negotiation.NewBid(map[string]negotiation.Value{"color": "green", "size": "S"}), nil
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestParty(t, DefaultSettings(), tt.strategy)
			startColorSize(t, p, negotiation.NewRoundClock(10))
			receive(t, p, testutil.Bid(d, "red", "S"))
			a := mustTurn(t, p)
			if a.Type != negotiation.ActionOffer || !a.Bid.Equal(testutil.Bid(d, "blue", "L")) {
				t.Errorf("expected fallback offer of the best bid, got %s", a)
			}
		})
	}
}

func TestParty_LifecycleErrors(t *testing.T) {
	ctx := context.Background()
	p := newTestParty(t, DefaultSettings(), nil)

	if p.Phase() != AwaitingFirstTurn {
		t.Fatalf("expected %s, got %s", AwaitingFirstTurn, p.Phase())
	}
	if a, err := p.Handle(ctx, YourTurn{}); !errors.Is(err, ErrNotStarted) || a != nil {
		t.Errorf("turn before start: expected ErrNotStarted and no action, got %v %v", a, err)
	}

	d := startColorSize(t, p, negotiation.NewRoundClock(10))
	if p.Phase() != Negotiating {
		t.Fatalf("expected %s, got %s", Negotiating, p.Phase())
	}
	if _, err := p.Handle(ctx, SessionStart{Self: "me", Domain: d, Oracle: testutil.ConstOracle(1), Clock: negotiation.NewRoundClock(1)}); !errors.Is(err, ErrProtocolViolation) {
		t.Errorf("second start: expected protocol violation, got %v", err)
	}
	foreign := negotiation.NewBid(map[string]negotiation.Value{"color": "green", "size": "S"})
	if _, err := p.Handle(ctx, ProposalReceived{From: "them", Bid: foreign}); !errors.Is(err, ErrProtocolViolation) {
		t.Errorf("foreign bid: expected protocol violation, got %v", err)
	}

	if _, err := p.Handle(ctx, SessionFinished{Reason: "deadline"}); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if p.Phase() != SessionEnded {
		t.Fatalf("expected %s, got %s", SessionEnded, p.Phase())
	}
	if a, err := p.Handle(ctx, YourTurn{}); !errors.Is(err, ErrSessionEnded) || a != nil {
		t.Errorf("turn after finish: expected ErrSessionEnded, got %v %v", a, err)
	}
	if _, err := p.Handle(ctx, SessionFinished{}); err != nil {
		t.Errorf("repeated finish should be a no-op, got %v", err)
	}
	if _, err := p.Handle(ctx, SessionStart{Self: "me", Domain: d, Oracle: testutil.ConstOracle(1), Clock: negotiation.NewRoundClock(1)}); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("start after finish: expected ErrSessionEnded, got %v", err)
	}
}

func TestParty_StartConfigurationErrors(t *testing.T) {
	d := testutil.ColorSizeDomain()
	tests := []struct {
		name string
		ev   SessionStart
		want error
	}{
		{"no oracle", SessionStart{Self: "me", Domain: d, Clock: negotiation.NewRoundClock(1)}, ErrNoOracle},
		{"no clock", SessionStart{Self: "me", Domain: d, Oracle: testutil.ConstOracle(1)}, ErrNoClock},
		{"empty domain", SessionStart{Self: "me", Domain: &negotiation.Domain{Name: "empty"}, Oracle: testutil.ConstOracle(1), Clock: negotiation.NewRoundClock(1)}, negotiation.ErrEmptyDomain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestParty(t, DefaultSettings(), nil)
			_, err := p.Handle(context.Background(), tt.ev)
			if !errors.Is(err, tt.want) || !errors.Is(err, ErrConfiguration) {
				t.Fatalf("expected configuration error %v, got %v", tt.want, err)
			}
			if p.Phase() != AwaitingFirstTurn {
				t.Errorf("failed start must not leave %s, got %s", AwaitingFirstTurn, p.Phase())
			}
		})
	}
}

func TestParty_InvalidSettings(t *testing.T) {
	s := DefaultSettings()
	s.ThresholdLow = 0.9
	s.ThresholdHigh = 0.5
	if _, err := NewParty(s, nil, nil); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestParty_RejectsOverlappingTurn(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	p := newTestParty(t, DefaultSettings(), strategyFunc(func(turn *Turn) (negotiation.Bid, error) {
		close(entered)
		<-release
		return turn.Index.Best(), nil
	}))
	startColorSize(t, p, negotiation.NewRoundClock(10))

	done := make(chan *negotiation.Action)
	go func() {
		a, _ := p.Handle(context.Background(), YourTurn{})
		done <- a
	}()
	<-entered

	a, err := p.Handle(context.Background(), YourTurn{})
	if !errors.Is(err, ErrTurnInProgress) || a != nil {
		t.Errorf("expected ErrTurnInProgress and no action, got %v %v", a, err)
	}
	close(release)
	if first := <-done; first == nil {
		t.Error("first turn should still produce its action")
	}
}

func TestParty_CancelledTurnEmitsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := newTestParty(t, DefaultSettings(), strategyFunc(func(turn *Turn) (negotiation.Bid, error) {
		cancel()
		return turn.Index.Best(), nil
	}))
	startColorSize(t, p, negotiation.NewRoundClock(10))

	a, err := p.Handle(ctx, YourTurn{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if a != nil {
		t.Errorf("cancelled turn emitted %s", a)
	}
}

func TestParty_IgnoresOwnProposals(t *testing.T) {
	p := newTestParty(t, DefaultSettings(), nil)
	d := startColorSize(t, p, negotiation.NewRoundClock(10))
	if _, err := p.Handle(context.Background(), ProposalReceived{From: "me", Bid: testutil.Bid(d, "red", "S")}); err != nil {
		t.Fatalf("receive own: %v", err)
	}
	mustTurn(t, p)
	if p.Model().Len() != 0 {
		t.Errorf("own proposal should not be observed, history %d", p.Model().Len())
	}
}

func TestParty_ObservesEveryPendingProposal(t *testing.T) {
	p := newTestParty(t, DefaultSettings(), nil)
	d := startColorSize(t, p, negotiation.NewRoundClock(10))
	receive(t, p, testutil.Bid(d, "red", "S"))
	receive(t, p, testutil.Bid(d, "red", "M"))
	if p.Model().Len() != 0 {
		t.Fatal("proposals must not be observed before the turn")
	}
	mustTurn(t, p)
	if p.Model().Len() != 2 {
		t.Errorf("expected 2 observed proposals, got %d", p.Model().Len())
	}
	if p.Model().Count("color", "red") != 2 {
		t.Errorf("expected red counted twice, got %d", p.Model().Count("color", "red"))
	}
}

func TestParty_OneLegalActionPerTurn(t *testing.T) {
	for _, name := range StrategyNames() {
		t.Run(name, func(t *testing.T) {
			s := DefaultSettings()
			s.Strategy = name
			p := newTestParty(t, s, nil)
			clock := negotiation.NewRoundClock(30)
			d := startColorSize(t, p, clock)
			bids := d.Bids()
			rng := rand.New(rand.NewSource(8))

			var last negotiation.Bid
			for round := 0; round < 30; round++ {
				if round > 0 {
					last = bids[rng.Intn(len(bids))]
					receive(t, p, last)
				}
				a := mustTurn(t, p)
				clock.Advance()
				switch a.Type {
				case negotiation.ActionAccept:
					if !a.Bid.Equal(last) {
						t.Fatalf("round %d: accepted %s, last received %s", round, a.Bid, last)
					}
				case negotiation.ActionOffer:
					if !p.Index().Contains(a.Bid) {
						t.Fatalf("round %d: offered illegal bid %s", round, a.Bid)
					}
				default:
					t.Fatalf("round %d: unexpected action %s", round, a)
				}
			}
		})
	}
}

func TestParty_DeterministicWithSeed(t *testing.T) {
	run := func() []*negotiation.Action {
		s := DefaultSettings()
		s.Strategy = "accommodating"
		p, err := NewParty(s, nil, NewRand(99))
		if err != nil {
			t.Fatalf("new party: %v", err)
		}
		clock := negotiation.NewRoundClock(20)
		d := startColorSize(t, p, clock)
		bids := d.Bids()
		var out []*negotiation.Action
		for i := 0; i < 20; i++ {
			receive(t, p, bids[i%len(bids)])
			out = append(out, mustTurn(t, p))
			clock.Advance()
		}
		return out
	}
	a, b := run(), run()
	for i := range a {
		if a[i].Type != b[i].Type || !a[i].Bid.Equal(b[i].Bid) {
			t.Fatalf("turn %d differs: %s vs %s", i, a[i], b[i])
		}
	}
}

func TestParty_RandomOpponentEstimates(t *testing.T) {
	s := DefaultSettings()
	s.RandomOpponentEstimates = true
	s.EarlyRounds = 0
	p := newTestParty(t, s, nil)
	d := startColorSize(t, p, negotiation.NewRoundClock(10))
	receive(t, p, testutil.Bid(d, "red", "S"))
	a := mustTurn(t, p)
	if !p.Index().Contains(a.Bid) {
		t.Errorf("offered illegal bid %s", a.Bid)
	}
}

func TestParty_Snapshot(t *testing.T) {
	p := newTestParty(t, DefaultSettings(), nil)
	d := startColorSize(t, p, negotiation.NewRoundClock(10))
	receive(t, p, testutil.Bid(d, "red", "S"))
	mustTurn(t, p)

	snap := p.Snapshot()
	if snap.Phase != "negotiating" || snap.Turn != 1 || snap.Strategy != "concession" {
		t.Errorf("unexpected snapshot header %+v", snap)
	}
	if len(snap.History) != 1 || len(snap.Frequencies) != 2 {
		t.Errorf("expected 1 history bid and 2 frequency rows, got %d and %d", len(snap.History), len(snap.Frequencies))
	}
	if !snap.LastOffer.Equal(testutil.Bid(d, "blue", "L")) {
		t.Errorf("expected last offer (blue,L), got %s", snap.LastOffer)
	}

	receive(t, p, testutil.Bid(d, "blue", "S"))
	mustTurn(t, p)
	if len(snap.History) != 1 {
		t.Error("snapshot changed after a later turn")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if decoded["party"] != "me" {
		t.Errorf("expected party me, got %v", decoded["party"])
	}
}
