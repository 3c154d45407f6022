package agent

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/negotiator/pkg/negotiation"
)

// Phase is the controller's lifecycle state.
type Phase int

const (
	AwaitingFirstTurn Phase = iota
	Negotiating
	SessionEnded
)

func (p Phase) String() string {
	switch p {
	case AwaitingFirstTurn:
		return "awaiting_first_turn"
	case Negotiating:
		return "negotiating"
	case SessionEnded:
		return "session_ended"
	default:
		return "unknown"
	}
}

// Party is the turn controller of one negotiating agent. It owns all
// mutable decision state and is driven by one event at a time through
// Handle. Each YourTurn produces exactly one action.
type Party struct {
	settings Settings
	schedule Concession
	strategy Strategy
	rng      *rand.Rand
	log      zerolog.Logger

	busy  atomic.Bool
	phase Phase

	self      negotiation.PartyID
	domain    *negotiation.Domain
	oracle    negotiation.UtilitySpace
	clock     negotiation.Clock
	index     *BidIndex
	model     *FrequencyModel
	estimator OpponentEstimator

	threshold    float64
	turn         int
	lastReceived negotiation.Bid
	lastOffer    negotiation.Bid
	pending      []negotiation.Bid
}

// NewParty creates a controller. A nil strategy selects one from
// settings.Strategy; a nil rng is seeded from the clock.
func NewParty(settings Settings, strategy Strategy, rng *rand.Rand) (*Party, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if strategy == nil {
		strategy = StrategyForName(settings.Strategy, settings)
	}
	if rng == nil {
		rng = NewRand(0)
	}
	return &Party{
		settings:  settings,
		schedule:  Concession{Low: settings.ThresholdLow, High: settings.ThresholdHigh},
		strategy:  strategy,
		rng:       rng,
		log:       log.Logger,
		threshold: settings.ThresholdHigh,
	}, nil
}

// SetLogger replaces the logger used for turn diagnostics.
func (p *Party) SetLogger(l zerolog.Logger) { p.log = l }

// Handle processes one inbound event. It returns a non-nil action only for
// YourTurn. Calls must not overlap; an overlapping call fails with
// ErrTurnInProgress and emits nothing.
func (p *Party) Handle(ctx context.Context, ev Event) (*negotiation.Action, error) {
	if !p.busy.CompareAndSwap(false, true) {
		return nil, ErrTurnInProgress
	}
	defer p.busy.Store(false)

	switch e := ev.(type) {
	case SessionStart:
		return nil, p.start(e)
	case ProposalReceived:
		return nil, p.receive(e)
	case YourTurn:
		return p.takeTurn(ctx)
	case SessionFinished:
		p.finish(e)
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unknown event %T", ErrProtocolViolation, ev)
	}
}

func (p *Party) start(e SessionStart) error {
	switch p.phase {
	case Negotiating:
		return fmt.Errorf("%w: session already started", ErrProtocolViolation)
	case SessionEnded:
		return ErrSessionEnded
	}
	if e.Oracle == nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, ErrNoOracle)
	}
	if e.Clock == nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, ErrNoClock)
	}
	index, err := BuildBidIndex(e.Domain, e.Oracle)
	if err != nil {
		return err
	}

	p.self = e.Self
	p.domain = e.Domain
	p.oracle = e.Oracle
	p.clock = e.Clock
	p.index = index
	p.model = NewFrequencyModel(e.Domain, p.settings)
	p.estimator = p.model
	if p.settings.RandomOpponentEstimates {
		p.log.Warn().Msg("Random opponent estimates are deprecated; the frequency model is ignored")
		p.estimator = RandomEstimator{Rand: p.rng}
	}
	p.threshold = p.schedule.High
	p.phase = Negotiating

	p.log.Info().
		Str("party", string(p.self)).
		Str("domain", e.Domain.Name).
		Int("bids", index.Len()).
		Float64("best", index.EntryAt(0).Utility).
		Float64("worst", index.Worst()).
		Str("strategy", p.strategy.Name()).
		Msg("Session started")
	return nil
}

func (p *Party) receive(e ProposalReceived) error {
	if err := p.requireNegotiating(); err != nil {
		return err
	}
	if e.From != "" && e.From == p.self {
		return nil
	}
	if !p.domain.Contains(e.Bid) {
		return fmt.Errorf("%w: received bid %s outside domain %q", ErrProtocolViolation, e.Bid, p.domain.Name)
	}
	p.lastReceived = e.Bid
	p.pending = append(p.pending, e.Bid)
	return nil
}

func (p *Party) finish(e SessionFinished) {
	if p.phase == SessionEnded {
		return
	}
	p.phase = SessionEnded
	ev := p.log.Info().Str("party", string(p.self)).Int("turns", p.turn)
	if !e.Agreement.IsZero() {
		if u, ok := p.utility(e.Agreement); ok {
			ev = ev.Float64("utility", u)
		}
		ev = ev.Stringer("agreement", e.Agreement)
	}
	ev.Str("reason", e.Reason).Msg("Session finished")
}

func (p *Party) requireNegotiating() error {
	switch p.phase {
	case AwaitingFirstTurn:
		return ErrNotStarted
	case SessionEnded:
		return ErrSessionEnded
	}
	return nil
}

// takeTurn runs one decision cycle: observe, update the threshold, choose a
// bid, then accept or offer.
func (p *Party) takeTurn(ctx context.Context) (*negotiation.Action, error) {
	if err := p.requireNegotiating(); err != nil {
		return nil, err
	}
	p.turn++

	for _, b := range p.pending {
		p.model.Observe(b)
	}
	p.pending = p.pending[:0]
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t := p.clock.Time()
	round, total, hasRounds := p.clock.Rounds()
	p.threshold = p.schedule.Threshold(t)

	turn := &Turn{
		Number:       p.turn,
		Time:         t,
		Round:        p.turn,
		Threshold:    p.threshold,
		LastReceived: p.lastReceived,
		Domain:       p.domain,
		Index:        p.index,
		Opponent:     p.estimator,
		History:      p.model.History(),
		Rand:         p.rng,
	}
	if hasRounds {
		turn.Round, turn.TotalRounds = round, total
	}

	next, err := p.strategy.NextBid(turn)
	switch {
	case err != nil:
		p.log.Debug().Err(err).Str("strategy", p.strategy.Name()).Msg("Bid selection failed, offering best bid")
		next = p.index.Best()
	case !p.index.Contains(next):
		p.log.Warn().Stringer("bid", next).Str("strategy", p.strategy.Name()).Msg("Strategy produced an illegal bid, offering best bid")
		next = p.index.Best()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	nextUtil, _ := p.index.UtilityOf(next)
	if p.settings.TightenThreshold {
		if !hasRounds {
			round, total = 0, 1
		}
		p.threshold = p.schedule.Tighten(nextUtil, round, total)
	}

	var action *negotiation.Action
	recvUtil, _ := p.utility(p.lastReceived)
	if Acceptable(p.lastReceived, recvUtil, p.threshold) {
		action = negotiation.NewAccept(p.self, p.lastReceived)
	} else {
		action = negotiation.NewOffer(p.self, next)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if action.Type == negotiation.ActionOffer {
		p.lastOffer = next
	}
	p.log.Debug().
		Str("party", string(p.self)).
		Int("turn", p.turn).
		Float64("time", t).
		Float64("threshold", p.threshold).
		Float64("received", recvUtil).
		Float64("next", nextUtil).
		Str("action", string(action.Type)).
		Msg("Turn")
	return action, nil
}

// utility returns our utility for b, from the index when possible.
func (p *Party) utility(b negotiation.Bid) (float64, bool) {
	if b.IsZero() || p.index == nil {
		return 0, false
	}
	if u, ok := p.index.UtilityOf(b); ok {
		return u, true
	}
	u, err := p.oracle.Utility(b)
	if err != nil {
		return 0, false
	}
	return u, true
}

// Phase returns the lifecycle state.
func (p *Party) Phase() Phase { return p.phase }

// Threshold returns the acceptance threshold computed on the last turn.
func (p *Party) Threshold() float64 { return p.threshold }

// Index returns the bid utility index, or nil before the session starts.
func (p *Party) Index() *BidIndex { return p.index }

// Model returns the opponent frequency model, or nil before the session starts.
func (p *Party) Model() *FrequencyModel { return p.model }

// Strategy returns the bid-generation strategy.
func (p *Party) Strategy() Strategy { return p.strategy }
