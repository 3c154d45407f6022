package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/negotiator/internal/agent"
	"github.com/freeeve/negotiator/internal/repository"
	"github.com/freeeve/negotiator/pkg/negotiation"
)

var ErrConnectionClosed = errors.New("session: connection closed before finish")

// Conn is the transport the runner drives. Client implements it.
type Conn interface {
	Events() <-chan Envelope
	Send(env Envelope) error
}

// Outcome summarises a finished session from this party's side.
type Outcome struct {
	SessionID string
	Party     negotiation.PartyID
	Agreement negotiation.Bid
	Reason    string
	Utility   float64
	Turns     int
}

type turnResult struct {
	action *negotiation.Action
	err    error
}

// Runner plays one session on a Conn. Turns run in their own goroutine so
// that a finished inform can cancel a turn in flight. A your_turn arriving
// during a turn is dropped; other informs are queued and handled after it.
type Runner struct {
	conn     Conn
	settings agent.Settings
	strategy agent.Strategy
	rng      *rand.Rand
	cache    repository.SessionCache
	log      zerolog.Logger

	sessionID string
	self      negotiation.PartyID
	profile   *negotiation.LinearAdditive
	party     *agent.Party
	rounds    *negotiation.RoundClock
	turns     int

	turnDone   chan turnResult
	cancelTurn context.CancelFunc
	queued     []Envelope
}

// NewRunner creates a runner. A nil rng is seeded from the clock.
func NewRunner(conn Conn, settings agent.Settings, rng *rand.Rand) *Runner {
	if rng == nil {
		rng = agent.NewRand(0)
	}
	return &Runner{
		conn:     conn,
		settings: settings,
		rng:      rng,
		log:      log.Logger,
	}
}

// SetStrategy overrides the strategy named in the settings.
func (r *Runner) SetStrategy(s agent.Strategy) { r.strategy = s }

// SetCache enables publishing decision snapshots after each action.
func (r *Runner) SetCache(c repository.SessionCache) { r.cache = c }

// SetLogger replaces the runner's logger.
func (r *Runner) SetLogger(l zerolog.Logger) { r.log = l }

// Party returns the controller, or nil before settings arrive.
func (r *Runner) Party() *agent.Party { return r.party }

// Run handles informs until the session finishes, the connection drops or
// ctx is cancelled.
func (r *Runner) Run(ctx context.Context) (*Outcome, error) {
	defer r.stopTurn()
	events := r.conn.Events()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case env, ok := <-events:
			if !ok {
				return nil, ErrConnectionClosed
			}
			if r.turnDone != nil {
				switch env.Type {
				case TypeFinished:
					r.stopTurn()
					return r.dispatch(ctx, env)
				case TypeYourTurn:
					// Overlapping turns emit nothing.
					r.log.Warn().Err(agent.ErrTurnInProgress).Int("turn", r.turns).Msg("Dropping your_turn received mid-turn")
				default:
					r.queued = append(r.queued, env)
				}
				continue
			}
			if out, err := r.dispatch(ctx, env); out != nil || err != nil {
				return out, err
			}

		case res := <-r.turnDone:
			r.cancelTurn()
			r.turnDone, r.cancelTurn = nil, nil
			if res.err != nil {
				return nil, fmt.Errorf("turn %d: %w", r.turns, res.err)
			}
			if err := r.sendAction(ctx, res.action); err != nil {
				return nil, err
			}
			for len(r.queued) > 0 && r.turnDone == nil {
				env := r.queued[0]
				r.queued = r.queued[1:]
				if out, err := r.dispatch(ctx, env); out != nil || err != nil {
					return out, err
				}
			}
		}
	}
}

// stopTurn cancels a running turn and waits for it; its action is dropped.
func (r *Runner) stopTurn() {
	if r.turnDone == nil {
		return
	}
	r.cancelTurn()
	<-r.turnDone
	r.turnDone, r.cancelTurn = nil, nil
}

func (r *Runner) dispatch(ctx context.Context, env Envelope) (*Outcome, error) {
	switch env.Type {
	case TypeSettings:
		return nil, r.handleSettings(ctx, env)
	case TypeActionDone:
		return nil, r.handleActionDone(ctx, env)
	case TypeYourTurn:
		if r.party == nil {
			return nil, fmt.Errorf("%s: %w", env.Type, agent.ErrNotStarted)
		}
		r.startTurn(ctx)
		return nil, nil
	case TypeFinished:
		return r.handleFinished(ctx, env)
	default:
		r.log.Warn().Str("type", env.Type).Msg("Ignoring unknown inform")
		return nil, nil
	}
}

func (r *Runner) handleSettings(ctx context.Context, env Envelope) error {
	if r.party != nil {
		return fmt.Errorf("%w: duplicate settings", agent.ErrProtocolViolation)
	}
	s, err := decodeData[Settings](env)
	if err != nil {
		return err
	}
	profile, err := s.LoadProfile()
	if err != nil {
		return fmt.Errorf("%w: %w", agent.ErrConfiguration, err)
	}
	clock, rounds, err := s.Progress.Clock()
	if err != nil {
		return fmt.Errorf("%w: %w", agent.ErrConfiguration, err)
	}
	party, err := agent.NewParty(r.settings, r.strategy, r.rng)
	if err != nil {
		return err
	}

	r.sessionID = env.SessionID
	r.self = s.PartyID
	sessionLog := r.log.With().Str("session", r.sessionID).Logger()
	party.SetLogger(sessionLog)
	r.log = sessionLog.With().Str("party", string(r.self)).Logger()
	if _, err := party.Handle(ctx, agent.SessionStart{
		Self:   s.PartyID,
		Domain: &profile.Domain,
		Oracle: profile,
		Clock:  clock,
	}); err != nil {
		return err
	}
	r.profile, r.party, r.rounds = profile, party, rounds
	return nil
}

func (r *Runner) handleActionDone(ctx context.Context, env Envelope) error {
	if r.party == nil {
		return fmt.Errorf("%s: %w", env.Type, agent.ErrNotStarted)
	}
	done, err := decodeData[ActionDone](env)
	if err != nil {
		return fmt.Errorf("%w: %w", agent.ErrProtocolViolation, err)
	}
	a := done.Action
	if a.Actor == r.self || a.Type != negotiation.ActionOffer {
		return nil
	}
	_, err = r.party.Handle(ctx, agent.ProposalReceived{From: a.Actor, Bid: a.Bid})
	return err
}

func (r *Runner) startTurn(ctx context.Context) {
	turnCtx, cancel := context.WithCancel(ctx)
	done := make(chan turnResult, 1)
	r.turns++
	r.turnDone, r.cancelTurn = done, cancel
	go func() {
		action, err := r.party.Handle(turnCtx, agent.YourTurn{})
		done <- turnResult{action: action, err: err}
	}()
}

func (r *Runner) sendAction(ctx context.Context, action *negotiation.Action) error {
	env, err := NewEnvelope(TypeAction, r.sessionID, action)
	if err != nil {
		return err
	}
	if err := r.conn.Send(env); err != nil {
		return fmt.Errorf("send action: %w", err)
	}
	if r.rounds != nil {
		r.rounds.Advance()
	}
	r.publishSnapshot(ctx)
	return nil
}

func (r *Runner) publishSnapshot(ctx context.Context) {
	if r.cache == nil {
		return
	}
	data, err := json.Marshal(r.party.Snapshot())
	if err != nil {
		r.log.Warn().Err(err).Msg("Failed to marshal snapshot")
		return
	}
	if err := r.cache.SetSnapshot(ctx, r.sessionID, string(r.self), data); err != nil {
		r.log.Warn().Err(err).Msg("Failed to cache snapshot")
	}
}

func (r *Runner) handleFinished(ctx context.Context, env Envelope) (*Outcome, error) {
	var fin Finished
	if len(env.Data) > 0 {
		var err error
		if fin, err = decodeData[Finished](env); err != nil {
			return nil, fmt.Errorf("%w: %w", agent.ErrProtocolViolation, err)
		}
	}
	out := &Outcome{
		SessionID: r.sessionID,
		Party:     r.self,
		Agreement: fin.Agreement,
		Reason:    fin.Reason,
		Turns:     r.turns,
	}
	if r.party == nil {
		return out, nil
	}
	if _, err := r.party.Handle(ctx, agent.SessionFinished{Agreement: fin.Agreement, Reason: fin.Reason}); err != nil {
		return nil, err
	}
	if !fin.Agreement.IsZero() {
		out.Utility, _ = r.profile.Utility(fin.Agreement)
	}
	if r.cache != nil {
		if err := r.cache.DeleteSession(context.WithoutCancel(ctx), r.sessionID, []string{string(r.self)}); err != nil {
			r.log.Warn().Err(err).Msg("Failed to clear session cache")
		}
	}
	return out, nil
}
