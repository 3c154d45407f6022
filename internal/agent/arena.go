package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/negotiator/internal/logger"
	"github.com/freeeve/negotiator/internal/model"
	"github.com/freeeve/negotiator/internal/repository"
	"github.com/freeeve/negotiator/pkg/negotiation"
)

// SessionConfig configures a single agent-vs-agent session.
type SessionConfig struct {
	Domain    *negotiation.Domain
	ProfileA  negotiation.UtilitySpace // opens the session
	ProfileB  negotiation.UtilitySpace
	PartyA    negotiation.PartyID // default "A"
	PartyB    negotiation.PartyID // default "B"
	StrategyA string
	StrategyB string
	Settings  Settings // zero value means DefaultSettings
	Rounds    int      // deadline in rounds, default 100
	Seed      int64    // 0 = random
	DryRun    bool     // skip DB and cache writes
}

// SessionResult describes the outcome of a completed session.
type SessionResult struct {
	SessionID  string              `json:"session_id"`
	Agreement  negotiation.Bid     `json:"agreement"` // zero when the deadline passed
	AcceptedBy negotiation.PartyID `json:"accepted_by,omitempty"`
	UtilityA   float64             `json:"utility_a"`
	UtilityB   float64             `json:"utility_b"`
	Rounds     int                 `json:"rounds"` // rounds started
	Actions    int                 `json:"actions"`
	Pareto     bool                `json:"pareto"` // agreement lies on the true Pareto frontier

	Record *model.Session       `json:"-"`
	Log    []model.ActionRecord `json:"-"`
}

// Transcript returns the session record with its action log.
func (r *SessionResult) Transcript() model.Transcript {
	t := model.Transcript{Actions: r.Log}
	if r.Record != nil {
		t.Session = *r.Record
	}
	return t
}

// Status returns the model status for the outcome.
func (r *SessionResult) Status() string {
	if r.Agreement.IsZero() {
		return model.StatusNoAgreement
	}
	return model.StatusAgreement
}

// arenaParty is one side of an arena session.
type arenaParty struct {
	id      negotiation.PartyID
	profile negotiation.UtilitySpace
	party   *Party
	clock   *negotiation.RoundClock
}

// RunSession plays a full alternating-offers session between two agents
// sharing one domain. Party A moves first; each party's clock advances after
// it acts. Pass nil outcomes or cache to skip that sink.
func RunSession(
	ctx context.Context,
	cfg SessionConfig,
	outcomes repository.OutcomeRepository,
	cache repository.SessionCache,
) (*SessionResult, error) {
	if cfg.Rounds <= 0 {
		cfg.Rounds = 100
	}
	if cfg.PartyA == "" {
		cfg.PartyA = "A"
	}
	if cfg.PartyB == "" {
		cfg.PartyB = "B"
	}
	if cfg.PartyA == cfg.PartyB {
		return nil, fmt.Errorf("%w: both parties named %q", ErrConfiguration, cfg.PartyA)
	}
	if cfg.Settings == (Settings{}) {
		cfg.Settings = DefaultSettings()
	}
	if cfg.DryRun {
		outcomes, cache = nil, nil
	}

	sessionID := uuid.NewString()
	ctx = logger.WithSessionID(ctx, sessionID)
	sessionLog := logger.ForSession(ctx)

	rngA, rngB := NewRand(cfg.Seed), NewRand(cfg.Seed)
	if cfg.Seed != 0 {
		rngB = NewRand(cfg.Seed + 1)
	}
	sides := [2]*arenaParty{
		{id: cfg.PartyA, profile: cfg.ProfileA},
		{id: cfg.PartyB, profile: cfg.ProfileB},
	}
	strategies := [2]string{cfg.StrategyA, cfg.StrategyB}
	for i, side := range sides {
		s := cfg.Settings
		if strategies[i] != "" {
			s.Strategy = strategies[i]
		}
		rng := rngA
		if i == 1 {
			rng = rngB
		}
		p, err := NewParty(s, nil, rng)
		if err != nil {
			return nil, err
		}
		p.SetLogger(sessionLog)
		side.party = p
		side.clock = negotiation.NewRoundClock(cfg.Rounds)
		if _, err := p.Handle(ctx, SessionStart{Self: side.id, Domain: cfg.Domain, Oracle: side.profile, Clock: side.clock}); err != nil {
			return nil, fmt.Errorf("start %s: %w", side.id, err)
		}
		strategies[i] = p.Strategy().Name()
	}

	rec := &model.Session{
		ID:        sessionID,
		Domain:    cfg.Domain.Name,
		PartyA:    string(cfg.PartyA),
		PartyB:    string(cfg.PartyB),
		StrategyA: strategies[0],
		StrategyB: strategies[1],
		Rounds:    cfg.Rounds,
		Status:    model.StatusRunning,
		CreatedAt: time.Now().UTC(),
	}
	if outcomes != nil {
		if err := outcomes.CreateSession(ctx, rec); err != nil {
			return nil, fmt.Errorf("create session record: %w", err)
		}
	}

	result := &SessionResult{SessionID: sessionID, Record: rec}
	var records []model.ActionRecord
	runErr := func() error {
		for round := 0; round < cfg.Rounds; round++ {
			result.Rounds = round + 1
			for i, side := range sides {
				if err := ctx.Err(); err != nil {
					return err
				}
				action, err := side.party.Handle(ctx, YourTurn{})
				if err != nil {
					return fmt.Errorf("%s turn %d: %w", side.id, round+1, err)
				}
				side.clock.Advance()
				result.Actions++

				u, _ := side.profile.Utility(action.Bid)
				bid, err := json.Marshal(action.Bid)
				if err != nil {
					return fmt.Errorf("marshal bid: %w", err)
				}
				records = append(records, model.ActionRecord{
					SessionID:  sessionID,
					Seq:        result.Actions,
					Round:      round + 1,
					Actor:      string(side.id),
					ActionType: string(action.Type),
					Bid:        bid,
					Utility:    u,
					CreatedAt:  time.Now().UTC(),
				})
				cacheSnapshot(ctx, cache, sessionID, side)

				if action.Type == negotiation.ActionAccept {
					result.Agreement = action.Bid
					result.AcceptedBy = side.id
					return nil
				}
				other := sides[1-i]
				if _, err := other.party.Handle(ctx, ProposalReceived{From: side.id, Bid: action.Bid}); err != nil {
					return fmt.Errorf("%s receive: %w", other.id, err)
				}
			}
		}
		return nil
	}()

	reason := "deadline"
	switch {
	case runErr != nil:
		reason = "error"
	case !result.Agreement.IsZero():
		reason = "agreement"
	}
	for _, side := range sides {
		side.party.Handle(context.WithoutCancel(ctx), SessionFinished{Agreement: result.Agreement, Reason: reason})
	}

	if !result.Agreement.IsZero() {
		result.UtilityA, _ = cfg.ProfileA.Utility(result.Agreement)
		result.UtilityB, _ = cfg.ProfileB.Utility(result.Agreement)
		result.Pareto = onTrueFrontier(cfg.Domain, cfg.ProfileA, cfg.ProfileB, result.Agreement)
	}

	result.Log = records
	finishRecord(rec, result, runErr)
	persist(context.WithoutCancel(ctx), outcomes, cache, result, sides)
	if runErr != nil {
		return nil, runErr
	}

	sessionLog.Info().
		Str("status", result.Status()).
		Int("rounds", result.Rounds).
		Float64("utility_a", result.UtilityA).
		Float64("utility_b", result.UtilityB).
		Bool("pareto", result.Pareto).
		Msg("Session complete")
	return result, nil
}

// cacheSnapshot publishes the actor's decision state. Failures are logged
// and dropped.
func cacheSnapshot(ctx context.Context, cache repository.SessionCache, sessionID string, side *arenaParty) {
	if cache == nil {
		return
	}
	data, err := json.Marshal(side.party.Snapshot())
	if err != nil {
		log.Warn().Err(err).Str("party", string(side.id)).Msg("Failed to marshal snapshot")
		return
	}
	if err := cache.SetSnapshot(ctx, sessionID, string(side.id), data); err != nil {
		log.Warn().Err(err).Str("party", string(side.id)).Msg("Failed to cache snapshot")
	}
}

// finishRecord fills in the outcome fields of the session record.
func finishRecord(rec *model.Session, result *SessionResult, runErr error) {
	now := time.Now().UTC()
	rec.FinishedAt = &now
	rec.Status = result.Status()
	rec.UtilityA, rec.UtilityB = result.UtilityA, result.UtilityB
	if runErr != nil {
		rec.Status, rec.Error = model.StatusAborted, runErr.Error()
		return
	}
	if !result.Agreement.IsZero() {
		rec.Agreement, _ = json.Marshal(result.Agreement)
	}
}

func persist(
	ctx context.Context,
	outcomes repository.OutcomeRepository,
	cache repository.SessionCache,
	result *SessionResult,
	sides [2]*arenaParty,
) {
	if cache != nil {
		parties := []string{string(sides[0].id), string(sides[1].id)}
		if err := cache.DeleteSession(ctx, result.SessionID, parties); err != nil {
			log.Warn().Err(err).Str("session", result.SessionID).Msg("Failed to clear session cache")
		}
	}
	if outcomes == nil {
		return
	}
	if err := SaveTranscript(ctx, outcomes, result.Transcript()); err != nil {
		log.Error().Err(err).Str("session", result.SessionID).Msg("Failed to record session outcome")
	}
}

// SaveTranscript writes the action log and the outcome of an already created
// session record. The outcome is written even when the log fails.
func SaveTranscript(ctx context.Context, outcomes repository.OutcomeRepository, t model.Transcript) error {
	s := t.Session
	var errs []error
	if len(t.Actions) > 0 {
		if err := outcomes.SaveActions(ctx, t.Actions); err != nil {
			errs = append(errs, fmt.Errorf("save actions: %w", err))
		}
	}
	if err := outcomes.FinishSession(ctx, s.ID, s.Status, s.Agreement, s.UtilityA, s.UtilityB, s.Error); err != nil {
		errs = append(errs, fmt.Errorf("finish session: %w", err))
	}
	return errors.Join(errs...)
}

// onTrueFrontier reports whether b is Pareto-efficient under both parties'
// real profiles.
func onTrueFrontier(d *negotiation.Domain, a, b negotiation.UtilitySpace, bid negotiation.Bid) bool {
	bids := d.Bids()
	cands := make([]Candidate, 0, len(bids))
	for _, x := range bids {
		ua, errA := a.Utility(x)
		ub, errB := b.Utility(x)
		if errA != nil || errB != nil {
			return false
		}
		cands = append(cands, Candidate{Bid: x, Own: ua, Opp: ub})
	}
	for _, c := range ParetoFrontier(cands) {
		if c.Bid.Equal(bid) {
			return true
		}
	}
	return false
}
