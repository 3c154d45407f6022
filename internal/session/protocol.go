// Package session connects a negotiation agent to a remote session host. It
// speaks a small JSON envelope protocol over a websocket and translates host
// informs into agent events.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/freeeve/negotiator/pkg/negotiation"
)

// Envelope types.
const (
	TypeSettings   = "settings"
	TypeActionDone = "action_done"
	TypeYourTurn   = "your_turn"
	TypeFinished   = "finished"
	TypeAction     = "action"
)

// Progress kinds.
const (
	ProgressRounds = "rounds"
	ProgressTime   = "time"
)

var ErrUnknownProgress = errors.New("unknown progress type")

// Envelope is the frame exchanged with the session host.
type Envelope struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Progress describes the session deadline.
type Progress struct {
	Type       string `json:"type"`
	Total      int    `json:"total,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
}

// Clock builds the negotiation clock for the deadline. The round clock is
// also returned so the caller can advance it; it is nil for time deadlines.
func (p Progress) Clock() (negotiation.Clock, *negotiation.RoundClock, error) {
	switch p.Type {
	case ProgressRounds:
		if p.Total < 1 {
			return nil, nil, fmt.Errorf("rounds progress with total %d", p.Total)
		}
		rc := negotiation.NewRoundClock(p.Total)
		return rc, rc, nil
	case ProgressTime:
		if p.DurationMS <= 0 {
			return nil, nil, fmt.Errorf("time progress with duration %dms", p.DurationMS)
		}
		return negotiation.NewTimeClock(time.Duration(p.DurationMS) * time.Millisecond), nil, nil
	default:
		return nil, nil, fmt.Errorf("%w %q", ErrUnknownProgress, p.Type)
	}
}

// Settings is the first inform of a session. The profile is given inline or
// as a path readable by the agent.
type Settings struct {
	PartyID     negotiation.PartyID         `json:"party_id"`
	Profile     *negotiation.LinearAdditive `json:"profile,omitempty"`
	ProfilePath string                      `json:"profile_path,omitempty"`
	Progress    Progress                    `json:"progress"`
}

// LoadProfile returns the inline profile after validation, or reads it from
// ProfilePath.
func (s *Settings) LoadProfile() (*negotiation.LinearAdditive, error) {
	if s.Profile != nil {
		if err := s.Profile.Validate(); err != nil {
			return nil, err
		}
		return s.Profile, nil
	}
	if s.ProfilePath == "" {
		return nil, errors.New("settings carry no profile")
	}
	return negotiation.LoadProfile(s.ProfilePath)
}

// ActionDone reports an action taken by any party, including our own.
type ActionDone struct {
	Action negotiation.Action `json:"action"`
}

// Finished reports the end of the session. Agreement is null without a deal.
type Finished struct {
	Agreement negotiation.Bid `json:"agreement"`
	Reason    string          `json:"reason,omitempty"`
}

// decodeData unmarshals an envelope payload into T.
func decodeData[T any](env Envelope) (T, error) {
	var v T
	if len(env.Data) == 0 {
		return v, fmt.Errorf("%s: missing data", env.Type)
	}
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return v, fmt.Errorf("%s: %w", env.Type, err)
	}
	return v, nil
}

// NewEnvelope wraps a payload.
func NewEnvelope(typ, sessionID string, data any) (Envelope, error) {
	env := Envelope{Type: typ, SessionID: sessionID}
	if data == nil {
		return env, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return env, fmt.Errorf("marshal %s: %w", typ, err)
	}
	env.Data = raw
	return env, nil
}
