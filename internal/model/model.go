package model

import (
	"encoding/json"
	"time"
)

// Session statuses.
const (
	StatusRunning     = "running"
	StatusAgreement   = "agreement"
	StatusNoAgreement = "no_agreement"
	StatusAborted     = "aborted"
)

// Session records one bilateral negotiation session and its outcome.
type Session struct {
	ID         string          `json:"id"`
	Domain     string          `json:"domain"`
	PartyA     string          `json:"party_a"`
	PartyB     string          `json:"party_b"`
	StrategyA  string          `json:"strategy_a"`
	StrategyB  string          `json:"strategy_b"`
	Rounds     int             `json:"rounds"`
	Status     string          `json:"status"` // running, agreement, no_agreement, aborted
	Agreement  json.RawMessage `json:"agreement,omitempty"`
	UtilityA   float64         `json:"utility_a"`
	UtilityB   float64         `json:"utility_b"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// ActionRecord is one action taken during a session.
type ActionRecord struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"session_id"`
	Seq        int             `json:"seq"`
	Round      int             `json:"round"`
	Actor      string          `json:"actor"`
	ActionType string          `json:"action_type"` // offer, accept
	Bid        json.RawMessage `json:"bid"`
	Utility    float64         `json:"utility"` // actor's own utility for the bid
	CreatedAt  time.Time       `json:"created_at"`
}

// Transcript is a finished session with its full action log, as written by
// self-play runs and read back by the importer.
type Transcript struct {
	Session Session        `json:"session"`
	Actions []ActionRecord `json:"actions"`
}
