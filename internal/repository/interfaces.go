package repository

import (
	"context"
	"encoding/json"

	"github.com/freeeve/negotiator/internal/model"
)

// OutcomeRepository records negotiation sessions for reporting. Nothing in
// the agent reads these records back.
type OutcomeRepository interface {
	CreateSession(ctx context.Context, s *model.Session) error
	FinishSession(ctx context.Context, id, status string, agreement json.RawMessage, utilityA, utilityB float64, errMsg string) error
	SaveActions(ctx context.Context, actions []model.ActionRecord) error
	FindByID(ctx context.Context, id string) (*model.Session, error)
	ListRecent(ctx context.Context, limit int) ([]model.Session, error)
	ActionsBySession(ctx context.Context, sessionID string) ([]model.ActionRecord, error)
}

// SessionCache holds live per-party decision snapshots while a session runs.
type SessionCache interface {
	SetSnapshot(ctx context.Context, sessionID, party string, snapshot json.RawMessage) error
	GetSnapshot(ctx context.Context, sessionID, party string) (json.RawMessage, error)
	DeleteSession(ctx context.Context, sessionID string, parties []string) error
}
