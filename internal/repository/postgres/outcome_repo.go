package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/freeeve/negotiator/internal/model"
)

// OutcomeRepo handles sessions and session_actions database operations.
type OutcomeRepo struct {
	db *sql.DB
}

// NewOutcomeRepo creates an OutcomeRepo.
func NewOutcomeRepo(db *sql.DB) *OutcomeRepo {
	return &OutcomeRepo{db: db}
}

// CreateSession inserts a running session. An empty s.ID is assigned by the
// database; ID, Status and CreatedAt are filled in from the stored row.
func (r *OutcomeRepo) CreateSession(ctx context.Context, s *model.Session) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO sessions (id, domain, party_a, party_b, strategy_a, strategy_b, rounds)
		 VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7)
		 RETURNING id, status, created_at`,
		s.ID, s.Domain, s.PartyA, s.PartyB, s.StrategyA, s.StrategyB, s.Rounds,
	).Scan(&s.ID, &s.Status, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// FinishSession records the outcome of a session.
func (r *OutcomeRepo) FinishSession(ctx context.Context, id, status string, agreement json.RawMessage, utilityA, utilityB float64, errMsg string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET status = $2, agreement = $3::jsonb, utility_a = $4, utility_b = $5, error = $6, finished_at = now()
		 WHERE id = $1`,
		id, status, nullJSON(agreement), utilityA, utilityB, nullStr(errMsg),
	)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	return nil
}

// SaveActions inserts a batch of actions.
func (r *OutcomeRepo) SaveActions(ctx context.Context, actions []model.ActionRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO session_actions (session_id, seq, round, actor, action_type, bid, utility)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)`)
	if err != nil {
		return fmt.Errorf("prepare insert action: %w", err)
	}
	defer stmt.Close()

	for _, a := range actions {
		if _, err := stmt.ExecContext(ctx, a.SessionID, a.Seq, a.Round, a.Actor, a.ActionType, string(a.Bid), a.Utility); err != nil {
			return fmt.Errorf("insert action: %w", err)
		}
	}
	return tx.Commit()
}

const sessionColumns = `id, domain, party_a, party_b, strategy_a, strategy_b, rounds, status, agreement,
	utility_a, utility_b, error, created_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*model.Session, error) {
	var s model.Session
	var agreement []byte
	var errMsg sql.NullString
	if err := row.Scan(&s.ID, &s.Domain, &s.PartyA, &s.PartyB, &s.StrategyA, &s.StrategyB, &s.Rounds, &s.Status,
		&agreement, &s.UtilityA, &s.UtilityB, &errMsg, &s.CreatedAt, &s.FinishedAt); err != nil {
		return nil, err
	}
	if len(agreement) > 0 {
		s.Agreement = json.RawMessage(agreement)
	}
	s.Error = errMsg.String
	return &s, nil
}

// FindByID returns a session, or nil if it does not exist.
func (r *OutcomeRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	return s, nil
}

// ListRecent returns the most recently created sessions.
func (r *OutcomeRepo) ListRecent(ctx context.Context, limit int) ([]model.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// ActionsBySession returns the actions of a session in order.
func (r *OutcomeRepo) ActionsBySession(ctx context.Context, sessionID string) ([]model.ActionRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, seq, round, actor, action_type, bid, utility, created_at
		 FROM session_actions WHERE session_id = $1 ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var actions []model.ActionRecord
	for rows.Next() {
		var a model.ActionRecord
		var bid []byte
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Seq, &a.Round, &a.Actor, &a.ActionType, &bid, &a.Utility, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		a.Bid = json.RawMessage(bid)
		actions = append(actions, a)
	}
	return actions, rows.Err()
}
