package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dimitrije/teamjoin/internal/database"
	"github.com/dimitrije/teamjoin/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrSessionNotFound = errors.New("join session not found")

// SessionService persists the audit trail of join flows. The invite token
// itself is never stored, only its SHA-256 hash.
type SessionService struct {
	db *database.DB
}

func NewSessionService(db *database.DB) *SessionService {
	return &SessionService{db: db}
}

// SessionTransition is one state change to record. Empty fields leave the
// stored column untouched.
type SessionTransition struct {
	From     string
	To       string
	Detail   string
	Mode     string
	Outcome  string
	InviteID string
	ProID    string
	Role     string
	UID      string
}

func (s *SessionService) Create(ctx context.Context, token string, expiresAt time.Time) (*models.JoinSession, error) {
	var session models.JoinSession
	err := s.db.Pool.QueryRow(ctx, `
		INSERT INTO join_sessions (token_hash, expires_at)
		VALUES ($1, $2)
		RETURNING id, token_hash, state, created_at, updated_at, expires_at
	`, HashToken(token), expiresAt).Scan(
		&session.ID, &session.TokenHash, &session.State,
		&session.CreatedAt, &session.UpdatedAt, &session.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create join session: %w", err)
	}
	return &session, nil
}

func (s *SessionService) GetByID(ctx context.Context, id uuid.UUID) (*models.JoinSession, error) {
	var session models.JoinSession
	var mode, outcome *string
	err := s.db.Pool.QueryRow(ctx, `
		SELECT id, token_hash, state, mode, outcome, invite_id, pro_id, role, uid, created_at, updated_at, expires_at
		FROM join_sessions WHERE id = $1
	`, id).Scan(
		&session.ID, &session.TokenHash, &session.State, &mode, &outcome,
		&session.InviteID, &session.ProID, &session.Role, &session.UID,
		&session.CreatedAt, &session.UpdatedAt, &session.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get join session: %w", err)
	}
	if mode != nil {
		session.Mode = *mode
	}
	if outcome != nil {
		session.Outcome = *outcome
	}
	return &session, nil
}

// RecordTransition updates the session row and appends the event in one
// transaction.
func (s *SessionService) RecordTransition(ctx context.Context, id uuid.UUID, t SessionTransition) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE join_sessions SET
			state = $2,
			mode = COALESCE($3, mode),
			outcome = COALESCE($4, outcome),
			invite_id = COALESCE($5, invite_id),
			pro_id = COALESCE($6, pro_id),
			role = COALESCE($7, role),
			uid = COALESCE($8, uid),
			updated_at = NOW()
		WHERE id = $1
	`, id, t.To, nullable(t.Mode), nullable(t.Outcome), nullable(t.InviteID),
		nullable(t.ProID), nullable(t.Role), nullable(t.UID))
	if err != nil {
		return fmt.Errorf("failed to update join session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO join_session_events (session_id, from_state, to_state, detail)
		VALUES ($1, $2, $3, $4)
	`, id, t.From, t.To, nullable(t.Detail))
	if err != nil {
		return fmt.Errorf("failed to record transition: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SessionService) ListEvents(ctx context.Context, id uuid.UUID) ([]models.JoinSessionEvent, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, session_id, from_state, to_state, COALESCE(detail, ''), created_at
		FROM join_session_events
		WHERE session_id = $1
		ORDER BY created_at, id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []models.JoinSessionEvent
	for rows.Next() {
		var e models.JoinSessionEvent
		if err := rows.Scan(&e.ID, &e.SessionID, &e.FromState, &e.ToState, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CleanupExpired deletes expired sessions that never finished.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM join_sessions WHERE expires_at < NOW() AND outcome IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PurgeBefore deletes every session created before cutoff, finished or not.
func (s *SessionService) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM join_sessions WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
