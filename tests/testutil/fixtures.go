package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dimitrije/teamjoin/internal/database"
	"github.com/dimitrije/teamjoin/internal/models"
	"github.com/dimitrije/teamjoin/internal/services"
)

// Fixtures provides factory methods for creating test data
type Fixtures struct {
	db      *database.DB
	counter int
}

// NewFixtures creates a new fixtures factory
func NewFixtures(db *database.DB) *Fixtures {
	return &Fixtures{db: db}
}

// JoinSessionRow describes a join session row to insert
type JoinSessionRow struct {
	Token     string
	State     string
	Outcome   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// JoinSessionOption configures a test join session
type JoinSessionOption func(*JoinSessionRow)

// WithOutcome marks the session finished with outcome
func WithOutcome(outcome string) JoinSessionOption {
	return func(s *JoinSessionRow) {
		s.State = "terminal"
		s.Outcome = outcome
	}
}

// WithExpiresAt sets the session's expiry
func WithExpiresAt(at time.Time) JoinSessionOption {
	return func(s *JoinSessionRow) {
		s.ExpiresAt = at
	}
}

// WithCreatedAt backdates the session
func WithCreatedAt(at time.Time) JoinSessionOption {
	return func(s *JoinSessionRow) {
		s.CreatedAt = at
	}
}

// CreateJoinSession inserts a join session with default values
func (f *Fixtures) CreateJoinSession(t *testing.T, opts ...JoinSessionOption) *models.JoinSession {
	t.Helper()
	f.counter++

	now := time.Now()
	row := &JoinSessionRow{
		Token:     fmt.Sprintf("invite-token-%d", f.counter),
		State:     "idle",
		CreatedAt: now,
		ExpiresAt: now.Add(30 * time.Minute),
	}
	for _, opt := range opts {
		opt(row)
	}

	var outcome *string
	if row.Outcome != "" {
		outcome = &row.Outcome
	}

	session := &models.JoinSession{}
	err := f.db.Pool.QueryRow(context.Background(), `
		INSERT INTO join_sessions (token_hash, state, outcome, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $4, $5)
		RETURNING id, token_hash, state, created_at, updated_at, expires_at
	`, services.HashToken(row.Token), row.State, outcome, row.CreatedAt, row.ExpiresAt).Scan(
		&session.ID, &session.TokenHash, &session.State,
		&session.CreatedAt, &session.UpdatedAt, &session.ExpiresAt,
	)
	if err != nil {
		t.Fatalf("failed to create join session: %v", err)
	}
	session.Outcome = row.Outcome

	return session
}
