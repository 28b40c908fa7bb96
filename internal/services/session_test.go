package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dimitrije/teamjoin/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSessionService(t *testing.T) (*SessionService, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	db := &database.DB{Pool: mock}
	return NewSessionService(db), mock
}

func strPtr(s string) *string { return &s }

func TestSessionService_Create(t *testing.T) {
	svc, mock := setupSessionService(t)
	ctx := context.Background()
	id := uuid.New()
	now := time.Now()
	expiresAt := now.Add(30 * time.Minute)

	rows := pgxmock.NewRows([]string{"id", "token_hash", "state", "created_at", "updated_at", "expires_at"}).
		AddRow(id, HashToken("tok-abc"), "idle", now, now, expiresAt)
	mock.ExpectQuery(`INSERT INTO join_sessions`).
		WithArgs(HashToken("tok-abc"), expiresAt).
		WillReturnRows(rows)

	session, err := svc.Create(ctx, "tok-abc", expiresAt)

	require.NoError(t, err)
	assert.Equal(t, id, session.ID)
	assert.Equal(t, "idle", session.State)
	assert.NotEqual(t, "tok-abc", session.TokenHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionService_GetByID(t *testing.T) {
	svc, mock := setupSessionService(t)
	ctx := context.Background()
	id := uuid.New()
	now := time.Now()

	rows := pgxmock.NewRows([]string{
		"id", "token_hash", "state", "mode", "outcome", "invite_id", "pro_id", "role", "uid",
		"created_at", "updated_at", "expires_at",
	}).AddRow(id, "hash", "terminal", strPtr("signup"), strPtr("success"), strPtr("inv-1"),
		strPtr("pro-1"), strPtr("ATHLETE"), strPtr("uid-1"), now, now, now.Add(time.Hour))
	mock.ExpectQuery(`SELECT (.+) FROM join_sessions WHERE id`).
		WithArgs(id).
		WillReturnRows(rows)

	session, err := svc.GetByID(ctx, id)

	require.NoError(t, err)
	assert.Equal(t, "terminal", session.State)
	assert.Equal(t, "signup", session.Mode)
	assert.Equal(t, "success", session.Outcome)
	assert.Equal(t, "pro-1", *session.ProID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionService_GetByID_NotFound(t *testing.T) {
	svc, mock := setupSessionService(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT (.+) FROM join_sessions WHERE id`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := svc.GetByID(context.Background(), id)

	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionService_RecordTransition(t *testing.T) {
	svc, mock := setupSessionService(t)
	ctx := context.Background()
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE join_sessions SET`).
		WithArgs(id, "resolving_identity", strPtr("signup"), (*string)(nil), strPtr("inv-1"),
			strPtr("pro-1"), strPtr("ATHLETE"), (*string)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO join_session_events`).
		WithArgs(id, "validating", "resolving_identity", (*string)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := svc.RecordTransition(ctx, id, SessionTransition{
		From:     "validating",
		To:       "resolving_identity",
		Mode:     "signup",
		InviteID: "inv-1",
		ProID:    "pro-1",
		Role:     "ATHLETE",
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionService_RecordTransition_UnknownSession(t *testing.T) {
	svc, mock := setupSessionService(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE join_sessions SET`).
		WithArgs(id, "validating", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := svc.RecordTransition(context.Background(), id, SessionTransition{From: "idle", To: "validating"})

	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionService_RecordTransition_InsertFails(t *testing.T) {
	svc, mock := setupSessionService(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE join_sessions SET`).
		WithArgs(id, "validating", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO join_session_events`).
		WithArgs(id, "idle", "validating", pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := svc.RecordTransition(context.Background(), id, SessionTransition{From: "idle", To: "validating"})

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionService_ListEvents(t *testing.T) {
	svc, mock := setupSessionService(t)
	id := uuid.New()
	now := time.Now()

	rows := pgxmock.NewRows([]string{"id", "session_id", "from_state", "to_state", "detail", "created_at"}).
		AddRow(uuid.New(), id, "idle", "validating", "", now).
		AddRow(uuid.New(), id, "validating", "resolving_identity", "", now)
	mock.ExpectQuery(`SELECT (.+) FROM join_session_events`).
		WithArgs(id).
		WillReturnRows(rows)

	events, err := svc.ListEvents(context.Background(), id)

	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "resolving_identity", events[1].ToState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionService_CleanupExpired(t *testing.T) {
	svc, mock := setupSessionService(t)

	mock.ExpectExec(`DELETE FROM join_sessions WHERE expires_at`).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := svc.CleanupExpired(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionService_PurgeBefore(t *testing.T) {
	svc, mock := setupSessionService(t)
	cutoff := time.Now().Add(-30 * 24 * time.Hour)

	mock.ExpectExec(`DELETE FROM join_sessions WHERE created_at`).
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	n, err := svc.PurgeBefore(context.Background(), cutoff)

	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
