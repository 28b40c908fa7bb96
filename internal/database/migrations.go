package database

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`,

	`CREATE TABLE IF NOT EXISTS join_sessions (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		token_hash VARCHAR(64) NOT NULL,
		state VARCHAR(32) NOT NULL DEFAULT 'idle',
		mode VARCHAR(32),
		outcome VARCHAR(32),
		invite_id VARCHAR(255),
		pro_id VARCHAR(255),
		role VARCHAR(20),
		uid VARCHAR(128),
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_join_sessions_token_hash ON join_sessions(token_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_join_sessions_expires_at ON join_sessions(expires_at)`,

	`CREATE TABLE IF NOT EXISTS join_session_events (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		session_id UUID NOT NULL REFERENCES join_sessions(id) ON DELETE CASCADE,
		from_state VARCHAR(32) NOT NULL,
		to_state VARCHAR(32) NOT NULL,
		detail VARCHAR(255),
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_join_session_events_session_id ON join_session_events(session_id)`,
}

func (db *DB) Migrate(ctx context.Context) error {
	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
