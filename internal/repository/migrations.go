package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema sets up the tables. Swarms must exist before users because of the
// swarm_id foreign key.
const schema = `
CREATE TABLE IF NOT EXISTS swarms (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    invite_code TEXT NOT NULL,
    founder_id TEXT NOT NULL,
    current_streak INTEGER NOT NULL DEFAULT 0 CHECK (current_streak >= 0),
    longest_streak INTEGER NOT NULL DEFAULT 0,
    last_activity_date DATE,
    badges TEXT[] NOT NULL DEFAULT '{}',
    emblem_url TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT swarms_streak_order CHECK (longest_streak >= current_streak)
);

CREATE UNIQUE INDEX IF NOT EXISTS swarms_invite_code_key ON swarms (upper(invite_code));

CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    avatar_seed TEXT NOT NULL DEFAULT '',
    xp BIGINT NOT NULL DEFAULT 0,
    swarm_id TEXT REFERENCES swarms(id) ON DELETE SET NULL,
    joined_at TIMESTAMPTZ,
    collected_ids TEXT[] NOT NULL DEFAULT '{}',
    push_token TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_users_swarm_id ON users(swarm_id);

CREATE TABLE IF NOT EXISTS reward_grants (
    swarm_id TEXT NOT NULL,
    trigger_id TEXT NOT NULL,
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    amount BIGINT NOT NULL,
    granted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (swarm_id, trigger_id, user_id)
);
`

// Migrate executes the schema setup
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
