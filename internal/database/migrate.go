package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		name          TEXT NOT NULL,
		email         TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		pic           TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (lower(email))`,

	`CREATE TABLE IF NOT EXISTS password_resets (
		user_id    UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		code_hash  TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS blocks (
		blocker_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		blocked_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (blocker_id, blocked_id)
	)`,
	`CREATE INDEX IF NOT EXISTS blocks_blocked_idx ON blocks (blocked_id)`,

	// direct_key holds the sorted participant pair of one-to-one
	// conversations and is NULL for groups, so the unique index only
	// constrains direct conversations.
	`CREATE TABLE IF NOT EXISTS conversations (
		id                UUID PRIMARY KEY,
		name              TEXT NOT NULL DEFAULT '',
		is_group          BOOLEAN NOT NULL DEFAULT FALSE,
		is_broadcast      BOOLEAN NOT NULL DEFAULT FALSE,
		admin_id          UUID REFERENCES users(id) ON DELETE SET NULL,
		latest_message_id UUID,
		direct_key        TEXT,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS conversations_direct_key ON conversations (direct_key)`,

	`CREATE TABLE IF NOT EXISTS conversation_participants (
		conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		user_id         UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		position        INT NOT NULL,
		PRIMARY KEY (conversation_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS conversation_participants_user_idx ON conversation_participants (user_id)`,

	`CREATE TABLE IF NOT EXISTS messages (
		id              UUID PRIMARY KEY,
		conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		sender_id       UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		content         TEXT,
		media_url       TEXT,
		media_type      TEXT CHECK (media_type IN ('image', 'file')),
		type            TEXT NOT NULL CHECK (type IN ('text', 'media', 'media+text')),
		read_by         UUID[] NOT NULL DEFAULT '{}',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS messages_conversation_created_idx ON messages (conversation_id, created_at DESC)`,
}

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
