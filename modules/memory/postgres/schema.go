package postgres

import (
	"context"
	"fmt"
)

// Tables follow the layout the Python service used so existing rows are
// read in place. created_at is added to message_store when missing.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS message_store (
		id         BIGSERIAL PRIMARY KEY,
		session_id TEXT NOT NULL,
		message    TEXT NOT NULL,
		created_at TIMESTAMPTZ
	)`,
	`ALTER TABLE message_store ADD COLUMN IF NOT EXISTS created_at TIMESTAMPTZ`,
	`CREATE INDEX IF NOT EXISTS idx_message_store_session ON message_store (session_id, id)`,
	`CREATE TABLE IF NOT EXISTS user_info (
		session_id TEXT PRIMARY KEY,
		age        INTEGER,
		likes      TEXT
	)`,
}

// EnsureSchema creates missing tables and indexes. Every statement is
// idempotent.
func EnsureSchema(ctx context.Context, db Querier) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}
