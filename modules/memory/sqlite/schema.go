package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migration moves the schema from version-1 to version.
type migration struct {
	version int
	apply   func(ctx context.Context, tx *sql.Tx) error
}

// The table layouts match what the Python service created, so an existing
// database can be opened in place. Version 2 adds created_at to tables that
// predate it.
var migrations = []migration{
	{version: 1, apply: execAll(
		`CREATE TABLE IF NOT EXISTS message_store (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			message    TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_message_store_session ON message_store(session_id, id)`,
		`CREATE TABLE IF NOT EXISTS user_info (
			session_id TEXT PRIMARY KEY,
			age        INTEGER,
			likes      TEXT
		)`,
	)},
	{version: 2, apply: addColumnIfMissing("message_store", "created_at", "TEXT")},
}

func execAll(stmts ...string) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("%w\nstatement: %s", err, stmt)
			}
		}
		return nil
	}
}

func addColumnIfMissing(table, column, decl string) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		var n int
		err := tx.QueryRowContext(ctx,
			"SELECT count(*) FROM pragma_table_info(?) WHERE name = ?", table, column,
		).Scan(&n)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl))
		return err
	}
}

// migrate applies every migration newer than the recorded schema version,
// each in its own transaction.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("sqlite: begin migration %d: %w", m.version, err)
		}
		if err := m.apply(ctx, tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("sqlite: migration %d: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("sqlite: record schema version %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("sqlite: commit migration %d: %w", m.version, err)
		}
	}
	return nil
}

// schemaVersion reports the latest applied migration.
func schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&v)
	return v, err
}
