package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // driver registration
)

// Open opens the database at cfg.Path, creating its directory if needed,
// and migrates the schema. The caller owns the returned DB.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	cfg.defaults()
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite: empty path")
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", cfg.Path, err)
	}
	// SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
