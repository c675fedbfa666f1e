// Package sqlite implements the memory.sqlite module: durable history and
// profile stores in a single SQLite file, via the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/sori-ai/sori/internal/core"
	"github.com/sori-ai/sori/internal/memory"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

var (
	_ memory.Backend    = (*Module)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module owns the database handle both stores share.
type Module struct {
	config   Config
	db       *sql.DB
	logger   *slog.Logger
	history  *HistoryStore
	profiles *ProfileStore
}

func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "memory.sqlite",
		New: func() core.Module { return &Module{} },
	}
}

func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	return nil
}

// Provision opens (and migrates) the database. A relative path is taken
// from the data directory.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.logger = ctx.Logger
	switch {
	case m.config.Path == "":
		m.config.Path = filepath.Join(ctx.DataDir, defaultDBFile)
	case !filepath.IsAbs(m.config.Path):
		m.config.Path = filepath.Join(ctx.DataDir, m.config.Path)
	}

	db, err := Open(context.Background(), m.config)
	if err != nil {
		return err
	}
	m.config.defaults()
	m.db = db
	m.history = NewHistoryStore(db, ctx.Logger)
	m.profiles = NewProfileStore(db)
	ctx.RegisterService(memory.ServiceName, memory.Backend(m))

	m.logger.Info("sqlite store opened", "path", m.config.Path, "journal", m.config.Journal)
	return nil
}

// Validate checks the journal mode actually took effect. SQLite silently
// keeps the old mode when it cannot switch (for instance wal on some
// network filesystems).
func (m *Module) Validate() error {
	var mode string
	if err := m.db.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&mode); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	if mode != m.config.Journal {
		m.logger.Warn("sqlite journal mode not applied", "want", m.config.Journal, "got", mode)
	}
	return nil
}

func (m *Module) Stop(context.Context) error {
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	m.logger.Info("sqlite store closed")
	return err
}

func (m *Module) History() memory.HistoryStore { return m.history }

func (m *Module) Profiles() memory.ProfileStore { return m.profiles }
