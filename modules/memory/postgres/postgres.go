// Package postgres implements the memory.postgres module: durable history
// and profile stores on a pgx connection pool.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sori-ai/sori/internal/core"
	"github.com/sori-ai/sori/internal/memory"
	"github.com/sori-ai/sori/internal/security"
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

// Module provides both stores over one pool.
type Module struct {
	config   Config
	pool     *pgxpool.Pool
	logger   *slog.Logger
	history  *HistoryStore
	profiles *ProfileStore
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "memory.postgres",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("postgres: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger
	if err := m.config.validate(); err != nil {
		return err
	}
	security.AddSecrets(ctx, m.config.DSN)

	poolCfg, err := pgxpool.ParseConfig(m.config.DSN)
	if err != nil {
		return fmt.Errorf("postgres: parse dsn: %w", err)
	}
	poolCfg.MaxConns = m.config.MaxConns
	if poolCfg.ConnConfig.Password != "" {
		security.AddSecrets(ctx, poolCfg.ConnConfig.Password)
	}

	cctx, cancel := context.WithTimeout(context.Background(), m.config.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(cctx, poolCfg)
	if err != nil {
		return fmt.Errorf("postgres: connect: %w", err)
	}
	if *m.config.Migrate {
		if err := EnsureSchema(cctx, pool); err != nil {
			pool.Close()
			return err
		}
	}

	m.pool = pool
	m.history = NewHistoryStore(pool, ctx.Logger)
	m.profiles = NewProfileStore(pool)
	ctx.RegisterService(memory.ServiceName, memory.Backend(m))

	m.logger.Info("postgres memory module provisioned",
		"host", poolCfg.ConnConfig.Host,
		"database", poolCfg.ConnConfig.Database,
		"max_conns", poolCfg.MaxConns,
	)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.config.ConnectTimeout)
	defer cancel()
	if err := m.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: ping failed: %w", err)
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	if m.pool == nil {
		return nil
	}
	m.logger.Info("postgres memory module stopping")
	m.pool.Close()
	m.pool = nil
	return nil
}

// History implements memory.Backend.
func (m *Module) History() memory.HistoryStore { return m.history }

// Profiles implements memory.Backend.
func (m *Module) Profiles() memory.ProfileStore { return m.profiles }
