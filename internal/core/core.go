package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const shutdownTimeout = 30 * time.Second

// App drives loaded modules through Start and Stop. Modules start in load
// order and stop in reverse, so anything loaded later may depend on what
// was loaded before it.
type App struct {
	ctx     *AppContext
	logger  *slog.Logger
	modules []*loaded
}

type loaded struct {
	id       ModuleID
	module   Module
	started  bool
	released bool
}

func NewApp(ctx *AppContext) *App {
	return &App{ctx: ctx, logger: ctx.Logger.With("component", "core")}
}

// LoadModules loads ids in order and appends them to the app. On failure
// every module loaded so far is released.
func (a *App) LoadModules(ids []string) error {
	for _, id := range ids {
		mod, err := a.ctx.LoadModule(id)
		if err != nil {
			a.Close()
			return fmt.Errorf("loading module %s: %w", id, err)
		}
		a.AppendModule(mod.ModuleInfo().ID, mod)
		a.logger.Info("module loaded", "module", id)
	}
	return nil
}

// AppendModule adds a module built outside the registry, such as one wired
// from other modules' services.
func (a *App) AppendModule(id ModuleID, mod Module) {
	a.modules = append(a.modules, &loaded{id: id, module: mod})
}

// Start starts every Starter in load order. If one fails, those already
// started are stopped again.
func (a *App) Start() error {
	for _, m := range a.modules {
		s, ok := m.module.(Starter)
		if !ok || m.started {
			continue
		}
		a.logger.Info("starting module", "module", string(m.id))
		if err := s.Start(); err != nil {
			a.logger.Error("module start failed", "module", string(m.id), "error", err)
			a.release(true)
			return fmt.Errorf("starting module %s: %w", m.id, err)
		}
		m.started = true
	}
	a.logger.Info("all modules started")
	return nil
}

// Stop stops the started modules in reverse order.
func (a *App) Stop() { a.release(true) }

// Close stops every module that has not been stopped yet, started or not,
// so that one-shot commands release stores they used without Start.
func (a *App) Close() {
	a.release(false)
	a.modules = nil
}

func (a *App) release(startedOnly bool) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := len(a.modules) - 1; i >= 0; i-- {
		m := a.modules[i]
		if m.released || (startedOnly && !m.started) {
			continue
		}
		if s, ok := m.module.(Stopper); ok {
			a.logger.Info("stopping module", "module", string(m.id))
			if err := s.Stop(ctx); err != nil {
				a.logger.Error("module stop error", "module", string(m.id), "error", err)
			}
		}
		m.started, m.released = false, true
	}
}

// Modules returns the loaded modules in load order.
func (a *App) Modules() []Module {
	out := make([]Module, len(a.modules))
	for i, m := range a.modules {
		out[i] = m.module
	}
	return out
}

// Module returns the loaded module with the given ID.
func (a *App) Module(id ModuleID) (Module, bool) {
	for _, m := range a.modules {
		if m.id == id {
			return m.module, true
		}
	}
	return nil, false
}

// Context returns the AppContext modules were loaded with.
func (a *App) Context() *AppContext { return a.ctx }

// Run starts the app and blocks until SIGINT, SIGTERM or ctx is done,
// then stops it.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		a.logger.Info("shutdown requested", "reason", context.Cause(ctx))
	}

	a.Stop()
	a.logger.Info("shutdown complete")
	return nil
}
