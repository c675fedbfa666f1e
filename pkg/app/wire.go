package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"go.opentelemetry.io/otel/trace"

	ctxengine "github.com/sori-ai/sori/internal/context"
	"github.com/sori-ai/sori/internal/core"
	"github.com/sori-ai/sori/internal/cron"
	"github.com/sori-ai/sori/internal/engine"
	"github.com/sori-ai/sori/internal/gateway"
	"github.com/sori-ai/sori/internal/memory"
	"github.com/sori-ai/sori/internal/metrics"
	"github.com/sori-ai/sori/internal/provider"
	"github.com/sori-ai/sori/internal/security"
	"github.com/sori-ai/sori/internal/session"
	"github.com/sori-ai/sori/internal/speech"
)

const (
	engineModuleID    core.ModuleID = "engine"
	schedulerModuleID core.ModuleID = "cron.scheduler"
)

// engineModule ties the failover chain's health checks to the App
// lifecycle and reports the assembled engine at startup.
type engineModule struct {
	rt     *Runtime
	ctx    context.Context
	cancel context.CancelFunc
}

func (m *engineModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: engineModuleID}
}

func (m *engineModule) Start() error {
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.rt.Chain.Start(m.ctx)

	reg := m.rt.Engine.Registry()
	m.rt.Logger.Info("engine ready",
		"gateways", m.rt.Config.GatewayOrder(),
		"speech", m.rt.Engine.CanSpeak(),
		"eviction", string(reg.Policy()),
	)
	if reg.Policy() == session.EvictNone {
		m.rt.Logger.Info("session eviction disabled, session state grows with distinct session ids")
	}
	return nil
}

func (m *engineModule) Stop(context.Context) error {
	m.rt.Chain.Stop()
	if m.cancel != nil {
		m.cancel()
	}
	return nil
}

// schedulerModule runs the cron scheduler inside the App lifecycle.
type schedulerModule struct {
	*cron.Scheduler
}

func (m *schedulerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: schedulerModuleID}
}

var (
	_ core.Starter = (*engineModule)(nil)
	_ core.Stopper = (*engineModule)(nil)
	_ core.Starter = (*schedulerModule)(nil)
	_ core.Stopper = (*schedulerModule)(nil)
)

// wireEngine assembles the engine from the loaded modules: the memory
// backend, the provider modules in failover order and an optional speech
// module. It registers the engine, chain and metrics services and appends
// the engine lifecycle module. Must be called after LoadModules.
func wireEngine(rt *Runtime, appCtx *core.AppContext, schedule bool) error {
	cfg := rt.Config
	logger := rt.Logger

	backend, err := core.Lookup[memory.Backend](appCtx, memory.ServiceName)
	if err != nil {
		return fmt.Errorf("app: memory backend: %w", err)
	}

	chain, err := buildChain(rt.App, cfg.GatewayOrder(), logger)
	if err != nil {
		return err
	}
	rt.Chain = chain

	rt.Metrics = metrics.New()

	regCfg := cfg.Engine.Sessions.Registry()
	regCfg.Logger = logger.With("component", "session")
	registry, err := session.NewRegistry(backend.Profiles(), regCfg)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	rt.Metrics.RegisterSessionGauge(registry.Len)

	assemblerOpts := []ctxengine.AssemblerOption{
		ctxengine.WithLogger(logger.With("component", "context")),
	}
	if path := cfg.Engine.Context.PersonaFile; path != "" {
		if !filepath.IsAbs(path) {
			path = filepath.Join(filepath.Dir(rt.ConfigPath), path)
		}
		assemblerOpts = append(assemblerOpts, ctxengine.WithPersonaSource(ctxengine.NewPersonaFile(path)))
	}

	var tracer trace.Tracer
	if svc, ok := appCtx.GetService("tracing.provider"); ok {
		if tp, ok := svc.(trace.TracerProvider); ok {
			tracer = tp.Tracer("github.com/sori-ai/sori/internal/engine")
		}
	}

	eng, err := engine.New(engine.Config{
		History:      backend.History(),
		Profiles:     backend.Profiles(),
		Gateway:      chain,
		Synthesizer:  findSynthesizer(rt.App),
		Registry:     registry,
		Assembler:    ctxengine.NewAssembler(cfg.Engine.Context.Policy(), assemblerOpts...),
		ModelTimeout: cfg.Engine.ModelTimeout,
		Metrics:      rt.Metrics,
		Logger:       logger.With("component", "engine"),
		Tracer:       tracer,
	})
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	rt.Engine = eng

	appCtx.RegisterService(engine.ServiceName, eng)
	appCtx.RegisterService(provider.ChainService, chain)
	appCtx.RegisterService(metrics.ServiceName, rt.Metrics)
	rt.App.AppendModule(engineModuleID, &engineModule{rt: rt})

	if schedule {
		rt.Scheduler = cron.NewScheduler(logger.With("component", "cron"))
		if registry.Policy() == session.EvictTTL {
			if err := rt.Scheduler.RegisterJob(&cron.SessionEvictionJob{
				Sessions:     registry,
				Logger:       logger,
				ScheduleExpr: cfg.Engine.Sessions.Schedule(),
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// buildChain wraps the provider modules listed in order into a failover
// chain. Every listed module must implement provider.Gateway.
func buildChain(application *core.App, order []string, logger *slog.Logger) (*provider.Chain, error) {
	entries := make([]provider.ChainEntry, 0, len(order))
	for _, id := range order {
		mod, ok := application.Module(core.ModuleID(id))
		if !ok {
			return nil, fmt.Errorf("app: gateway %q is not loaded", id)
		}
		gw, ok := mod.(provider.Gateway)
		if !ok {
			return nil, fmt.Errorf("app: module %q is not a model gateway", id)
		}
		entries = append(entries, provider.ChainEntry{Name: id, Gateway: gw})
	}
	chain, err := provider.NewChain(entries, provider.WithLogger(logger.With("component", "chain")))
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return chain, nil
}

// findSynthesizer returns the loaded speech module, if any.
func findSynthesizer(application *core.App) speech.Synthesizer {
	for _, mod := range application.Modules() {
		if s, ok := mod.(speech.Synthesizer); ok {
			return s
		}
	}
	return nil
}

// registerSweeps schedules pruning of the gateway's per-session rate
// limiter buckets. Must run after the gateway module is provisioned.
func registerSweeps(rt *Runtime, appCtx *core.AppContext) error {
	limiter, err := core.Lookup[*security.RateLimiter](appCtx, gateway.RateLimiterService)
	if errors.Is(err, core.ErrNoService) {
		return nil
	}
	if err != nil {
		return err
	}
	return rt.Scheduler.RegisterJob(&cron.SweepJob{
		JobName: "ratelimit_sweep",
		Target:  limiter,
		Logger:  rt.Logger,
	})
}
