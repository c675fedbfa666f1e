// Package app provides the shared entry point for the sori commands: it
// loads the configuration, builds the logger, loads the modules and wires
// the conversation engine from their services.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sori-ai/sori/internal/config"
	"github.com/sori-ai/sori/internal/core"
	"github.com/sori-ai/sori/internal/cron"
	"github.com/sori-ai/sori/internal/engine"
	"github.com/sori-ai/sori/internal/metrics"
	"github.com/sori-ai/sori/internal/provider"
	"github.com/sori-ai/sori/internal/security"
)

// Params configures Build and Run.
type Params struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// LogLevel overrides log.level from the config when set.
	LogLevel string

	// LogOutput receives log lines. Defaults to os.Stderr.
	LogOutput io.Writer

	// OneShot builds the engine without the HTTP gateway and the
	// scheduler, for commands that run a single operation and exit.
	OneShot bool
}

// Runtime is a loaded application: its modules and the engine wired from
// them.
type Runtime struct {
	Config     *config.Config
	ConfigPath string
	Logger     *slog.Logger
	App        *core.App
	Engine     *engine.Engine
	Chain      *provider.Chain
	Metrics    *metrics.Metrics
	Scheduler  *cron.Scheduler
}

// Build loads and validates the configuration, provisions every module and
// assembles the engine. Nothing is started. Callers must Close the runtime
// when they do not Run it.
func Build(p Params) (*Runtime, error) {
	cfgPath := p.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return nil, err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if p.LogLevel != "" {
		cfg.Log.Level = p.LogLevel
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	out := p.LogOutput
	if out == nil {
		out = os.Stderr
	}
	redactor := security.NewRedactor()
	logger := NewLogger(cfg.Log, out, redactor)

	dataDir := p.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	// Registered first so provider modules can add their keys during
	// Provision.
	appCtx.RegisterService(security.RedactorService, redactor)

	backendIDs, frontIDs := splitModules(cfg.ModuleIDs())
	if p.OneShot {
		frontIDs = nil
	}

	application := core.NewApp(appCtx)
	if err := application.LoadModules(backendIDs); err != nil {
		return nil, err
	}

	rt := &Runtime{
		Config:     cfg,
		ConfigPath: cfgPath,
		Logger:     logger,
		App:        application,
	}
	if err := wireEngine(rt, appCtx, !p.OneShot); err != nil {
		application.Close()
		return nil, err
	}

	// The HTTP surface loads last so it stops first.
	if err := application.LoadModules(frontIDs); err != nil {
		return nil, err
	}
	if rt.Scheduler != nil {
		if err := registerSweeps(rt, appCtx); err != nil {
			application.Close()
			return nil, err
		}
		application.AppendModule(schedulerModuleID, &schedulerModule{rt.Scheduler})
	}
	return rt, nil
}

// Close releases every module without starting them.
func (r *Runtime) Close() {
	r.App.Close()
}

// Run builds the application, starts every module and blocks until a
// shutdown signal is received or ctx is done.
func Run(ctx context.Context, p Params) error {
	rt, err := Build(p)
	if err != nil {
		return err
	}
	rt.Logger.Info("sori starting", "config", rt.ConfigPath)
	return rt.App.Run(ctx)
}

// splitModules separates the HTTP surface from the modules the engine is
// assembled from.
func splitModules(ids []string) (backend, front []string) {
	for _, id := range ids {
		if core.ModuleID(id).Namespace() == "gateway" {
			front = append(front, id)
			continue
		}
		backend = append(backend, id)
	}
	return backend, front
}

// NewLogger builds the root logger: a text or JSON handler at the
// configured level, wrapped so registered secrets never reach w.
func NewLogger(cfg config.LogConfig, w io.Writer, redactor *security.Redactor) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var inner slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		inner = slog.NewJSONHandler(w, opts)
	} else {
		inner = slog.NewTextHandler(w, opts)
	}
	if redactor == nil {
		return slog.New(inner)
	}
	return slog.New(security.NewRedactingHandler(inner, redactor))
}

// ConfigCandidates lists the paths ResolveConfigPath tries, in order.
// Search order: $XDG_CONFIG_HOME/sori/sori.yaml, ~/.config/sori/sori.yaml
// when XDG_CONFIG_HOME is unset, then ./sori.yaml.
func ConfigCandidates() []string {
	var candidates []string
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "sori", "sori.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "sori", "sori.yaml"))
	}
	return append(candidates, "sori.yaml")
}

// ResolveConfigPath returns the first existing candidate config file.
func ResolveConfigPath() (string, error) {
	candidates := ConfigCandidates()
	if i := slices.IndexFunc(candidates, exists); i >= 0 {
		return candidates[i], nil
	}
	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/sori if set, otherwise ~/.local/share/sori.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, "sori")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "sori")
}
