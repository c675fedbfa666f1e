package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/sori-ai/sori/internal/core"
)

// Module namespaces the engine is assembled from.
const (
	NamespaceMemory   = "memory"
	NamespaceProvider = "provider"
	NamespaceSpeech   = "speech"
)

// Validate checks the structural validity of a Config: the version, that
// every module ID is registered, that exactly one memory module and at
// least one provider module are configured, and the engine and log
// settings. All problems are reported together.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	errs = append(errs, validateModules(cfg)...)
	errs = append(errs, validateEngine(cfg)...)
	errs = append(errs, validateLog(cfg.Log)...)

	return errors.Join(errs...)
}

func validateModules(cfg *Config) []error {
	var errs []error

	counts := make(map[string]int)
	for _, id := range cfg.ModuleIDs() {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
			continue
		}
		counts[core.ModuleID(id).Namespace()]++
	}

	switch n := counts[NamespaceMemory]; {
	case n == 0:
		errs = append(errs, fmt.Errorf("config: a memory module is required (one of %s)", strings.Join(core.ModuleIDs(NamespaceMemory), ", ")))
	case n > 1:
		errs = append(errs, fmt.Errorf("config: exactly one memory module allowed, got %d", n))
	}
	if counts[NamespaceProvider] == 0 {
		errs = append(errs, fmt.Errorf("config: at least one provider module is required (one of %s)", strings.Join(core.ModuleIDs(NamespaceProvider), ", ")))
	}
	if n := counts[NamespaceSpeech]; n > 1 {
		errs = append(errs, fmt.Errorf("config: at most one speech module allowed, got %d", n))
	}
	return errs
}

func validateEngine(cfg *Config) []error {
	var errs []error
	e := cfg.Engine

	if e.ModelTimeout < 0 {
		errs = append(errs, fmt.Errorf("config: engine.model_timeout must not be negative, got %s", e.ModelTimeout))
	}

	seen := make(map[string]bool)
	for i, id := range e.Gateways {
		switch {
		case core.ModuleID(id).Namespace() != NamespaceProvider:
			errs = append(errs, fmt.Errorf("config: engine.gateways[%d]: %q is not a provider module", i, id))
		case !hasModule(cfg, id):
			errs = append(errs, fmt.Errorf("config: engine.gateways[%d]: provider %q is not configured under modules", i, id))
		case seen[id]:
			errs = append(errs, fmt.Errorf("config: engine.gateways[%d]: duplicate provider %q", i, id))
		}
		seen[id] = true
	}

	if e.Context.Persona != "" && e.Context.PersonaFile != "" {
		errs = append(errs, errors.New("config: engine.context: persona and persona_file are mutually exclusive"))
	}
	if err := e.Context.Policy().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: engine.context: %w", err))
	}

	if err := e.Sessions.Registry().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: engine.sessions: %w", err))
	}
	if _, err := cron.ParseStandard(e.Sessions.Schedule()); err != nil {
		errs = append(errs, fmt.Errorf("config: engine.sessions.prune_schedule: %w", err))
	}
	return errs
}

func validateLog(l LogConfig) []error {
	var errs []error
	if l.Level != "" && !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(l.Level)) {
		errs = append(errs, fmt.Errorf("config: log.level %q must be debug, info, warn or error", l.Level))
	}
	if l.Format != "" && l.Format != "text" && l.Format != "json" {
		errs = append(errs, fmt.Errorf("config: log.format %q must be text or json", l.Format))
	}
	return errs
}

func hasModule(cfg *Config, id string) bool {
	_, ok := cfg.Modules[id]
	return ok
}
