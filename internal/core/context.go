// Package core provides the module system: a global module registry, the
// AppContext handed to modules, and the App that drives their lifecycle.
package core

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrNoService is returned by Lookup when nothing is registered under the
// requested name.
var ErrNoService = errors.New("core: service not registered")

// AppContext is what a module sees while it is loaded: a logger tagged
// with its ID, the data directory, its raw config and the service
// registry shared by every module and by the engine wiring.
type AppContext struct {
	Logger  *slog.Logger
	DataDir string

	root          *slog.Logger
	moduleConfigs map[string]yaml.Node
	services      *services
}

type services struct {
	mu     sync.RWMutex
	byName map[string]any
}

// NewAppContext creates the root context. A nil logger discards output.
func NewAppContext(logger *slog.Logger, dataDir string) *AppContext {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AppContext{
		Logger:   logger,
		DataDir:  dataDir,
		root:     logger,
		services: &services{byName: make(map[string]any)},
	}
}

// WithModuleConfigs returns a copy carrying the per-module YAML nodes from
// the modules section of the config file.
func (ctx *AppContext) WithModuleConfigs(configs map[string]yaml.Node) *AppContext {
	cp := *ctx
	cp.moduleConfigs = configs
	return &cp
}

// ForModule returns the context handed to module id: same services and
// configs, logger tagged module=<id>.
func (ctx *AppContext) ForModule(id ModuleID) *AppContext {
	return &AppContext{
		Logger:        ctx.root.With("module", string(id)),
		DataDir:       ctx.DataDir,
		root:          ctx.root,
		moduleConfigs: ctx.moduleConfigs,
		services:      ctx.services,
	}
}

// RegisterService publishes svc under name. A later registration under
// the same name replaces the earlier one.
func (ctx *AppContext) RegisterService(name string, svc any) {
	ctx.services.mu.Lock()
	defer ctx.services.mu.Unlock()
	ctx.services.byName[name] = svc
}

// GetService returns the service registered under name.
func (ctx *AppContext) GetService(name string) (any, bool) {
	ctx.services.mu.RLock()
	defer ctx.services.mu.RUnlock()
	svc, ok := ctx.services.byName[name]
	return svc, ok
}

// Lookup returns the service registered under name as a T. It fails with
// ErrNoService when the name is unknown and with a type error when the
// service is not a T.
func Lookup[T any](ctx *AppContext, name string) (T, error) {
	var zero T
	svc, ok := ctx.GetService(name)
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrNoService, name)
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, fmt.Errorf("core: service %s has type %T, want %T", name, svc, zero)
	}
	return typed, nil
}

// LoadModule instantiates module id and runs Configure (when the config
// has a section for it), Provision and Validate.
func (ctx *AppContext) LoadModule(id string) (Module, error) {
	info, ok := GetModule(id)
	if !ok {
		return nil, fmt.Errorf("unknown module: %s", id)
	}
	mod := info.New()

	if c, ok := mod.(Configurable); ok {
		if node, exists := ctx.moduleConfigs[id]; exists {
			if err := c.Configure(&node); err != nil {
				return nil, fmt.Errorf("configuring module %s: %w", id, err)
			}
		}
	}
	if p, ok := mod.(Provisioner); ok {
		if err := p.Provision(ctx.ForModule(info.ID)); err != nil {
			return nil, fmt.Errorf("provisioning module %s: %w", id, err)
		}
	}
	if v, ok := mod.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("validating module %s: %w", id, err)
		}
	}
	return mod, nil
}
