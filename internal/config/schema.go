// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for sori.
package config

import (
	"slices"
	"strings"
	"time"

	ctxengine "github.com/sori-ai/sori/internal/context"
	"github.com/sori-ai/sori/internal/session"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "memory.sqlite").
	Modules map[string]yaml.Node `yaml:"modules"`

	Engine EngineConfig `yaml:"engine"`
	Log    LogConfig    `yaml:"log"`
}

// ModuleIDs returns the configured module IDs, sorted so that load order
// does not depend on map iteration.
func (c *Config) ModuleIDs() []string {
	ids := make([]string, 0, len(c.Modules))
	for id := range c.Modules {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// GatewayOrder is the failover order of provider modules: engine.gateways
// when set, otherwise every configured provider by ID.
func (c *Config) GatewayOrder() []string {
	if len(c.Engine.Gateways) > 0 {
		return slices.Clone(c.Engine.Gateways)
	}
	return slices.DeleteFunc(c.ModuleIDs(), func(id string) bool {
		return !strings.HasPrefix(id, NamespaceProvider+".")
	})
}

// EngineConfig tunes the conversation engine.
type EngineConfig struct {
	// ModelTimeout bounds each model call. Default: 30s.
	ModelTimeout time.Duration `yaml:"model_timeout"`

	// Gateways lists provider module IDs in failover order. Empty means
	// every configured provider module, sorted by ID.
	Gateways []string `yaml:"gateways,omitempty"`

	Context  ContextConfig  `yaml:"context"`
	Sessions SessionsConfig `yaml:"sessions"`
}

// ContextConfig controls history trimming and the persona preamble.
type ContextConfig struct {
	Unit          ctxengine.Unit         `yaml:"unit"`
	Budget        int                    `yaml:"budget"`
	CharsPerToken float64                `yaml:"chars_per_token"`
	Persona       string                 `yaml:"persona,omitempty"`
	PersonaFile   string                 `yaml:"persona_file,omitempty"`
	AbsentProfile ctxengine.AbsentPolicy `yaml:"absent_profile"`
	UnknownValue  string                 `yaml:"unknown_value,omitempty"`
}

// Policy converts to the context engine configuration.
func (c ContextConfig) Policy() ctxengine.ContextConfig {
	return ctxengine.ContextConfig{
		Unit:          c.Unit,
		Budget:        c.Budget,
		CharsPerToken: c.CharsPerToken,
		Persona:       c.Persona,
		AbsentProfile: c.AbsentProfile,
		UnknownValue:  c.UnknownValue,
	}
}

// DefaultPruneSchedule runs session eviction every five minutes.
const DefaultPruneSchedule = "*/5 * * * *"

// SessionsConfig controls the in-memory session registry.
type SessionsConfig struct {
	Eviction        session.EvictionPolicy `yaml:"eviction"`
	MaxIdle         time.Duration          `yaml:"max_idle,omitempty"`
	MaxSessions     int                    `yaml:"max_sessions,omitempty"`
	PruneSchedule   string                 `yaml:"prune_schedule,omitempty"`
	ProfileCacheTTL time.Duration          `yaml:"profile_cache_ttl,omitempty"`
}

// Registry converts to the session registry configuration.
func (s SessionsConfig) Registry() session.Config {
	return session.Config{
		Eviction:    s.Eviction,
		MaxIdle:     s.MaxIdle,
		MaxSessions: s.MaxSessions,
		ProfileTTL:  s.ProfileCacheTTL,
	}
}

// Schedule returns the prune cron expression, or DefaultPruneSchedule.
func (s SessionsConfig) Schedule() string {
	if s.PruneSchedule == "" {
		return DefaultPruneSchedule
	}
	return s.PruneSchedule
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	// Level is debug, info, warn or error. Default: info.
	Level string `yaml:"level"`

	// Format is text or json. Default: text.
	Format string `yaml:"format"`
}
