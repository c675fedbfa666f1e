package ctxengine

import (
	"context"
	"log/slog"
	"slices"

	"github.com/sori-ai/sori/internal/provider"
	"github.com/sori-ai/sori/pkg/message"
)

// Assembler builds the prompt for one turn: it trims the history through
// the configured Meter and renders the persona with the session profile.
type Assembler struct {
	config  ContextConfig
	meter   Meter
	persona PersonaSource
	logger  *slog.Logger
}

// AssemblerOption configures optional Assembler behavior.
type AssemblerOption func(*Assembler)

// WithPersonaSource replaces the persona template from the config.
func WithPersonaSource(src PersonaSource) AssemblerOption {
	return func(a *Assembler) { a.persona = src }
}

// WithMeter replaces the meter derived from the config.
func WithMeter(m Meter) AssemblerOption {
	return func(a *Assembler) { a.meter = m }
}

// WithLogger sets the logger used to report persona load failures.
func WithLogger(l *slog.Logger) AssemblerOption {
	return func(a *Assembler) { a.logger = l }
}

// NewAssembler creates an Assembler from cfg.
func NewAssembler(cfg ContextConfig, opts ...AssemblerOption) *Assembler {
	cfg = cfg.withDefaults()
	a := &Assembler{
		config:  cfg,
		meter:   NewMeter(cfg),
		persona: StaticPersona(cfg.Persona),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.DiscardHandler)
	}
	return a
}

// Config returns the effective configuration.
func (a *Assembler) Config() ContextConfig {
	return a.config
}

// Build assembles the prompt. history must end with the new human turn,
// which becomes Prompt.Message; the rest of the trimmed window becomes
// Prompt.History. A zero profile renders as unknown.
func (a *Assembler) Build(ctx context.Context, history []message.Turn, profile message.Profile) provider.Prompt {
	window := Trim(history, a.config.Budget, a.meter)

	var p provider.Prompt
	if n := len(window); n > 0 && window[n-1].Role == message.RoleHuman {
		p.Message = window[n-1].Content
		p.History = window[:n-1]
	} else {
		p.History = window
	}

	template, err := a.persona.Load()
	if err != nil {
		a.logger.WarnContext(ctx, "persona load failed, using default", "error", err)
		template = DefaultPersona
	}

	p.System = RenderPersona(template, profile, a.config.AbsentProfile, a.config.UnknownValue)
	p.Profile = provider.ProfileFields{Interests: slices.Clone(profile.Interests)}
	if profile.HasAge() {
		age := *profile.Age
		p.Profile.Age = &age
	}
	return p
}
