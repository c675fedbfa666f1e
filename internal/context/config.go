// Package ctxengine implements the context window policy: trimming a
// session's history to a bounded window and assembling the prompt around it.
package ctxengine

import (
	"errors"
	"fmt"
)

// Unit is the measure a budget is expressed in.
type Unit string

// Supported budget units.
const (
	UnitTokens   Unit = "tokens"
	UnitMessages Unit = "messages"
)

// AbsentPolicy decides how unknown profile fields appear in the persona.
type AbsentPolicy string

const (
	// AbsentSentinel substitutes UnknownValue for missing fields.
	AbsentSentinel AbsentPolicy = "sentinel"
	// AbsentOmit drops every persona line that refers to a missing field.
	AbsentOmit AbsentPolicy = "omit"
)

// DefaultUnknownValue is substituted for unknown profile fields.
const DefaultUnknownValue = "unknown"

// ContextConfig holds the tuning knobs for prompt assembly.
type ContextConfig struct {
	// Unit selects the Meter used to measure turns.
	Unit Unit

	// Budget is the maximum size of the trimmed history, in Unit.
	// The persona preamble is not counted.
	Budget int

	// CharsPerToken feeds the CharEstimator when Unit is tokens.
	CharsPerToken float64

	// Persona is the preamble template with {age} and {interests}.
	Persona string

	// AbsentProfile selects the rendering of unknown profile fields.
	AbsentProfile AbsentPolicy

	// UnknownValue is the sentinel text for AbsentSentinel.
	UnknownValue string
}

// withDefaults returns a copy of cfg with zero-valued fields replaced by
// defaults.
func (cfg ContextConfig) withDefaults() ContextConfig {
	if cfg.Unit == "" {
		cfg.Unit = UnitTokens
	}
	if cfg.Budget == 0 {
		if cfg.Unit == UnitMessages {
			cfg.Budget = 20
		} else {
			cfg.Budget = 3000
		}
	}
	if cfg.CharsPerToken <= 0 {
		cfg.CharsPerToken = 4.0
	}
	if cfg.Persona == "" {
		cfg.Persona = DefaultPersona
	}
	if cfg.AbsentProfile == "" {
		cfg.AbsentProfile = AbsentSentinel
	}
	if cfg.UnknownValue == "" {
		cfg.UnknownValue = DefaultUnknownValue
	}
	return cfg
}

// Validate reports invalid settings.
func (cfg ContextConfig) Validate() error {
	var errs []error
	switch cfg.Unit {
	case "", UnitTokens, UnitMessages:
	default:
		errs = append(errs, fmt.Errorf("ctxengine: unknown unit %q", cfg.Unit))
	}
	switch cfg.AbsentProfile {
	case "", AbsentSentinel, AbsentOmit:
	default:
		errs = append(errs, fmt.Errorf("ctxengine: unknown absent_profile policy %q", cfg.AbsentProfile))
	}
	if cfg.Budget < 0 {
		errs = append(errs, errors.New("ctxengine: budget must not be negative"))
	}
	return errors.Join(errs...)
}
