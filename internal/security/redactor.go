// Package security keeps secrets out of logs and bounds untrusted request
// payloads.
package security

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"sync"
)

// RedactPlaceholder is the replacement string for redacted secrets.
const RedactPlaceholder = "***REDACTED***"

// secretKeyPattern matches map keys that likely contain secrets.
var secretKeyPattern = regexp.MustCompile(`(?i)(secret|token|password|api_key|apikey|credential|dsn)`)

// Rule is a pattern and its replacement. Replace may reference capture
// groups with ${n}.
type Rule struct {
	Pattern *regexp.Regexp
	Replace string
}

// Redactor replaces secret values in strings and maps with a redaction
// placeholder. It matches both known key formats and literal values
// registered at runtime, such as configured API keys. All methods are safe
// for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	rules    []Rule
	literals []string
}

// NewRedactor creates a Redactor with DefaultRules.
func NewRedactor() *Redactor {
	return &Redactor{rules: DefaultRules()}
}

// AddRule appends a rule.
func (r *Redactor) AddRule(rule Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule)
}

// AddLiteral registers secret values that are redacted wherever they
// appear. Empty and duplicate values are ignored.
func (r *Redactor) AddLiteral(secrets ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range secrets {
		if s == "" || slices.Contains(r.literals, s) {
			continue
		}
		r.literals = append(r.literals, s)
	}
	// Longest first so a secret containing another is replaced whole.
	slices.SortFunc(r.literals, func(a, b string) int { return cmp.Compare(len(b), len(a)) })
}

// Redact returns s with every rule match and literal replaced.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	rules := r.rules
	literals := r.literals
	r.mu.RUnlock()

	for _, lit := range literals {
		s = strings.ReplaceAll(s, lit, RedactPlaceholder)
	}
	for _, rule := range rules {
		s = rule.Pattern.ReplaceAllString(s, rule.Replace)
	}
	return s
}

// RedactMap walks a decoded YAML or JSON document in place. String values
// under secret-looking keys are replaced; all other strings go through
// Redact.
func (r *Redactor) RedactMap(m map[string]any) {
	for k, v := range m {
		if s, ok := v.(string); ok && s != "" && secretKeyPattern.MatchString(k) {
			m[k] = RedactPlaceholder
			continue
		}
		m[k] = r.redactValue(v)
	}
}

func (r *Redactor) redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		r.RedactMap(val)
	case []any:
		for i := range val {
			val[i] = r.redactValue(val[i])
		}
	case string:
		return r.Redact(val)
	}
	return v
}

// DefaultRules covers the credentials this service handles: model API
// keys, bearer tokens and database URLs with inline passwords.
func DefaultRules() []Rule {
	return []Rule{
		// Anthropic before OpenAI: both start with sk-.
		{regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-_]{20,}`), RedactPlaceholder},
		{regexp.MustCompile(`sk-(proj-)?[a-zA-Z0-9\-_]{20,}`), RedactPlaceholder},
		{regexp.MustCompile(`(?i)(bearer\s+)[a-zA-Z0-9\-._~+/]{16,}=*`), "${1}" + RedactPlaceholder},
		{regexp.MustCompile(`(postgres(?:ql)?://[^:/@\s]+:)[^@\s]+@`), "${1}" + RedactPlaceholder + "@"},
	}
}
