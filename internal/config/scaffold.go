package config

import (
	"bytes"
	"fmt"
	"text/template"
)

// ScaffoldOptions are the answers collected by `sori init`.
type ScaffoldOptions struct {
	Memory   string // "sqlite" or "postgres"
	Provider string // "openai" or "anthropic"
	Model    string
	Speech   bool
	Listen   string
	Eviction string
}

var scaffoldTemplate = template.Must(template.New("sori.yaml").Parse(`version: "1"

modules:
{{- if eq .Memory "postgres" }}
  memory.postgres:
    dsn: ${SORI_POSTGRES_DSN}
{{- else }}
  memory.sqlite: {}
{{- end }}
{{- if eq .Provider "anthropic" }}
  provider.anthropic:
    api_key: ${ANTHROPIC_API_KEY}
    model: {{ .Model }}
{{- else }}
  provider.openai:
    api_key: ${OPENAI_API_KEY}
    model: {{ .Model }}
{{- end }}
{{- if .Speech }}
  speech.openai:
    api_key: ${OPENAI_API_KEY}
    voice: alloy
    format: mp3
{{- end }}
  gateway.http:
    bind: "{{ .Listen }}"

engine:
  model_timeout: 30s
  context:
    unit: tokens
    budget: 3000
    absent_profile: sentinel
  sessions:
    eviction: {{ .Eviction }}
{{- if eq .Eviction "ttl" }}
    max_idle: 1h
{{- else if eq .Eviction "lru" }}
    max_sessions: 10000
{{- end }}

log:
  level: info
  format: text
`))

// Scaffold renders a starter configuration.
func Scaffold(opts ScaffoldOptions) ([]byte, error) {
	if opts.Memory == "" {
		opts.Memory = "sqlite"
	}
	if opts.Provider == "" {
		opts.Provider = "openai"
	}
	if opts.Model == "" {
		opts.Model = DefaultModel(opts.Provider)
	}
	if opts.Listen == "" {
		opts.Listen = "127.0.0.1:8080"
	}
	if opts.Eviction == "" {
		opts.Eviction = "none"
	}

	var buf bytes.Buffer
	if err := scaffoldTemplate.Execute(&buf, opts); err != nil {
		return nil, fmt.Errorf("config: rendering scaffold: %w", err)
	}
	return buf.Bytes(), nil
}

// DefaultModel returns the suggested model for a provider name.
func DefaultModel(provider string) string {
	if provider == "anthropic" {
		return "claude-3-5-haiku-latest"
	}
	return "gpt-4o-mini"
}
