package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ctxengine "github.com/sori-ai/sori/internal/context"
	"github.com/sori-ai/sori/internal/session"
)

func TestExpandString(t *testing.T) {
	t.Setenv("SORI_TEST_KEY", "sk-test")
	t.Setenv("SORI_TEST_EMPTY", "")

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr string
	}{
		{"set", "${SORI_TEST_KEY}", "sk-test", ""},
		{"embedded", "Bearer ${SORI_TEST_KEY}!", "Bearer sk-test!", ""},
		{"set but empty wins over fallback", "${SORI_TEST_EMPTY:-fallback}", "", ""},
		{"fallback", "${SORI_TEST_UNSET:-postgres://localhost/sori}", "postgres://localhost/sori", ""},
		{"empty fallback", "${SORI_TEST_UNSET:-}", "", ""},
		{"unresolved", "${SORI_TEST_UNSET_A}/${SORI_TEST_UNSET_B}", "", "SORI_TEST_UNSET_B"},
		{"no variables", "plain $HOME value", "plain $HOME value", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandString(tt.in)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want mention of %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expandString = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParse_ExpandsValuesOnly(t *testing.T) {
	t.Setenv("SORI_TEST_TIMEOUT", "90s")
	t.Setenv("SORI_TEST_BUDGET", "40")
	t.Setenv("SORI_TEST_TRICKY", "a: b\nlog: {level: error}")

	raw := `
# ${SORI_TEST_UNSET_IN_COMMENT} must not be expanded
version: "1"
modules:
  memory.inmem: {}
  provider.openai:
    api_key: ${SORI_TEST_TRICKY}
engine:
  model_timeout: ${SORI_TEST_TIMEOUT}
  context:
    budget: ${SORI_TEST_BUDGET}
log:
  level: info
`
	cfg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Engine.ModelTimeout != 90*time.Second || cfg.Engine.Context.Budget != 40 {
		t.Errorf("typed fields not re-resolved: timeout=%s budget=%d", cfg.Engine.ModelTimeout, cfg.Engine.Context.Budget)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("substituted value changed the document: log.level = %q", cfg.Log.Level)
	}
	var prov struct {
		APIKey string `yaml:"api_key"`
	}
	node := cfg.Modules["provider.openai"]
	if err := node.Decode(&prov); err != nil {
		t.Fatal(err)
	}
	if prov.APIKey != os.Getenv("SORI_TEST_TRICKY") {
		t.Errorf("api_key = %q", prov.APIKey)
	}
}

func TestParse_UnresolvedReportsLine(t *testing.T) {
	_, err := Parse([]byte("version: \"1\"\nmodules:\n  provider.openai:\n    api_key: ${SORI_TEST_NOPE}\n"))
	if err == nil || !strings.Contains(err.Error(), "line 4") || !strings.Contains(err.Error(), "SORI_TEST_NOPE") {
		t.Fatalf("err = %v", err)
	}
}

func TestParse(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	raw := `
version: "1"
modules:
  memory.sqlite: {}
  provider.openai:
    api_key: ${OPENAI_API_KEY}
engine:
  model_timeout: 45s
  gateways: [provider.openai]
  context:
    unit: messages
    budget: 12
    absent_profile: omit
  sessions:
    eviction: ttl
    max_idle: 2h
    profile_cache_ttl: 10m
log:
  level: debug
  format: json
`
	cfg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Engine.ModelTimeout != 45*time.Second {
		t.Errorf("model_timeout = %s", cfg.Engine.ModelTimeout)
	}
	if cfg.Engine.Context.Unit != ctxengine.UnitMessages || cfg.Engine.Context.Budget != 12 {
		t.Errorf("context = %+v", cfg.Engine.Context)
	}
	if cfg.Engine.Context.AbsentProfile != ctxengine.AbsentOmit {
		t.Errorf("absent_profile = %q", cfg.Engine.Context.AbsentProfile)
	}
	reg := cfg.Engine.Sessions.Registry()
	if reg.Eviction != session.EvictTTL || reg.MaxIdle != 2*time.Hour || reg.ProfileTTL != 10*time.Minute {
		t.Errorf("sessions = %+v", reg)
	}
	if cfg.Engine.Sessions.Schedule() != DefaultPruneSchedule {
		t.Errorf("schedule = %q", cfg.Engine.Sessions.Schedule())
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}

	node := cfg.Modules["provider.openai"]
	var prov struct {
		APIKey string `yaml:"api_key"`
	}
	if err := node.Decode(&prov); err != nil {
		t.Fatalf("decode module node: %v", err)
	}
	if prov.APIKey != "sk-from-env" {
		t.Errorf("api_key = %q, want expanded value", prov.APIKey)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SORI_DOTENV_MODEL=gpt-test\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(dir, "sori.yaml")
	raw := "version: \"1\"\nmodules:\n  provider.openai:\n    model: ${SORI_DOTENV_MODEL}\n"
	if err := os.WriteFile(cfgPath, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("SORI_DOTENV_MODEL") })

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	node := cfg.Modules["provider.openai"]
	var prov struct {
		Model string `yaml:"model"`
	}
	if err := node.Decode(&prov); err != nil {
		t.Fatal(err)
	}
	if prov.Model != "gpt-test" {
		t.Errorf("model = %q, want value from .env", prov.Model)
	}
}

func TestLoad_DotEnvDoesNotOverride(t *testing.T) {
	t.Setenv("SORI_DOTENV_KEEP", "from-env")

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SORI_DOTENV_KEEP=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := LoadDotEnv(dir); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("SORI_DOTENV_KEEP"); got != "from-env" {
		t.Errorf("SORI_DOTENV_KEEP = %q, want from-env", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestScaffold_Parses(t *testing.T) {
	for _, opts := range []ScaffoldOptions{
		{},
		{Memory: "postgres", Provider: "anthropic", Speech: true, Eviction: "ttl"},
		{Eviction: "lru", Listen: ":9000"},
	} {
		t.Setenv("SORI_POSTGRES_DSN", "postgres://localhost/sori")
		t.Setenv("OPENAI_API_KEY", "sk-x")
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant-x")

		raw, err := Scaffold(opts)
		if err != nil {
			t.Fatalf("Scaffold(%+v): %v", opts, err)
		}
		cfg, err := Parse(raw)
		if err != nil {
			t.Fatalf("Parse scaffold %+v: %v\n%s", opts, err, raw)
		}
		if err := validateEngine(cfg); len(err) > 0 {
			t.Errorf("scaffold %+v engine invalid: %v", opts, err)
		}
		if _, ok := cfg.Modules["gateway.http"]; !ok {
			t.Errorf("scaffold %+v has no gateway.http", opts)
		}
	}
}
