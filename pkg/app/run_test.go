package app

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sori-ai/sori/internal/config"
	"github.com/sori-ai/sori/internal/core"
	"github.com/sori-ai/sori/internal/engine"
	"github.com/sori-ai/sori/internal/gateway"
	"github.com/sori-ai/sori/internal/metrics"
	"github.com/sori-ai/sori/internal/provider"
	"github.com/sori-ai/sori/internal/security"
)

func TestResolveConfigPath_XDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "sori")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfgPath := filepath.Join(cfgDir, "sori.yaml")
	if err := os.WriteFile(cfgPath, []byte("version: \"1\""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := ResolveConfigPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != cfgPath {
		t.Errorf("got %q, want %q", got, cfgPath)
	}
}

func TestResolveConfigPath_NotFound(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/nonexistent/path")
	t.Chdir(t.TempDir())

	if _, err := ResolveConfigPath(); err == nil {
		t.Error("expected error when no config file found")
	}
}

func TestDefaultDataDir(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	if got := DefaultDataDir(); got != "/custom/data/sori" {
		t.Errorf("got %q", got)
	}

	t.Setenv("XDG_DATA_HOME", "")
	home, _ := os.UserHomeDir()
	if got, want := DefaultDataDir(), filepath.Join(home, ".local", "share", "sori"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNewLogger_RedactsSecrets(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		cfg    config.LogConfig
		prefix string
	}{
		{name: "text", cfg: config.LogConfig{Level: "info", Format: "text"}, prefix: "time="},
		{name: "json", cfg: config.LogConfig{Level: "debug", Format: "json"}, prefix: "{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			r := security.NewRedactor()
			r.AddLiteral("sk-live-123456")

			logger := NewLogger(tt.cfg, &buf, r)
			logger.Info("calling gateway", "key", "sk-live-123456")
			logger.Debug("debug line")

			out := buf.String()
			if strings.Contains(out, "sk-live-123456") {
				t.Errorf("secret leaked: %s", out)
			}
			if !strings.HasPrefix(out, tt.prefix) {
				t.Errorf("output %q does not start with %q", out, tt.prefix)
			}
			if wantDebug := tt.cfg.Level == "debug"; strings.Contains(out, "debug line") != wantDebug {
				t.Errorf("debug line presence = %v, want %v", !wantDebug, wantDebug)
			}
		})
	}
}

func TestSplitModules(t *testing.T) {
	t.Parallel()

	backend, front := splitModules([]string{"gateway.http", "memory.sqlite", "provider.openai", "telemetry.otlp"})
	if strings.Join(front, ",") != "gateway.http" {
		t.Errorf("front = %v", front)
	}
	if strings.Join(backend, ",") != "memory.sqlite,provider.openai,telemetry.otlp" {
		t.Errorf("backend = %v", backend)
	}
}

// fakeOpenAI answers chat completions with a fixed reply.
func fakeOpenAI(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}]}`, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sori.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(baseURL, extra string) string {
	return fmt.Sprintf(`version: "1"
modules:
  memory.inmem: {}
  provider.openai:
    api_key: sk-app-test-secret
    base_url: %s/v1/
    max_retries: 0
  gateway.http:
    bind: "127.0.0.1:0"
engine:
  model_timeout: 5s
%s`, baseURL, extra)
}

func TestBuild_WiresEngine(t *testing.T) {
	t.Parallel()

	srv := fakeOpenAI(t, "Hello there")
	var logs bytes.Buffer
	rt, err := Build(Params{
		ConfigPath: writeConfig(t, testConfig(srv.URL, "  sessions:\n    eviction: ttl\n    max_idle: 1h\n")),
		DataDir:    t.TempDir(),
		LogOutput:  &logs,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close()

	ctx := rt.App.Context()
	for _, name := range []string{engine.ServiceName, provider.ChainService, metrics.ServiceName, gateway.RateLimiterService, security.RedactorService} {
		if _, ok := ctx.GetService(name); !ok {
			t.Errorf("service %q not registered", name)
		}
	}
	for _, id := range []core.ModuleID{"memory.inmem", "provider.openai", "gateway.http", engineModuleID, schedulerModuleID} {
		if _, ok := rt.App.Module(id); !ok {
			t.Errorf("module %q not loaded", id)
		}
	}
	if got := rt.Scheduler.Jobs(); strings.Join(got, ",") != "session_eviction,ratelimit_sweep" {
		t.Errorf("jobs = %v", got)
	}

	reply, err := rt.Engine.ProcessTurn(context.Background(), "u1", "hi")
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if reply != "Hello there" {
		t.Errorf("reply = %q", reply)
	}
	turns, err := rt.Engine.History(context.Background(), "u1")
	if err != nil || len(turns) != 2 {
		t.Fatalf("history = %v, %v", turns, err)
	}

	rt.Logger.Info("key check", "key", "sk-app-test-secret")
	if strings.Contains(logs.String(), "sk-app-test-secret") {
		t.Error("provider api key reached the logs")
	}
}

func TestBuild_OneShotSkipsGatewayAndScheduler(t *testing.T) {
	t.Parallel()

	srv := fakeOpenAI(t, "ok")
	rt, err := Build(Params{
		ConfigPath: writeConfig(t, testConfig(srv.URL, "")),
		DataDir:    t.TempDir(),
		LogOutput:  &bytes.Buffer{},
		OneShot:    true,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close()

	if _, ok := rt.App.Module("gateway.http"); ok {
		t.Error("gateway.http loaded in one-shot mode")
	}
	if rt.Scheduler != nil {
		t.Error("scheduler built in one-shot mode")
	}
	if rt.Engine == nil {
		t.Fatal("engine not built")
	}
}

func TestBuild_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  string
		wantErr string
	}{
		{name: "missing file", wantErr: "reading"},
		{name: "invalid", config: "version: \"2\"\n", wantErr: "unsupported version"},
		{
			name:    "gateway not a provider",
			config:  "version: \"1\"\nmodules:\n  memory.inmem: {}\n  provider.openai:\n    api_key: k\nengine:\n  gateways: [memory.inmem]\n",
			wantErr: "not a provider module",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "missing.yaml")
			if tt.config != "" {
				path = writeConfig(t, tt.config)
			}
			_, err := Build(Params{ConfigPath: path, DataDir: t.TempDir(), LogOutput: &bytes.Buffer{}})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Build = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := fakeOpenAI(t, "ok")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Run(ctx, Params{
		ConfigPath: writeConfig(t, testConfig(srv.URL, "")),
		DataDir:    t.TempDir(),
		LogOutput:  &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
}
