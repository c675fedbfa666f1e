package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sori-ai/sori/internal/config"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion_ListsModules(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"sori dev", "gateway.http", "memory.sqlite", "provider.anthropic", "speech.openai"} {
		if !strings.Contains(out, want) {
			t.Errorf("version output missing %q:\n%s", want, out)
		}
	}
}

func TestInit_WritesValidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sori.yaml")

	out, err := execute(t, "init", "--interactive=false", "--output", path, "--provider", "anthropic", "--eviction", "ttl")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out, "Wrote "+path) {
		t.Errorf("output = %q", out)
	}

	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if _, ok := cfg.Modules["provider.anthropic"]; !ok {
		t.Error("provider.anthropic missing from scaffold")
	}

	if _, err := execute(t, "init", "--interactive=false", "--output", path); err == nil {
		t.Error("expected refusal to overwrite")
	}
	if _, err := execute(t, "init", "--interactive=false", "--output", path, "--force"); err != nil {
		t.Errorf("init --force: %v", err)
	}
}

// setupConfig writes a config backed by a sqlite file and a fake OpenAI
// server that echoes a fixed reply.
func setupConfig(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"Good morning!"},"finish_reason":"stop"}]}`)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	raw := fmt.Sprintf(`version: "1"
modules:
  memory.sqlite:
    path: %s
  provider.openai:
    api_key: sk-cli-test
    base_url: %s/v1/
    max_retries: 0
log:
  level: error
`, filepath.Join(dir, "sori.db"), srv.URL)
	path := filepath.Join(dir, "sori.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestChatProfileHistory(t *testing.T) {
	cfg := setupConfig(t)
	dataDir := t.TempDir()
	run := func(args ...string) string {
		t.Helper()
		out, err := execute(t, append(args, "--config", cfg, "--data-dir", dataDir)...)
		if err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		return out
	}

	if out := run("profile", "set", "--session", "u1", "--age", "72", "--interests", "gardening,chess"); !strings.Contains(out, "Profile saved for u1") {
		t.Errorf("profile set output = %q", out)
	}
	if out := run("profile", "get", "--session", "u1"); !strings.Contains(out, "72") || !strings.Contains(out, "gardening, chess") {
		t.Errorf("profile get output = %q", out)
	}
	if out := run("chat", "--session", "u1", "hello", "there"); strings.TrimSpace(out) != "Good morning!" {
		t.Errorf("chat output = %q", out)
	}

	out := run("history", "--session", "u1")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("history lines = %q", lines)
	}
	if !strings.Contains(lines[0], "human") || !strings.Contains(lines[0], "hello there") {
		t.Errorf("first turn = %q", lines[0])
	}
	if !strings.Contains(lines[1], "assistant") || !strings.Contains(lines[1], "Good morning!") {
		t.Errorf("second turn = %q", lines[1])
	}

	if out := run("history", "--session", "nobody"); !strings.Contains(out, "No history for nobody") {
		t.Errorf("empty history output = %q", out)
	}
}

func TestChat_SpeakWithoutSpeechModule(t *testing.T) {
	cfg := setupConfig(t)
	_, err := execute(t, "chat", "--session", "u1", "--speak", filepath.Join(t.TempDir(), "out.mp3"), "hi", "--config", cfg, "--data-dir", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "no speech module") {
		t.Fatalf("err = %v", err)
	}
}

func TestChat_RequiresSession(t *testing.T) {
	if _, err := execute(t, "chat", "hello"); err == nil {
		t.Fatal("expected missing --session error")
	}
}

func TestConfigCheck(t *testing.T) {
	cfg := setupConfig(t)
	out, err := execute(t, "config", "check", cfg, "--data-dir", t.TempDir())
	if err != nil {
		t.Fatalf("config check: %v", err)
	}
	for _, want := range []string{"Configuration OK", "memory.sqlite", "Gateway order: [provider.openai]"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStatusText(t *testing.T) {
	t.Parallel()
	if statusText(0) != "unknown" {
		t.Error("zero status should be unknown")
	}
}
