package core

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// stubModule records the lifecycle calls LoadModule makes.
type stubModule struct {
	id           ModuleID
	calls        *[]string
	gotKey       *string
	configErr    error
	provisionErr error
	validateErr  error
}

func (m *stubModule) ModuleInfo() ModuleInfo {
	return ModuleInfo{ID: m.id, New: func() Module { cp := *m; return &cp }}
}

func (m *stubModule) record(call string) {
	if m.calls != nil {
		*m.calls = append(*m.calls, call)
	}
}

func (m *stubModule) Configure(node *yaml.Node) error {
	m.record("configure")
	var cfg struct {
		Key string `yaml:"key"`
	}
	if err := node.Decode(&cfg); err != nil {
		return err
	}
	if m.gotKey != nil {
		*m.gotKey = cfg.Key
	}
	return m.configErr
}

func (m *stubModule) Provision(ctx *AppContext) error {
	m.record("provision")
	ctx.RegisterService(string(m.id)+".svc", m)
	return m.provisionErr
}

func (m *stubModule) Validate() error {
	m.record("validate")
	return m.validateErr
}

func yamlNode(t *testing.T, s string) yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(s), &doc); err != nil {
		t.Fatal(err)
	}
	return *doc.Content[0]
}

func TestAppContext_LoadModule(t *testing.T) {
	tests := []struct {
		name      string
		mod       stubModule
		config    string
		wantCalls string
		wantErr   string
	}{
		{name: "with config", mod: stubModule{}, config: "key: hello", wantCalls: "configure,provision,validate"},
		{name: "without config skips configure", mod: stubModule{}, wantCalls: "provision,validate"},
		{name: "configure error", mod: stubModule{configErr: errors.New("bad key")}, config: "key: x", wantCalls: "configure", wantErr: "configuring module"},
		{name: "provision error", mod: stubModule{provisionErr: errors.New("db down")}, wantCalls: "provision", wantErr: "provisioning module"},
		{name: "validate error", mod: stubModule{validateErr: errors.New("no key")}, wantCalls: "provision,validate", wantErr: "validating module"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(resetRegistry)

			var calls []string
			var gotKey string
			mod := tt.mod
			mod.id, mod.calls, mod.gotKey = "memory.stub", &calls, &gotKey
			RegisterModule(&mod)

			ctx := NewAppContext(nil, t.TempDir())
			if tt.config != "" {
				ctx = ctx.WithModuleConfigs(map[string]yaml.Node{"memory.stub": yamlNode(t, tt.config)})
			}

			instance, err := ctx.LoadModule("memory.stub")
			if got := strings.Join(calls, ","); got != tt.wantCalls {
				t.Errorf("calls = %s, want %s", got, tt.wantCalls)
			}
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil || instance == nil {
				t.Fatalf("LoadModule = %v, %v", instance, err)
			}
			if tt.config != "" && gotKey != "hello" {
				t.Errorf("config key = %q", gotKey)
			}
			if _, ok := ctx.GetService("memory.stub.svc"); !ok {
				t.Error("service published during Provision not visible on the root context")
			}
		})
	}
}

func TestAppContext_LoadModule_Unknown(t *testing.T) {
	t.Cleanup(resetRegistry)

	if _, err := NewAppContext(nil, "/data").LoadModule("memory.nope"); err == nil {
		t.Fatal("expected error for unknown module")
	}
}

func TestAppContext_ForModule(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	root := NewAppContext(logger, "/data").WithModuleConfigs(map[string]yaml.Node{"memory.sqlite": yamlNode(t, "path: x")})
	child := root.ForModule("memory.sqlite")
	child.Logger.Info("opened")
	// A second child must not inherit the first child's tag.
	root.ForModule("gateway.http").Logger.Info("listening")

	out := buf.String()
	if !strings.Contains(out, "module=memory.sqlite") || !strings.Contains(out, "module=gateway.http") {
		t.Errorf("module tags missing: %s", out)
	}
	if strings.Count(out, "module=") != 2 {
		t.Errorf("tags leaked between modules: %s", out)
	}
	if _, ok := child.moduleConfigs["memory.sqlite"]; !ok {
		t.Error("ForModule dropped module configs")
	}
	if child.DataDir != "/data" {
		t.Errorf("DataDir = %q", child.DataDir)
	}
}

func TestLookup(t *testing.T) {
	ctx := NewAppContext(nil, "/data")
	ctx.ForModule("memory.sqlite").RegisterService("memory.backend", 42)

	n, err := Lookup[int](ctx.ForModule("gateway.http"), "memory.backend")
	if err != nil || n != 42 {
		t.Fatalf("Lookup = %d, %v", n, err)
	}
	if _, err := Lookup[string](ctx, "memory.backend"); err == nil || !strings.Contains(err.Error(), "has type int") {
		t.Errorf("wrong type err = %v", err)
	}
	if _, err := Lookup[int](ctx, "engine"); !errors.Is(err, ErrNoService) {
		t.Errorf("missing err = %v, want ErrNoService", err)
	}
}

func TestModuleID(t *testing.T) {
	tests := []struct {
		id        ModuleID
		namespace string
		name      string
	}{
		{"memory.sqlite", "memory", "sqlite"},
		{"provider.openai", "provider", "openai"},
		{"telemetry.otlp", "telemetry", "otlp"},
		{"engine", "engine", "engine"},
	}
	for _, tt := range tests {
		if got := tt.id.Namespace(); got != tt.namespace {
			t.Errorf("%s.Namespace() = %q, want %q", tt.id, got, tt.namespace)
		}
		if got := tt.id.Name(); got != tt.name {
			t.Errorf("%s.Name() = %q, want %q", tt.id, got, tt.name)
		}
	}
}
