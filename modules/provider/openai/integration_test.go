//go:build integration

package openai

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sori-ai/sori/internal/core"
	"github.com/sori-ai/sori/internal/provider"
	"github.com/sori-ai/sori/pkg/message"
)

// Run with: OPENAI_API_KEY=... go test -tags=integration ./modules/provider/openai/...

func liveProvider(t *testing.T, apiKey string) *Provider {
	t.Helper()
	p := &Provider{}
	if err := p.Configure(yamlNode(t, "api_key: "+apiKey+"\nmax_tokens: 32\nmax_retries: 0\n")); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := p.Provision(core.NewAppContext(nil, t.TempDir())); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	return p
}

func TestIntegration_RecallsHistory(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set")
	}
	p := liveProvider(t, apiKey)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := p.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}

	reply, err := p.Invoke(ctx, provider.Prompt{
		System: "Answer with a single word.",
		History: []message.Turn{
			{Role: message.RoleHuman, Content: "My dog is called Biscuit."},
			{Role: message.RoleAssistant, Content: "Noted."},
		},
		Message: "What is my dog called?",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.Contains(strings.ToLower(reply), "biscuit") {
		t.Errorf("reply = %q, want the dog's name", reply)
	}
}

func TestIntegration_BadKeyIsUnauthorized(t *testing.T) {
	if os.Getenv("OPENAI_API_KEY") == "" {
		t.Skip("OPENAI_API_KEY not set")
	}
	p := liveProvider(t, "sk-invalid")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := p.Invoke(ctx, provider.Prompt{Message: "hi"})
	if !errors.Is(err, provider.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}
