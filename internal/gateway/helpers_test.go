package gateway

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sori-ai/sori/internal/engine"
	"github.com/sori-ai/sori/internal/memory/memorytest"
	"github.com/sori-ai/sori/internal/metrics"
	"github.com/sori-ai/sori/internal/provider"
	"github.com/sori-ai/sori/internal/security"
	"github.com/sori-ai/sori/internal/speech"
	"gopkg.in/yaml.v3"
)

func mustYAMLNode(t *testing.T, s string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(s), &doc); err != nil {
		t.Fatalf("yaml.Unmarshal: %v", err)
	}
	return doc.Content[0]
}

type harness struct {
	gw       *Gateway
	srv      *httptest.Server
	history  *memorytest.MockHistoryStore
	profiles *memorytest.MockProfileStore
	engine   *engine.Engine
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	synth  speech.Synthesizer
	chain  *provider.Chain
	config Config
}

func withSynth(s speech.Synthesizer) harnessOption {
	return func(c *harnessConfig) { c.synth = s }
}

func withChain(ch *provider.Chain) harnessOption {
	return func(c *harnessConfig) { c.chain = ch }
}

func withConfig(fn func(*Config)) harnessOption {
	return func(c *harnessConfig) { fn(&c.config) }
}

// newHarness serves a gateway over a real engine with mock stores.
func newHarness(t *testing.T, gw provider.Gateway, opts ...harnessOption) *harness {
	t.Helper()
	var hc harnessConfig
	for _, o := range opts {
		o(&hc)
	}
	hc.config.defaults()

	h := &harness{
		history:  memorytest.NewMockHistoryStore(),
		profiles: memorytest.NewMockProfileStore(),
	}
	m := metrics.New()
	eng, err := engine.New(engine.Config{
		History:      h.history,
		Profiles:     h.profiles,
		Gateway:      gw,
		Synthesizer:  hc.synth,
		ModelTimeout: 5 * time.Second,
		Metrics:      m,
	})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	h.engine = eng

	h.gw = &Gateway{
		config:  hc.config,
		logger:  slog.New(slog.DiscardHandler),
		turns:   security.NewRateLimiter(hc.config.RateLimit.MessagesPerMin, time.Minute),
		auths:   security.NewRateLimiter(hc.config.RateLimit.AuthPerMin, time.Minute),
		conv:    eng,
		chain:   hc.chain,
		metrics: m,
	}
	h.srv = httptest.NewServer(h.gw.buildRouter())
	t.Cleanup(h.srv.Close)
	return h
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}
