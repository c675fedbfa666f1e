package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/sori-ai/sori/internal/engine"
	"github.com/sori-ai/sori/internal/memory/memorytest"
	"github.com/sori-ai/sori/internal/provider"
	"github.com/sori-ai/sori/internal/provider/providertest"
	"github.com/sori-ai/sori/pkg/message"
)

type fixture struct {
	history  *memorytest.MockHistoryStore
	profiles *memorytest.MockProfileStore
	engine   *engine.Engine
}

// newFixture builds an engine over fresh in-memory stores. mutate may
// adjust the config before the engine is created.
func newFixture(t *testing.T, gw provider.Gateway, mutate ...func(*engine.Config)) *fixture {
	t.Helper()

	f := &fixture{
		history:  memorytest.NewMockHistoryStore(),
		profiles: memorytest.NewMockProfileStore(),
	}
	cfg := engine.Config{
		History:      f.history,
		Profiles:     f.profiles,
		Gateway:      gw,
		ModelTimeout: 2 * time.Second,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	e, err := engine.New(cfg)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	f.engine = e
	return f
}

func (f *fixture) turns(t *testing.T, sessionID string) []message.Turn {
	t.Helper()
	turns, err := f.history.Inner.ReadAll(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return turns
}

func replyGateway(text string) *providertest.MockGateway {
	return &providertest.MockGateway{InvokeFunc: providertest.Reply(text)}
}

type roleContent struct {
	role    message.Role
	content string
}

func assertTurns(t *testing.T, got []message.Turn, want ...roleContent) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d turns, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i].Role != want[i].role || got[i].Content != want[i].content {
			t.Errorf("turn[%d] = %s:%q, want %s:%q", i, got[i].Role, got[i].Content, want[i].role, want[i].content)
		}
	}
}

func human(s string) roleContent     { return roleContent{message.RoleHuman, s} }
func assistant(s string) roleContent { return roleContent{message.RoleAssistant, s} }

func intPtr(v int) *int { return &v }

// collect drains a stream with a deadline.
func collect(t *testing.T, ch <-chan engine.StreamEvent) []engine.StreamEvent {
	t.Helper()
	var events []engine.StreamEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("stream did not finish, got %d events", len(events))
			return nil
		}
	}
}

func kinds(events []engine.StreamEvent) []engine.EventKind {
	out := make([]engine.EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}
