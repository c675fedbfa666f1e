// Package providertest provides test helpers for the provider package.
package providertest

import (
	"context"
	"sync"

	"github.com/sori-ai/sori/internal/provider"
)

// MockGateway is a configurable test double for provider.Gateway.
// Set the Func fields to control behavior. An unset InvokeFunc panics on
// call. All methods are safe for concurrent use.
type MockGateway struct {
	InvokeFunc      func(ctx context.Context, p provider.Prompt) (string, error)
	HealthCheckFunc func(ctx context.Context) error

	mu          sync.Mutex
	InvokeCalls int
	HealthCalls int
	Prompts     []provider.Prompt
}

// Invoke records the prompt and delegates to InvokeFunc.
func (m *MockGateway) Invoke(ctx context.Context, p provider.Prompt) (string, error) {
	m.mu.Lock()
	m.InvokeCalls++
	m.Prompts = append(m.Prompts, p)
	m.mu.Unlock()
	return m.InvokeFunc(ctx, p)
}

// HealthCheck delegates to HealthCheckFunc, succeeding when unset.
func (m *MockGateway) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	m.HealthCalls++
	m.mu.Unlock()
	if m.HealthCheckFunc == nil {
		return nil
	}
	return m.HealthCheckFunc(ctx)
}

// Calls returns the number of Invoke calls.
func (m *MockGateway) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.InvokeCalls
}

// LastPrompt returns the most recent prompt, or false if none was seen.
func (m *MockGateway) LastPrompt() (provider.Prompt, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Prompts) == 0 {
		return provider.Prompt{}, false
	}
	return m.Prompts[len(m.Prompts)-1], true
}

// MockStreamingGateway adds InvokeStream to MockGateway.
type MockStreamingGateway struct {
	MockGateway
	InvokeStreamFunc func(ctx context.Context, p provider.Prompt) (<-chan provider.StreamChunk, error)

	StreamCalls int
}

// InvokeStream records the prompt and delegates to InvokeStreamFunc.
func (m *MockStreamingGateway) InvokeStream(ctx context.Context, p provider.Prompt) (<-chan provider.StreamChunk, error) {
	m.mu.Lock()
	m.StreamCalls++
	m.Prompts = append(m.Prompts, p)
	m.mu.Unlock()
	return m.InvokeStreamFunc(ctx, p)
}

// Reply returns an InvokeFunc that always answers text.
func Reply(text string) func(context.Context, provider.Prompt) (string, error) {
	return func(context.Context, provider.Prompt) (string, error) { return text, nil }
}

// Fail returns an InvokeFunc that always fails with err.
func Fail(err error) func(context.Context, provider.Prompt) (string, error) {
	return func(context.Context, provider.Prompt) (string, error) { return "", err }
}

// Chunks returns an InvokeStreamFunc emitting the given deltas, then err
// if non-nil.
func Chunks(err error, deltas ...string) func(context.Context, provider.Prompt) (<-chan provider.StreamChunk, error) {
	return func(context.Context, provider.Prompt) (<-chan provider.StreamChunk, error) {
		ch := make(chan provider.StreamChunk, len(deltas)+1)
		for _, d := range deltas {
			ch <- provider.StreamChunk{Delta: d}
		}
		if err != nil {
			ch <- provider.StreamChunk{Err: err}
		}
		close(ch)
		return ch, nil
	}
}

// Interface guards.
var (
	_ provider.Gateway          = (*MockGateway)(nil)
	_ provider.HealthChecker    = (*MockGateway)(nil)
	_ provider.StreamingGateway = (*MockStreamingGateway)(nil)
)
