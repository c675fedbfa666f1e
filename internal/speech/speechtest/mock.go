// Package speechtest provides test doubles for the speech package.
package speechtest

import (
	"context"
	"sync"

	"github.com/sori-ai/sori/internal/speech"
)

// MockSynthesizer is a configurable test double for speech.Synthesizer.
// An unset SynthesizeFunc panics on call.
type MockSynthesizer struct {
	SynthesizeFunc func(ctx context.Context, text string) (<-chan speech.AudioChunk, error)

	mu    sync.Mutex
	Texts []string
}

// Synthesize records text and delegates to SynthesizeFunc.
func (m *MockSynthesizer) Synthesize(ctx context.Context, text string) (<-chan speech.AudioChunk, error) {
	m.mu.Lock()
	m.Texts = append(m.Texts, text)
	m.mu.Unlock()
	return m.SynthesizeFunc(ctx, text)
}

// Format reports mp3.
func (m *MockSynthesizer) Format() string { return "mp3" }

// Calls returns the number of Synthesize calls.
func (m *MockSynthesizer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Texts)
}

// Chunks returns a SynthesizeFunc that emits each part as a chunk and then,
// if err is non-nil, a final error chunk.
func Chunks(err error, parts ...string) func(context.Context, string) (<-chan speech.AudioChunk, error) {
	return func(context.Context, string) (<-chan speech.AudioChunk, error) {
		ch := make(chan speech.AudioChunk, len(parts)+1)
		for _, p := range parts {
			ch <- speech.AudioChunk{Data: []byte(p)}
		}
		if err != nil {
			ch <- speech.AudioChunk{Err: err}
		}
		close(ch)
		return ch, nil
	}
}

// Fail returns a SynthesizeFunc that fails at setup.
func Fail(err error) func(context.Context, string) (<-chan speech.AudioChunk, error) {
	return func(context.Context, string) (<-chan speech.AudioChunk, error) {
		return nil, err
	}
}

var _ speech.Synthesizer = (*MockSynthesizer)(nil)
