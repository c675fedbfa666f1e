package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/sori-ai/sori/internal/provider"
)

var textEvents = []string{
	"event: message_start\ndata: {\"type\":\"message_start\",\"message\":{\"id\":\"msg_1\",\"type\":\"message\",\"role\":\"assistant\",\"content\":[],\"model\":\"claude-3-5-haiku-latest\",\"stop_reason\":null,\"stop_sequence\":null,\"usage\":{\"input_tokens\":10,\"output_tokens\":0}}}",
	"event: content_block_start\ndata: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"text\",\"text\":\"\"}}",
	"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"Hello\"}}",
	"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\" world\"}}",
	"event: content_block_stop\ndata: {\"type\":\"content_block_stop\",\"index\":0}",
	"event: message_delta\ndata: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"end_turn\",\"stop_sequence\":null},\"usage\":{\"output_tokens\":5}}",
	"event: message_stop\ndata: {\"type\":\"message_stop\"}",
}

func sseHandler(t *testing.T, events []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !decodeRequest(t, r).Stream {
			t.Error("stream flag not set")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Error("expected http.Flusher")
			return
		}
		for _, ev := range events {
			_, _ = w.Write([]byte(ev + "\n\n"))
			flusher.Flush()
		}
	}
}

func TestInvokeStream_Text(t *testing.T) {
	t.Parallel()

	a := newTestProvider(t, sseHandler(t, textEvents))

	ch, err := a.InvokeStream(context.Background(), testPrompt())
	if err != nil {
		t.Fatalf("InvokeStream: %v", err)
	}

	var content strings.Builder
	var deltas int
	for chunk := range ch {
		if chunk.Err != nil {
			t.Fatalf("stream error: %v", chunk.Err)
		}
		content.WriteString(chunk.Delta)
		deltas++
	}
	if content.String() != "Hello world" {
		t.Errorf("content = %q, want %q", content.String(), "Hello world")
	}
	if deltas != 2 {
		t.Errorf("deltas = %d, want 2", deltas)
	}
}

func TestInvokeStream_InitialError(t *testing.T) {
	t.Parallel()

	a := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"down"}}`))
	})

	ch, err := a.InvokeStream(context.Background(), testPrompt())
	if !errors.Is(err, provider.ErrProviderDown) {
		t.Fatalf("err = %v, want ErrProviderDown", err)
	}
	if ch != nil {
		t.Error("expected nil channel on initial error")
	}
}

func TestInvokeStream_ConsumerGone(t *testing.T) {
	t.Parallel()

	a := newTestProvider(t, sseHandler(t, textEvents))
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := a.InvokeStream(ctx, testPrompt())
	if err != nil {
		t.Fatalf("InvokeStream: %v", err)
	}
	cancel()
	for range ch {
	}
}
