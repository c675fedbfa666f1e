package anthropic

import (
	"context"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/sori-ai/sori/internal/provider"
)

// InvokeStream implements provider.StreamingGateway. The first event is
// read synchronously so connection and HTTP errors are returned directly,
// letting a failover chain move on.
func (a *Anthropic) InvokeStream(ctx context.Context, p provider.Prompt) (<-chan provider.StreamChunk, error) {
	stream := a.client.Messages.NewStreaming(ctx, buildParams(a.config, p))

	if !stream.Next() {
		err := stream.Err()
		_ = stream.Close()
		if err != nil {
			return nil, mapError(err)
		}
		return nil, provider.ErrEmptyReply
	}

	ch := make(chan provider.StreamChunk)
	go func() {
		defer close(ch)
		defer func() { _ = stream.Close() }()

		for {
			if text := textDelta(stream.Current()); text != "" {
				if !emit(ctx, ch, provider.StreamChunk{Delta: text}) {
					return
				}
			}
			if !stream.Next() {
				break
			}
		}
		if err := stream.Err(); err != nil {
			emit(ctx, ch, provider.StreamChunk{Err: mapError(err)})
		}
	}()
	return ch, nil
}

// textDelta extracts the text carried by a content_block_delta event.
func textDelta(ev sdkanthropic.MessageStreamEventUnion) string {
	delta, ok := ev.AsAny().(sdkanthropic.ContentBlockDeltaEvent)
	if !ok {
		return ""
	}
	if td, ok := delta.Delta.AsAny().(sdkanthropic.TextDelta); ok {
		return td.Text
	}
	return ""
}

// emit sends chunk unless ctx is done first.
func emit(ctx context.Context, ch chan<- provider.StreamChunk, chunk provider.StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
