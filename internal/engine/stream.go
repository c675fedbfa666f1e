package engine

import (
	"context"
	"strings"

	"github.com/sori-ai/sori/internal/provider"
)

// EventKind identifies a StreamEvent.
type EventKind string

// Stream event kinds.
const (
	// EventAudio carries one audio chunk of the reply.
	EventAudio EventKind = "audio"
	// EventDelta carries an incremental piece of reply text.
	EventDelta EventKind = "delta"
	// EventText carries the complete reply text.
	EventText EventKind = "text"
	// EventWarning reports a degraded but delivered reply.
	EventWarning EventKind = "warning"
	// EventError reports a failed turn. No reply follows.
	EventError EventKind = "error"
	// EventDone ends a stream.
	EventDone EventKind = "done"
)

// StreamEvent is one item of a streamed turn.
type StreamEvent struct {
	Kind  EventKind
	Audio []byte
	Text  string
	Err   error
}

// emitter sends events until the consumer's context ends.
type emitter struct {
	ctx context.Context
	ch  chan<- StreamEvent
}

func (em emitter) send(ev StreamEvent) bool {
	select {
	case em.ch <- ev:
		return true
	case <-em.ctx.Done():
		return false
	}
}

// StreamTurn processes a turn like ProcessTurn, then delivers the reply
// as audio chunks followed by the full text and a done event.
//
// When synthesis fails the stream sends an ErrSynthesis warning and
// continues with the text. Audio events sent before that warning hold a
// truncated rendering; consumers must discard them and fall back to the
// text. A turn failure yields a single error event.
// The channel is closed after the last event. Consumers must drain it or
// cancel ctx.
func (e *Engine) StreamTurn(ctx context.Context, sessionID, text string) <-chan StreamEvent {
	ch := make(chan StreamEvent)
	go func() {
		defer close(ch)
		em := emitter{ctx: ctx, ch: ch}

		reply, err := e.ProcessTurn(ctx, sessionID, text)
		if reply == "" {
			em.send(StreamEvent{Kind: EventError, Err: err})
			return
		}

		if !e.speak(ctx, em, sessionID, reply) {
			return
		}
		if !em.send(StreamEvent{Kind: EventText, Text: reply}) {
			return
		}
		if err != nil {
			// Reply delivered but not recorded.
			if !em.send(StreamEvent{Kind: EventWarning, Err: err}) {
				return
			}
		}
		em.send(StreamEvent{Kind: EventDone})
	}()
	return ch
}

// speak streams the audio rendering of reply. It returns false when the
// consumer went away.
func (e *Engine) speak(ctx context.Context, em emitter, sessionID, reply string) bool {
	if e.synth == nil {
		return true
	}

	ctx, span := e.tracer.Start(ctx, "engine.Synthesize")
	defer span.End()

	audio, err := e.synth.Synthesize(ctx, reply)
	if err != nil {
		return e.synthesisFailed(ctx, em, sessionID, err)
	}
	for chunk := range audio {
		if chunk.Err != nil {
			for range audio {
			}
			return e.synthesisFailed(ctx, em, sessionID, chunk.Err)
		}
		if !em.send(StreamEvent{Kind: EventAudio, Audio: chunk.Data}) {
			// Unblock the producer so it can observe ctx and exit.
			go func() {
				for range audio {
				}
			}()
			return false
		}
	}
	return true
}

func (e *Engine) synthesisFailed(ctx context.Context, em emitter, sessionID string, err error) bool {
	e.metrics.SynthesisFailed()
	e.logger.WarnContext(ctx, "synthesis failed, falling back to text", "session", sessionID, "error", err)
	return em.send(StreamEvent{
		Kind: EventWarning,
		Err:  &TurnError{Kind: ErrSynthesis, Stage: StageSynthesize, SessionID: sessionID, Err: err},
	})
}

// StreamText processes a turn and delivers the reply text as deltas while
// the model produces it, then the full text and a done event. The reply is
// stored only after the model stream completes without error. Gateways
// without streaming support deliver the reply as a single delta.
func (e *Engine) StreamText(ctx context.Context, sessionID, text string) <-chan StreamEvent {
	ch := make(chan StreamEvent)
	go func() {
		defer close(ch)
		em := emitter{ctx: ctx, ch: ch}

		call := func(ctx context.Context, p provider.Prompt) (string, error) {
			return e.streamModel(ctx, em, p)
		}
		reply, err := e.turn(ctx, "engine.StreamText", sessionID, text, call)
		if reply == "" {
			em.send(StreamEvent{Kind: EventError, Err: err})
			return
		}
		if !em.send(StreamEvent{Kind: EventText, Text: reply}) {
			return
		}
		if err != nil {
			if !em.send(StreamEvent{Kind: EventWarning, Err: err}) {
				return
			}
		}
		em.send(StreamEvent{Kind: EventDone})
	}()
	return ch
}

func (e *Engine) streamModel(ctx context.Context, em emitter, p provider.Prompt) (string, error) {
	sg, ok := e.gateway.(provider.StreamingGateway)
	if !ok {
		reply, err := e.gateway.Invoke(ctx, p)
		if err != nil {
			return "", err
		}
		if reply != "" && !em.send(StreamEvent{Kind: EventDelta, Text: reply}) {
			return "", em.ctx.Err()
		}
		return reply, nil
	}

	chunks, err := sg.InvokeStream(ctx, p)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for chunk := range chunks {
		if chunk.Err != nil {
			for range chunks {
			}
			return "", chunk.Err
		}
		if chunk.Delta == "" {
			continue
		}
		sb.WriteString(chunk.Delta)
		if !em.send(StreamEvent{Kind: EventDelta, Text: chunk.Delta}) {
			go func() {
				for range chunks {
				}
			}()
			return "", em.ctx.Err()
		}
	}
	return sb.String(), nil
}
