package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sori-ai/sori/internal/engine"
	"github.com/sori-ai/sori/internal/metrics"
)

// Voice frame types sent to the client. Audio itself travels in binary
// frames.
const (
	frameDelta   = "delta"
	frameText    = "text"
	frameWarning = "warning"
	frameError   = "error"
	frameDone    = "done"
)

type voiceRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
	// Mode "text" streams reply deltas from the model instead of audio.
	Mode string `json:"mode"`
}

type voiceFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Format  string `json:"format,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Error   string `json:"error,omitempty"`
	Saved   *bool  `json:"saved,omitempty"`
	// DiscardAudio is set on a synthesis warning that follows audio
	// frames. The audio already received is truncated and must be dropped.
	DiscardAudio bool `json:"discardAudio,omitempty"`
}

// handleVoice serves many turns over one websocket. Each text frame is a
// turn request; the reply arrives as binary audio frames in order, then a
// text frame and a done frame.
func (g *Gateway) handleVoice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The server write timeout would otherwise cut long-lived sockets.
		rc := http.NewResponseController(w)
		_ = rc.SetReadDeadline(time.Time{})
		_ = rc.SetWriteDeadline(time.Time{})

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: g.config.OriginPatterns})
		if err != nil {
			g.logger.Debug("voice upgrade failed", "error", err)
			return
		}
		defer func() { _ = conn.CloseNow() }()
		conn.SetReadLimit(int64(g.config.Limits.MaxBytes))

		g.metrics.VoiceConnected(1)
		defer g.metrics.VoiceConnected(-1)

		// Reads run on their own goroutine so a client that disconnects
		// mid-turn cancels that turn.
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		requestID := RequestIDFrom(ctx)
		frames := make(chan inboundFrame)
		go func() {
			defer cancel()
			defer close(frames)
			for {
				typ, data, err := conn.Read(ctx)
				if err != nil {
					switch websocket.CloseStatus(err) {
					case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					default:
						g.logger.Debug("voice connection ended", "error", err, "request_id", requestID)
					}
					return
				}
				select {
				case frames <- inboundFrame{typ: typ, data: data}:
				case <-ctx.Done():
					return
				}
			}
		}()

		for in := range frames {
			if err := g.serveFrame(ctx, conn, in); err != nil {
				g.logger.Debug("voice write failed", "error", err, "request_id", requestID)
				return
			}
		}
	}
}

type inboundFrame struct {
	typ  websocket.MessageType
	data []byte
}

// serveFrame answers one client frame. Only write errors are returned.
func (g *Gateway) serveFrame(ctx context.Context, conn *websocket.Conn, in inboundFrame) error {
	if in.typ != websocket.MessageText {
		return g.send(ctx, conn, voiceFrame{Type: frameError, Kind: metrics.OutcomeInvalidInput, Error: "expected a JSON text frame"})
	}
	var req voiceRequest
	if err := decodePayload(g.config.Limits, in.data, &req); err != nil {
		return g.send(ctx, conn, voiceFrame{Type: frameError, Kind: metrics.OutcomeInvalidInput, Error: "invalid JSON frame"})
	}
	if req.UserID == "" {
		return g.send(ctx, conn, voiceFrame{Type: frameError, Kind: missingUserID.Kind, Error: missingUserID.Error})
	}
	if err := g.turns.Allow(req.UserID); err != nil {
		return g.send(ctx, conn, voiceFrame{Type: frameError, Kind: "rate_limited", Error: "too many messages"})
	}
	return g.relay(ctx, conn, req)
}

// relay runs one turn and forwards its events. A write error cancels the
// turn; the human message stays persisted.
func (g *Gateway) relay(ctx context.Context, conn *websocket.Conn, req voiceRequest) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var events <-chan engine.StreamEvent
	if req.Mode == "text" {
		events = g.conv.StreamText(ctx, req.UserID, req.Message)
	} else {
		events = g.conv.StreamTurn(ctx, req.UserID, req.Message)
	}

	audioSent := false
	for ev := range events {
		var err error
		switch ev.Kind {
		case engine.EventAudio:
			audioSent = true
			err = g.write(ctx, conn, websocket.MessageBinary, ev.Audio)
		case engine.EventDelta:
			err = g.send(ctx, conn, voiceFrame{Type: frameDelta, Content: ev.Text})
		case engine.EventText:
			f := voiceFrame{Type: frameText, Content: ev.Text}
			if audioSent {
				f.Format = g.conv.AudioFormat()
			}
			err = g.send(ctx, conn, f)
		case engine.EventWarning:
			f := voiceFrame{Type: frameWarning, Kind: metrics.OutcomeReplyNotStored}
			if errors.Is(ev.Err, engine.ErrSynthesis) {
				f.Kind = "synthesis_failed"
				f.DiscardAudio = audioSent
				audioSent = false
			}
			err = g.send(ctx, conn, f)
		case engine.EventError:
			_, resp := turnFailure(ev.Err)
			err = g.send(ctx, conn, voiceFrame{Type: frameError, Kind: resp.Kind, Error: resp.Error, Saved: resp.Saved})
		case engine.EventDone:
			err = g.send(ctx, conn, voiceFrame{Type: frameDone})
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (g *Gateway) send(ctx context.Context, conn *websocket.Conn, f voiceFrame) error {
	ctx, cancel := context.WithTimeout(ctx, g.config.WriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, f)
}

func (g *Gateway) write(ctx context.Context, conn *websocket.Conn, typ websocket.MessageType, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, g.config.WriteTimeout)
	defer cancel()
	return conn.Write(ctx, typ, data)
}
