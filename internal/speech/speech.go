// Package speech defines the speech synthesis contract used to render a
// completed reply as a stream of audio chunks.
package speech

import (
	"bytes"
	"context"
	"errors"
)

// ErrEmptyText is returned when there is nothing to synthesize.
var ErrEmptyText = errors.New("speech: empty text")

// AudioChunk is one piece of encoded audio. A chunk with a non-nil Err is
// the last one the stream delivers.
type AudioChunk struct {
	Data []byte
	Err  error
}

// Synthesizer turns text into an ordered, finite stream of audio chunks.
// Concatenating the chunks in delivery order yields a valid audio file in
// the synthesizer's Format. The channel is closed when the stream ends;
// it cannot be restarted. Setup errors are returned directly.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (<-chan AudioChunk, error)
	Format() string
}

// Collect drains a stream into a single buffer.
func Collect(ch <-chan AudioChunk) ([]byte, error) {
	var buf bytes.Buffer
	for chunk := range ch {
		if chunk.Err != nil {
			for range ch {
			}
			return buf.Bytes(), chunk.Err
		}
		buf.Write(chunk.Data)
	}
	return buf.Bytes(), nil
}

// ContentType maps an audio format name to its MIME type.
func ContentType(format string) string {
	switch format {
	case "mp3":
		return "audio/mpeg"
	case "opus":
		return "audio/ogg"
	case "aac":
		return "audio/aac"
	case "flac":
		return "audio/flac"
	case "wav":
		return "audio/wav"
	case "pcm":
		return "audio/L16"
	default:
		return "application/octet-stream"
	}
}
