// Package openai implements the speech.openai module: a speech synthesizer
// on the OpenAI audio speech endpoint. The encoded audio is relayed in
// fixed-size chunks as it arrives.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sori-ai/sori/internal/core"
	"github.com/sori-ai/sori/internal/security"
	"github.com/sori-ai/sori/internal/speech"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Synthesizer{})
}

var (
	_ speech.Synthesizer = (*Synthesizer)(nil)
	_ core.Configurable  = (*Synthesizer)(nil)
	_ core.Provisioner   = (*Synthesizer)(nil)
	_ core.Validator     = (*Synthesizer)(nil)
)

// Synthesizer is the speech.openai module.
type Synthesizer struct {
	config Config
	logger *slog.Logger
	client openai.Client
}

// ModuleInfo implements core.Module.
func (s *Synthesizer) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "speech.openai",
		New: func() core.Module { return &Synthesizer{} },
	}
}

// Configure implements core.Configurable.
func (s *Synthesizer) Configure(node *yaml.Node) error {
	if err := node.Decode(&s.config); err != nil {
		return fmt.Errorf("speech.openai: decode config: %w", err)
	}
	s.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (s *Synthesizer) Provision(ctx *core.AppContext) error {
	s.config.defaults()
	s.logger = ctx.Logger
	security.AddSecrets(ctx, s.config.APIKey)

	opts := []option.RequestOption{
		option.WithAPIKey(s.config.APIKey),
		option.WithMaxRetries(*s.config.MaxRetries),
	}
	if s.config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(s.config.BaseURL))
	}
	s.client = openai.NewClient(opts...)
	return nil
}

// Validate implements core.Validator.
func (s *Synthesizer) Validate() error {
	return s.config.validate()
}

// Format implements speech.Synthesizer.
func (s *Synthesizer) Format() string {
	return s.config.Format
}

// Synthesize implements speech.Synthesizer. HTTP errors are returned
// directly; read errors end the stream with an error chunk.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (<-chan speech.AudioChunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, speech.ErrEmptyText
	}

	params := openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(s.config.Model),
		Voice:          openai.AudioSpeechNewParamsVoice(s.config.Voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormat(s.config.Format),
	}
	if s.config.Speed != 0 {
		params.Speed = openai.Float(s.config.Speed)
	}

	resp, err := s.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("speech.openai: %w", err)
	}

	ch := make(chan speech.AudioChunk)
	go func() {
		defer close(ch)
		defer func() { _ = resp.Body.Close() }()

		send := func(c speech.AudioChunk) bool {
			select {
			case ch <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		buf := make([]byte, s.config.ChunkSize)
		var total int
		for {
			n, err := io.ReadFull(resp.Body, buf)
			if n > 0 {
				total += n
				if !send(speech.AudioChunk{Data: bytes.Clone(buf[:n])}) {
					return
				}
			}
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
				s.logger.Debug("speech synthesized", "bytes", total, "format", s.config.Format)
				return
			case err != nil:
				send(speech.AudioChunk{Err: fmt.Errorf("speech.openai: read audio: %w", err)})
				return
			}
		}
	}()
	return ch, nil
}
