// Package openai implements the provider.openai module: a model gateway on
// the OpenAI Chat Completions API with streaming support.
package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sori-ai/sori/internal/core"
	"github.com/sori-ai/sori/internal/provider"
	"github.com/sori-ai/sori/internal/security"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Provider{})
}

var (
	_ provider.StreamingGateway = (*Provider)(nil)
	_ provider.HealthChecker    = (*Provider)(nil)
	_ provider.Named            = (*Provider)(nil)
	_ core.Configurable         = (*Provider)(nil)
	_ core.Provisioner          = (*Provider)(nil)
	_ core.Validator            = (*Provider)(nil)
)

// Provider is an OpenAI-backed gateway.
type Provider struct {
	config Config
	logger *slog.Logger
	client openai.Client
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.openai",
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	if err := node.Decode(&p.config); err != nil {
		return fmt.Errorf("provider.openai: decode config: %w", err)
	}
	p.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.config.defaults()
	p.logger = ctx.Logger
	security.AddSecrets(ctx, p.config.APIKey)
	p.client = openai.NewClient(clientOptions(p.config)...)
	return nil
}

func clientOptions(cfg Config) []option.RequestOption {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(*cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Organization != "" {
		opts = append(opts, option.WithOrganization(cfg.Organization))
	}
	return opts
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	return p.config.validate()
}

// ModelName implements provider.Named.
func (p *Provider) ModelName() string {
	return p.config.Model
}

// Invoke implements provider.Gateway.
func (p *Provider) Invoke(ctx context.Context, prompt provider.Prompt) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, buildParams(p.config, prompt))
	if err != nil {
		return "", mapError(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", provider.ErrEmptyReply
	}
	p.logger.Debug("openai reply",
		"model", resp.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return resp.Choices[0].Message.Content, nil
}

// InvokeStream implements provider.StreamingGateway. It waits for the first
// event so that connection and HTTP errors are returned directly.
func (p *Provider) InvokeStream(ctx context.Context, prompt provider.Prompt) (<-chan provider.StreamChunk, error) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, buildParams(p.config, prompt))
	if !stream.Next() {
		err := stream.Err()
		_ = stream.Close()
		if err == nil {
			return nil, provider.ErrEmptyReply
		}
		return nil, mapError(err)
	}

	ch := make(chan provider.StreamChunk)
	go func() {
		defer close(ch)
		defer func() { _ = stream.Close() }()

		send := func(c provider.StreamChunk) bool {
			select {
			case ch <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			chunk := stream.Current()
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				if !send(provider.StreamChunk{Delta: chunk.Choices[0].Delta.Content}) {
					return
				}
			}
			if !stream.Next() {
				break
			}
		}
		if err := stream.Err(); err != nil {
			send(provider.StreamChunk{Err: mapError(err)})
		}
	}()
	return ch, nil
}

// HealthCheck implements provider.HealthChecker by looking up the model.
func (p *Provider) HealthCheck(ctx context.Context) error {
	if _, err := p.client.Models.Get(ctx, p.config.Model); err != nil {
		return mapError(err)
	}
	return nil
}
