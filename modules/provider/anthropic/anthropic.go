// Package anthropic implements the provider.anthropic module: a model
// gateway on the Anthropic Messages API with streaming support.
package anthropic

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sori-ai/sori/internal/core"
	"github.com/sori-ai/sori/internal/provider"
	"github.com/sori-ai/sori/internal/security"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Anthropic{})
}

var (
	_ core.Configurable         = (*Anthropic)(nil)
	_ core.Provisioner          = (*Anthropic)(nil)
	_ core.Validator            = (*Anthropic)(nil)
	_ provider.StreamingGateway = (*Anthropic)(nil)
	_ provider.HealthChecker    = (*Anthropic)(nil)
	_ provider.Named            = (*Anthropic)(nil)
)

// Anthropic is the provider.anthropic module.
type Anthropic struct {
	config Config
	apiKey string
	client sdkanthropic.Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (a *Anthropic) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.anthropic",
		New: func() core.Module { return &Anthropic{} },
	}
}

// Configure implements core.Configurable.
func (a *Anthropic) Configure(node *yaml.Node) error {
	if err := node.Decode(&a.config); err != nil {
		return fmt.Errorf("provider.anthropic: decode config: %w", err)
	}
	a.config.defaults()
	return nil
}

// Provision implements core.Provisioner. The key comes from api_key, or
// from the api_key_env variable when that is empty.
func (a *Anthropic) Provision(ctx *core.AppContext) error {
	a.config.defaults()
	a.logger = ctx.Logger

	a.apiKey = a.config.APIKey
	if a.apiKey == "" {
		a.apiKey = os.Getenv(a.config.APIKeyEnv)
	}
	security.AddSecrets(ctx, a.apiKey)

	opts := []option.RequestOption{option.WithMaxRetries(*a.config.MaxRetries)}
	if a.apiKey != "" {
		opts = append(opts, option.WithAPIKey(a.apiKey))
	}
	if a.config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(a.config.BaseURL))
	}
	a.client = sdkanthropic.NewClient(opts...)
	return nil
}

// Validate implements core.Validator.
func (a *Anthropic) Validate() error {
	if err := a.config.validate(); err != nil {
		return err
	}
	if a.apiKey == "" {
		return fmt.Errorf("provider.anthropic: api_key is required (or set %s)", a.config.APIKeyEnv)
	}
	return nil
}

// ModelName implements provider.Named.
func (a *Anthropic) ModelName() string {
	return a.config.Model
}

// Invoke implements provider.Gateway.
func (a *Anthropic) Invoke(ctx context.Context, p provider.Prompt) (string, error) {
	msg, err := a.client.Messages.New(ctx, buildParams(a.config, p))
	if err != nil {
		return "", mapError(err)
	}
	text := replyText(msg)
	if text == "" {
		return "", provider.ErrEmptyReply
	}
	a.logger.Debug("anthropic reply",
		"model", string(msg.Model),
		"input_tokens", msg.Usage.InputTokens,
		"output_tokens", msg.Usage.OutputTokens,
	)
	return text, nil
}
