package openai

import (
	"github.com/openai/openai-go"
	"github.com/sori-ai/sori/internal/provider"
	"github.com/sori-ai/sori/pkg/message"
)

// buildParams renders a prompt as a chat completion request: the persona
// as the system message, then the trimmed history, then the new message.
func buildParams(cfg Config, p provider.Prompt) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(p.History)+2)
	if p.System != "" {
		msgs = append(msgs, openai.SystemMessage(p.System))
	}
	for _, t := range p.History {
		switch t.Role {
		case message.RoleHuman:
			msgs = append(msgs, openai.UserMessage(t.Content))
		case message.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(t.Content))
		}
	}
	msgs = append(msgs, openai.UserMessage(p.Message))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(cfg.Model),
		Messages: msgs,
	}
	if cfg.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(cfg.MaxTokens)
	}
	if cfg.Temperature != nil {
		params.Temperature = openai.Float(*cfg.Temperature)
	}
	return params
}
