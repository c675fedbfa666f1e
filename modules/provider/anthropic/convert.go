package anthropic

import (
	"strings"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/sori-ai/sori/internal/provider"
	"github.com/sori-ai/sori/pkg/message"
)

// buildParams renders a prompt as a Messages API request. The persona goes
// into the dedicated system field.
func buildParams(cfg Config, p provider.Prompt) sdkanthropic.MessageNewParams {
	params := sdkanthropic.MessageNewParams{
		Model:     sdkanthropic.Model(cfg.Model),
		MaxTokens: cfg.MaxTokens,
		Messages:  convertTurns(p.Turns()),
	}
	if p.System != "" {
		params.System = []sdkanthropic.TextBlockParam{{Text: p.System}}
	}
	if cfg.Temperature != nil {
		params.Temperature = sdkanthropic.Float(*cfg.Temperature)
	}
	return params
}

// convertTurns maps turns to message params. The API wants the first
// message from the user and strictly alternating roles: leading assistant
// turns are dropped and consecutive turns of one role are joined. The
// latter happens after a failed turn left an unanswered human message.
func convertTurns(turns []message.Turn) []sdkanthropic.MessageParam {
	for len(turns) > 0 && turns[0].Role == message.RoleAssistant {
		turns = turns[1:]
	}

	type group struct {
		role  message.Role
		texts []string
	}
	var groups []group
	for _, t := range turns {
		if n := len(groups); n > 0 && groups[n-1].role == t.Role {
			groups[n-1].texts = append(groups[n-1].texts, t.Content)
			continue
		}
		groups = append(groups, group{role: t.Role, texts: []string{t.Content}})
	}

	out := make([]sdkanthropic.MessageParam, 0, len(groups))
	for _, g := range groups {
		block := sdkanthropic.NewTextBlock(strings.Join(g.texts, "\n\n"))
		if g.role == message.RoleAssistant {
			out = append(out, sdkanthropic.NewAssistantMessage(block))
		} else {
			out = append(out, sdkanthropic.NewUserMessage(block))
		}
	}
	return out
}

// replyText concatenates the text blocks of a response.
func replyText(msg *sdkanthropic.Message) string {
	var b strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(sdkanthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	return b.String()
}
