package provider

import (
	"slices"

	"github.com/sori-ai/sori/pkg/message"
)

// Prompt is everything a gateway needs for one invocation. It is built per
// turn and owned by that turn only.
type Prompt struct {
	// System is the persona preamble with profile fields substituted.
	System string

	// History is the trimmed window of prior turns, oldest first. It never
	// includes the new message.
	History []message.Turn

	// Message is the new human message.
	Message string

	// Profile holds the raw substitution values used to render System.
	Profile ProfileFields
}

// ProfileFields are the profile values substituted into the persona. A nil
// Age or empty Interests means the value was unknown.
type ProfileFields struct {
	Age       *int
	Interests []string
}

// Turns returns History followed by Message as a human turn.
func (p Prompt) Turns() []message.Turn {
	out := slices.Clone(p.History)
	return append(out, message.Turn{Role: message.RoleHuman, Content: p.Message})
}

// StreamChunk is one piece of a streamed reply.
type StreamChunk struct {
	Delta string
	Err   error
}
