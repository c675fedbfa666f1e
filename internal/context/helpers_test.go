package ctxengine_test

import (
	"fmt"

	"github.com/sori-ai/sori/pkg/message"
)

// lenMeter charges the content length, so tests can reason in bytes.
type lenMeter struct{}

func (lenMeter) Measure(t message.Turn) int { return len(t.Content) }

// makeTurns creates n alternating human/assistant turns starting with a
// human turn, with content "t-<i>".
func makeTurns(n int) []message.Turn {
	turns := make([]message.Turn, n)
	for i := range turns {
		role := message.RoleHuman
		if i%2 == 1 {
			role = message.RoleAssistant
		}
		turns[i] = message.Turn{SessionID: "s1", Role: role, Content: fmt.Sprintf("t-%d", i), Sequence: int64(i + 1)}
	}
	return turns
}

func turn(role message.Role, content string) message.Turn {
	return message.Turn{SessionID: "s1", Role: role, Content: content}
}

func contents(turns []message.Turn) []string {
	out := make([]string, len(turns))
	for i, t := range turns {
		out[i] = t.Content
	}
	return out
}
