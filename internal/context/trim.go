package ctxengine

import "github.com/sori-ai/sori/pkg/message"

// Trim returns the most recent turns of history that fit in budget, as
// measured by meter (MessageMeter when nil). The result is a new slice and
// history is never modified.
//
// The window always starts on a human turn, so the first visible turn is
// never an answer without its question. The most recent human turn is kept
// even when it alone exceeds the budget, together with anything after it;
// this is the only case where the result is over budget. History without
// any human turn yields an empty window.
func Trim(history []message.Turn, budget int, meter Meter) []message.Turn {
	if len(history) == 0 {
		return []message.Turn{}
	}
	if meter == nil {
		meter = MessageMeter{}
	}

	lastHuman := -1
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == message.RoleHuman {
			lastHuman = i
			break
		}
	}
	if lastHuman < 0 {
		return []message.Turn{}
	}

	// Grow the window backwards while it fits.
	start := len(history)
	used := 0
	for start > 0 {
		cost := meter.Measure(history[start-1])
		if used+cost > budget {
			break
		}
		used += cost
		start--
	}

	start = min(start, lastHuman)
	for history[start].Role != message.RoleHuman {
		start++
	}

	out := make([]message.Turn, len(history)-start)
	copy(out, history[start:])
	return out
}
