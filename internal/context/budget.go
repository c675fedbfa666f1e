package ctxengine

import "github.com/sori-ai/sori/pkg/message"

// TokenEstimator estimates the token count of a string.
type TokenEstimator interface {
	Estimate(text string) int
}

// CharEstimator estimates tokens using a characters-per-token ratio.
// About 4 suits English; Hangul and other multi-byte scripts count bytes,
// which errs on the side of overestimating.
type CharEstimator struct {
	CharsPerToken float64
}

// NewCharEstimator creates a CharEstimator with the given ratio.
// If charsPerToken is <= 0, it defaults to 4.0.
func NewCharEstimator(charsPerToken float64) *CharEstimator {
	if charsPerToken <= 0 {
		charsPerToken = 4.0
	}
	return &CharEstimator{CharsPerToken: charsPerToken}
}

// Estimate returns the estimated token count for text, rounded up.
func (e *CharEstimator) Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	return int(float64(len(text))/e.CharsPerToken) + 1
}

// Meter measures the cost of one turn in a budget unit.
type Meter interface {
	Measure(t message.Turn) int
}

// perMessageOverhead approximates the role and framing tokens of a message.
const perMessageOverhead = 4

// TokenMeter charges the estimated tokens of a turn plus framing overhead.
type TokenMeter struct {
	Estimator TokenEstimator
}

// Measure implements Meter.
func (m TokenMeter) Measure(t message.Turn) int {
	return perMessageOverhead + m.Estimator.Estimate(t.Content)
}

// MessageMeter charges one unit per turn.
type MessageMeter struct{}

// Measure implements Meter.
func (MessageMeter) Measure(message.Turn) int { return 1 }

// NewMeter returns the Meter for cfg.Unit.
func NewMeter(cfg ContextConfig) Meter {
	if cfg.Unit == UnitMessages {
		return MessageMeter{}
	}
	return TokenMeter{Estimator: NewCharEstimator(cfg.CharsPerToken)}
}

// Measure returns the total cost of turns.
func Measure(m Meter, turns []message.Turn) int {
	total := 0
	for i := range turns {
		total += m.Measure(turns[i])
	}
	return total
}
