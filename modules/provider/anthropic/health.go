package anthropic

import (
	"context"

	"github.com/sori-ai/sori/internal/provider"
)

// probeMessage is the prompt of the health probe.
const probeMessage = "ping"

// HealthCheck implements provider.HealthChecker. The chain calls it for a
// gateway in cooldown to decide whether it may take turns again. The API has
// no health endpoint, so the probe is a one-token completion of the
// configured model without system prompt.
func (a *Anthropic) HealthCheck(ctx context.Context) error {
	params := buildParams(a.config, provider.Prompt{Message: probeMessage})
	params.MaxTokens = 1
	_, err := a.client.Messages.New(ctx, params)
	return mapError(err)
}
