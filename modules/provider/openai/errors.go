package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/sori-ai/sori/internal/provider"
)

// mapError translates SDK and transport failures into provider sentinels so
// the failover chain can classify them. Context errors pass through.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusBadRequest && apiErr.Code == "context_length_exceeded" {
			return fmt.Errorf("%w: %s", provider.ErrContextLength, apiErr.Message)
		}
		if sentinel := provider.MapStatus(apiErr.StatusCode); sentinel != nil {
			return fmt.Errorf("%w: %s", sentinel, apiErr.Message)
		}
		return fmt.Errorf("openai: HTTP %d: %s", apiErr.StatusCode, apiErr.Message)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
	}
	return fmt.Errorf("openai: %w", err)
}
