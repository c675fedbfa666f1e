package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/sori-ai/sori/internal/provider"
)

// statusOverloaded is Anthropic's "overloaded_error" status.
const statusOverloaded = 529

// statusSentinels maps HTTP statuses to the gateway error taxonomy.
// 400 is resolved separately because only some bad requests are context
// overflows.
var statusSentinels = map[int]error{
	http.StatusTooManyRequests:     provider.ErrRateLimit,
	statusOverloaded:               provider.ErrProviderDown,
	http.StatusInternalServerError: provider.ErrProviderDown,
	http.StatusBadGateway:          provider.ErrProviderDown,
	http.StatusServiceUnavailable:  provider.ErrProviderDown,
	http.StatusGatewayTimeout:      provider.ErrProviderDown,
	http.StatusUnauthorized:        provider.ErrUnauthorized,
	http.StatusForbidden:           provider.ErrUnauthorized,
}

// contextPhrases identify a context window overflow in a 400 message.
var contextPhrases = []string{"context length", "too many tokens", "token limit", "prompt is too long"}

// mapError converts an SDK error into the provider taxonomy so the chain
// can tell retryable failures apart. Cancellation passes through
// unchanged; transport failures count as the provider being down.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *sdkanthropic.Error
	if !errors.As(err, &apiErr) {
		var netErr net.Error
		if errors.As(err, &netErr) {
			return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
		}
		return fmt.Errorf("anthropic: %w", err)
	}

	if sentinel, ok := statusSentinels[apiErr.StatusCode]; ok {
		return fmt.Errorf("%w: %s", sentinel, apiErr.Error())
	}
	if apiErr.StatusCode == http.StatusBadRequest && isContextLengthError(apiErr.RawJSON()) {
		return fmt.Errorf("%w: %s", provider.ErrContextLength, apiErr.Error())
	}
	return fmt.Errorf("anthropic: HTTP %d: %w", apiErr.StatusCode, err)
}

// isContextLengthError reports whether a 400 body describes a context
// overflow. A well-formed body must carry invalid_request_error; anything
// else falls back to matching the raw text.
func isContextLengthError(raw string) bool {
	var body struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	text := raw
	if err := json.Unmarshal([]byte(raw), &body); err == nil && body.Error.Type != "" {
		if body.Error.Type != "invalid_request_error" {
			return false
		}
		text = body.Error.Message
	}
	text = strings.ToLower(text)
	for _, phrase := range contextPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}
