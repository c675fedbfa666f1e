package provider

import (
	"context"
	"errors"
)

// Sentinel errors for gateway operations.
var (
	// ErrRateLimit indicates the gateway returned a rate limit response.
	ErrRateLimit = errors.New("provider: rate limited")

	// ErrContextLength indicates the request exceeded the model's context window.
	ErrContextLength = errors.New("provider: context length exceeded")

	// ErrProviderDown indicates the gateway is temporarily unavailable.
	ErrProviderDown = errors.New("provider: unavailable")

	// ErrUnauthorized indicates the credentials were rejected.
	ErrUnauthorized = errors.New("provider: unauthorized")

	// ErrEmptyReply indicates the model answered without any text.
	ErrEmptyReply = errors.New("provider: empty reply")

	// ErrAllProviders indicates all gateways in the chain have been exhausted.
	ErrAllProviders = errors.New("provider: all gateways failed")

	// ErrNoProvider indicates no gateway is configured.
	ErrNoProvider = errors.New("provider: no gateway configured")
)

// IsRetryable reports whether the error is transient and the request
// can be retried with a different gateway or after a delay.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrProviderDown)
}

// IsRateLimit reports whether err is or wraps ErrRateLimit.
func IsRateLimit(err error) bool {
	return errors.Is(err, ErrRateLimit)
}

// IsTimeout reports whether err is a deadline expiry.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// MapStatus converts an HTTP status code returned by a model API into the
// matching sentinel. It returns nil for non-error statuses.
func MapStatus(status int) error {
	switch {
	case status < 400:
		return nil
	case status == 401 || status == 403:
		return ErrUnauthorized
	case status == 429:
		return ErrRateLimit
	case status == 413:
		return ErrContextLength
	case status >= 500:
		return ErrProviderDown
	default:
		return nil
	}
}
