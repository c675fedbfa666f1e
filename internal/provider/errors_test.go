package provider_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sori-ai/sori/internal/provider"
)

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", provider.ErrRateLimit, true},
		{"wrapped down", fmt.Errorf("openai: %w", provider.ErrProviderDown), true},
		{"unauthorized", provider.ErrUnauthorized, false},
		{"context length", provider.ErrContextLength, false},
		{"timeout", context.DeadlineExceeded, false},
		{"other", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := provider.IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestMapStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   error
	}{
		{200, nil},
		{400, nil},
		{401, provider.ErrUnauthorized},
		{403, provider.ErrUnauthorized},
		{413, provider.ErrContextLength},
		{429, provider.ErrRateLimit},
		{500, provider.ErrProviderDown},
		{529, provider.ErrProviderDown},
	}
	for _, tt := range tests {
		if got := provider.MapStatus(tt.status); !errors.Is(got, tt.want) || (tt.want == nil && got != nil) {
			t.Errorf("MapStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestIsTimeout(t *testing.T) {
	t.Parallel()
	if !provider.IsTimeout(fmt.Errorf("call: %w", context.DeadlineExceeded)) {
		t.Error("wrapped deadline should be a timeout")
	}
	if provider.IsTimeout(context.Canceled) {
		t.Error("cancellation is not a timeout")
	}
}
