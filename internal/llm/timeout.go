package llm

import (
	"context"
	"time"
)

// TimeoutProvider bounds every completion call with a deadline.
type TimeoutProvider struct {
	provider Provider
	timeout  time.Duration
}

// WithTimeout wraps provider so each Complete call gets at most timeout.
// A non-positive timeout returns provider unchanged.
func WithTimeout(provider Provider, timeout time.Duration) Provider {
	if timeout <= 0 {
		return provider
	}
	return &TimeoutProvider{provider: provider, timeout: timeout}
}

func (t *TimeoutProvider) Name() string {
	return t.provider.Name()
}

func (t *TimeoutProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.provider.Complete(ctx, req)
}
