package llm

import (
	"context"
	"time"

	"sealdeal-backend/internal/shared/metrics"
	"sealdeal-backend/internal/shared/resilience"
)

// RetryConfig retries rate-limited calls three times total, waiting 2s then 4s.
func RetryConfig(operation string) resilience.RetryConfig {
	logRetry := resilience.RetryLogger("gemini", operation)
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     4 * time.Second,
		Multiplier:     2,
		ShouldRetry:    IsRateLimited,
		OnRetry: func(attempt int, err error) {
			metrics.IncLLMRetry()
			logRetry(attempt, err)
		},
	}
}

type retryClient struct {
	next Client
	cfg  resilience.RetryConfig
}

// WithRetry wraps next so rate-limited calls are retried under cfg.
func WithRetry(next Client, cfg resilience.RetryConfig) Client {
	return &retryClient{next: next, cfg: cfg}
}

func (c *retryClient) Generate(ctx context.Context, req Request) (string, error) {
	return resilience.DoVal(ctx, c.cfg, func(ctx context.Context) (string, error) {
		return c.next.Generate(ctx, req)
	})
}
