package growi

import (
	"context"
	"log/slog"
	"time"

	"growi_syncer/internal/retry"
)

const (
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = time.Second
)

// Fetcher is anything that can fetch a single page.
type Fetcher interface {
	FetchPage(ctx context.Context, req PageRequest) (*Page, error)
}

// DefaultPolicy is the retry policy used for both endpoints: linear backoff
// and the IsRetryable predicate.
func DefaultPolicy(maxAttempts int, baseDelay time.Duration) retry.Policy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return retry.Policy{
		MaxAttempts: maxAttempts,
		Backoff:     retry.Linear(baseDelay),
		ShouldRetry: IsRetryable,
	}
}

// RetryingFetcher retries failed page requests according to a policy.
type RetryingFetcher struct {
	next   Fetcher
	policy retry.Policy
	logger *slog.Logger
}

func NewRetryingFetcher(next Fetcher, policy retry.Policy, logger *slog.Logger) *RetryingFetcher {
	return &RetryingFetcher{
		next:   next,
		policy: policy,
		logger: logger,
	}
}

func (f *RetryingFetcher) FetchPage(ctx context.Context, req PageRequest) (*Page, error) {
	p := f.policy
	p.OnRetry = func(attempt int, delay time.Duration, err error) {
		f.logger.Warn("growi request failed, retrying",
			"variant", req.Variant,
			"page", req.Page,
			"attempt", attempt,
			"backoff", delay,
			"error", err,
		)
	}

	return retry.Do(ctx, p, func(ctx context.Context) (*Page, error) {
		return f.next.FetchPage(ctx, req)
	})
}
