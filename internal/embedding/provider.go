// internal/embedding/provider.go
package embedding

import (
	"context"
	"time"

	"jobhunt-pipeline/internal/common/errors"
	"jobhunt-pipeline/internal/common/logger"
	"jobhunt-pipeline/internal/common/retry"
)

// Provider computes a vector representation for a piece of text. Calls are
// network operations; callers apply timeouts and bounded retry.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// RetryingProvider wraps another provider with bounded exponential backoff
// on transient failures.
type RetryingProvider struct {
	inner      Provider
	maxRetries int
	baseDelay  time.Duration
	logger     logger.Logger
}

func WithRetry(inner Provider, maxRetries int, baseDelay time.Duration, log logger.Logger) *RetryingProvider {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	return &RetryingProvider{
		inner:      inner,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     log,
	}
}

func (p *RetryingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := retry.Do(ctx, func() error {
		var embedErr error
		vec, embedErr = p.inner.Embed(ctx, text)
		return embedErr
	}, p.maxRetries, p.baseDelay, p.logger, "embedding")
	if err != nil {
		return nil, errors.NewEmbeddingFailedError(err)
	}
	return vec, nil
}
