// internal/common/retry/retry.go
package retry

import (
	"context"
	"fmt"
	"time"

	"jobhunt-pipeline/internal/common/logger"
)

// Do attempts an operation with exponential backoff. The delay doubles after
// every failed attempt. Retries stop when the context is done.
func Do(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		if err = ctx.Err(); err != nil {
			return fmt.Errorf("%s aborted: %w", operationName, err)
		}

		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			if log != nil {
				log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
					"error":       err.Error(),
					"attempt":     i + 1,
					"maxRetries":  maxRetries,
					"nextRetryIn": delay.String(),
				})
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("%s aborted: %w", operationName, ctx.Err())
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
