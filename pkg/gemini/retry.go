package gemini

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/medflow/medinsight/pkg/config"
	"github.com/medflow/medinsight/pkg/logger"
)

// RetryPolicy is a fixed-delay retry budget for model calls
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// PolicyFrom reads the retry budget from the Gemini configuration
func PolicyFrom(cfg *config.GeminiConfig) RetryPolicy {
	return RetryPolicy{Attempts: cfg.MaxRetries, Delay: cfg.RetryDelay}
}

// Retry runs op until it succeeds, the attempts are used up or ctx ends.
// Errors wrapped with backoff.Permanent stop immediately. The last error is returned.
func Retry(ctx context.Context, policy RetryPolicy, log *logger.Logger, op func(ctx context.Context) error) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	attempt := 0
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(policy.Delay), uint64(attempts-1)),
		ctx,
	)

	err := backoff.RetryNotify(func() error {
		attempt++
		return op(ctx)
	}, b, func(err error, wait time.Duration) {
		log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msg("model call failed, retrying")
	})

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	return err
}
