package retry

import (
	"context"

	"github.com/runestake/settlement/ulogger"
)

// Retry calls f until it succeeds, the attempts are used up, the error is not retryable, or ctx is done.
func Retry[T any](ctx context.Context, logger ulogger.Logger, f func() (T, error), opts ...Option) (T, error) {
	options := defaultOptions()
	for _, o := range opts {
		o(options)
	}

	var (
		result  T
		err     error
		backoff = options.backoffDurationType
	)

	for i := 0; i < options.retryCount; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}

		result, err = f()
		if err == nil {
			return result, nil
		}

		if options.retryIf != nil && !options.retryIf(err) {
			return result, err
		}

		if i == options.retryCount-1 {
			break
		}

		logger.Warnf("%s (attempt %d/%d): %v", options.message, i+1, options.retryCount, err)

		if options.exponential {
			if sleepErr := sleepFunc(ctx, backoff); sleepErr != nil {
				return result, sleepErr
			}

			backoff = CappedExponentialBackoff(backoff, options.backoffFactor, options.maxBackoff)

			continue
		}

		if sleepErr := BackoffAndSleep(ctx, i, options.backoffMultiplier, options.backoffDurationType); sleepErr != nil {
			return result, sleepErr
		}
	}

	return result, err
}
