/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package regulator

import (
	"context"
	"fmt"
	"time"

	"github.com/acronis/go-appkit/log"
	"github.com/acronis/go-appkit/retry"
	"github.com/cenkalti/backoff/v4"
)

// Default parameters of the exponential backoff that is used between retried attempts.
const (
	DefaultBackoffInitialInterval = time.Millisecond * 100
	DefaultBackoffMultiplier      = 2
	DefaultBackoffMaxInterval     = time.Second * 10
)

// DefaultBackoffPolicy is a backoff policy that is used for retried attempts by default.
var DefaultBackoffPolicy = retry.PolicyFunc(func() backoff.BackOff {
	bf := backoff.NewExponentialBackOff()
	bf.InitialInterval = DefaultBackoffInitialInterval
	bf.Multiplier = DefaultBackoffMultiplier
	bf.MaxInterval = DefaultBackoffMaxInterval
	bf.Reset()
	return bf
})

// RetryAttemptFn is called each time a retry of a failed attempt is scheduled.
// attempt is the 1-based number of the attempt that failed, err is its failure,
// and delay is how long the regulator will wait before starting the next attempt.
// The callback is observational, it cannot alter the retry flow.
type RetryAttemptFn func(ctx context.Context, service string, attempt int, err error, delay time.Duration)

// executeWithRetries runs fn with the retry budget of the service.
// Every attempt, the first one included, is a separate operation start
// and has to be granted by the service's throttle before fn is invoked.
// When all attempts fail, the error of the most recent one is returned as is.
func (r *Regulator) executeWithRetries(ctx context.Context, service string, state *ServiceState, fn Func) error {
	bf := r.backoffPolicy.NewBackOff()

	var lastErr error
	for attemptNum := 0; ; attemptNum++ {
		if err := state.waiter.Wait(ctx); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}

		if attemptNum >= state.cfg.Retries {
			return lastErr
		}
		waitTime := bf.NextBackOff()
		if waitTime == backoff.Stop {
			return lastErr
		}

		r.metrics.IncRetryAttempts(service)
		r.onRetryAttempt(ctx, service, attemptNum+1, lastErr, waitTime)

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(waitTime):
		}
	}
}

// logRetryAttempt is used as OnRetryAttempt when no callback is configured in Opts.
func (r *Regulator) logRetryAttempt(ctx context.Context, service string, attempt int, err error, delay time.Duration) {
	logger := r.logger
	if r.loggerProvider != nil {
		logger = r.loggerProvider(ctx)
	}
	if logger == nil {
		return
	}
	logger.Warn(fmt.Sprintf("attempt %d of calling service %q failed, next attempt is in %s", attempt, service, delay),
		log.String("service", service),
		log.Int("attempt", attempt),
		log.DurationIn(delay, time.Millisecond),
		log.Error(err),
	)
}
