/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package throttle

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucketLimiter implements token bucket rate limiting on top of
// golang.org/x/time/rate. Tokens refill continuously at Count per Interval,
// and up to burst starts may be granted back-to-back.
type TokenBucketLimiter struct {
	limiter *rate.Limiter
}

// NewTokenBucketLimiter creates a new token bucket rate limiter.
// If burst is not positive, the rate count is used as the burst size.
func NewTokenBucketLimiter(maxRate Rate, burst int) *TokenBucketLimiter {
	if burst <= 0 {
		burst = maxRate.Count
	}
	limit := rate.Limit(float64(maxRate.Count) / maxRate.Interval.Seconds())
	return &TokenBucketLimiter{limiter: rate.NewLimiter(limit, burst)}
}

// Allow checks if a new start is allowed and consumes it if it is.
func (l *TokenBucketLimiter) Allow(_ context.Context) (allow bool, retryAfter time.Duration, err error) {
	res := l.limiter.Reserve()
	if !res.OK() {
		return false, 0, fmt.Errorf("reserve token, burst is %d", l.limiter.Burst())
	}
	if delay := res.Delay(); delay > 0 {
		res.Cancel()
		return false, delay, nil
	}
	return true, 0, nil
}
