/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package throttle

import (
	"context"
	"time"

	"github.com/RussellLuo/slidingwindow"
)

// SlidingWindowLimiter implements sliding window rate limiting algorithm.
// It's a counter-based approximation: quota is accounted against the current
// and previous fixed windows, so short bursts straddling a window boundary
// may slightly exceed the configured count.
type SlidingWindowLimiter struct {
	limiter *slidingwindow.Limiter
	maxRate Rate
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter.
func NewSlidingWindowLimiter(maxRate Rate) *SlidingWindowLimiter {
	lim, _ := slidingwindow.NewLimiter(
		maxRate.Interval, int64(maxRate.Count), func() (slidingwindow.Window, slidingwindow.StopFunc) {
			return slidingwindow.NewLocalWindow()
		})
	return &SlidingWindowLimiter{limiter: lim, maxRate: maxRate}
}

// Allow checks if a new start is allowed and consumes it if it is.
func (l *SlidingWindowLimiter) Allow(_ context.Context) (allow bool, retryAfter time.Duration, err error) {
	if l.limiter.Allow() {
		return true, 0, nil
	}
	now := time.Now()
	retryAfter = now.Truncate(l.maxRate.Interval).Add(l.maxRate.Interval).Sub(now)
	return false, retryAfter, nil
}
