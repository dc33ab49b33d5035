/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package throttle

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SlidingLogLimiter implements exact sliding window rate limiting.
// It keeps the timestamps of the last Count granted starts in a ring buffer
// and grants a new start only when the oldest kept one has left the window.
// Unlike counter-based approximations, it guarantees that any window of
// Interval length contains at most Count starts, while still allowing the
// full quota to be consumed in a burst.
type SlidingLogLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	starts   []time.Time
	head     int
	size     int
}

// NewSlidingLogLimiter creates a new sliding log rate limiter.
func NewSlidingLogLimiter(maxRate Rate) (*SlidingLogLimiter, error) {
	if maxRate.Count <= 0 {
		return nil, fmt.Errorf("rate count should be positive, got %d", maxRate.Count)
	}
	if maxRate.Interval <= 0 {
		return nil, fmt.Errorf("rate interval should be positive, got %s", maxRate.Interval)
	}
	return &SlidingLogLimiter{
		interval: maxRate.Interval,
		starts:   make([]time.Time, maxRate.Count),
	}, nil
}

// Allow checks if a new start is allowed and consumes it if it is.
func (l *SlidingLogLimiter) Allow(_ context.Context) (allow bool, retryAfter time.Duration, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if l.size < len(l.starts) {
		l.starts[(l.head+l.size)%len(l.starts)] = now
		l.size++
		return true, 0, nil
	}

	oldest := l.starts[l.head]
	if wait := l.interval - now.Sub(oldest); wait > 0 {
		return false, wait, nil
	}

	l.starts[l.head] = now
	l.head = (l.head + 1) % len(l.starts)
	return true, 0, nil
}
