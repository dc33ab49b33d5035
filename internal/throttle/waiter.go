/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package throttle

import (
	"context"
	"time"
)

// Waiter delays operation starts until the underlying limiter grants them.
// Concurrent callers take turns in arrival order: the turnstile channel
// queues blocked senders, and the Go runtime wakes them FIFO, so a start
// freed by the window always goes to the earliest-queued caller.
type Waiter struct {
	limiter Limiter
	turn    chan struct{}
	onDelay func(retryAfter time.Duration)
}

// NewWaiter creates a new Waiter around the given limiter.
// If onDelay is not nil, it's called once for every wait that was actually
// delayed, with the first estimated delay.
func NewWaiter(limiter Limiter, onDelay func(retryAfter time.Duration)) *Waiter {
	return &Waiter{limiter: limiter, turn: make(chan struct{}, 1), onDelay: onDelay}
}

// Wait blocks until the limiter grants a new start or ctx is done.
// It never rejects: a caller beyond the window quota is delayed for as long
// as it takes for a start to open up.
func (w *Waiter) Wait(ctx context.Context) error {
	select {
	case w.turn <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-w.turn }()

	allow, retryAfter, err := w.limiter.Allow(ctx)
	if err != nil {
		return err
	}
	if allow {
		return nil
	}
	if w.onDelay != nil {
		w.onDelay(retryAfter)
	}

	retryTimer := time.NewTimer(retryAfter)
	defer retryTimer.Stop()

	for {
		select {
		case <-retryTimer.C:
			// Will do another check of the quota.
		case <-ctx.Done():
			return ctx.Err()
		}

		if allow, retryAfter, err = w.limiter.Allow(ctx); err != nil {
			return err
		}
		if allow {
			return nil
		}

		if !retryTimer.Stop() {
			select {
			case <-retryTimer.C:
			default:
			}
		}
		retryTimer.Reset(retryAfter)
	}
}
