/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package throttle

import (
	"context"
	"time"
)

// Rate describes the start quota for a time window:
// at most Count operation starts per Interval.
type Rate struct {
	Count    int
	Interval time.Duration
}

// Limiter is an interface for checking if the next operation start is allowed.
type Limiter interface {
	// Allow reports whether a new start is allowed right now and consumes it
	// if it is. If the start is not allowed, retryAfter tells how long the
	// caller should wait before checking again.
	Allow(ctx context.Context) (allow bool, retryAfter time.Duration, err error)
}
