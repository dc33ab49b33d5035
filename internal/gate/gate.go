/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package gate

import (
	"context"
	"fmt"

	"go.uber.org/atomic"
)

// Gate bounds the number of concurrently executing operations.
// Callers that don't get a free slot right away are queued and admitted
// in arrival order: slots are modeled as a buffered channel, and the Go
// runtime wakes blocked channel senders in FIFO order.
type Gate struct {
	slots   chan struct{}
	pending atomic.Int64
}

// New creates a new Gate with the given concurrency limit.
func New(limit int) (*Gate, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("concurrency limit should be positive, got %d", limit)
	}
	return &Gate{slots: make(chan struct{}, limit)}, nil
}

// Acquire blocks until a slot is free or ctx is done.
// On success the caller owns one slot and must call Release exactly once,
// whatever the outcome of the guarded operation is.
func (g *Gate) Acquire(ctx context.Context) error {
	g.pending.Inc()
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		g.pending.Dec()
		return ctx.Err()
	}
}

// Release frees a slot previously acquired by Acquire.
func (g *Gate) Release() {
	g.pending.Dec()
	<-g.slots
}

// PendingCount returns the number of operations that are executing or
// waiting for a slot. It's a snapshot, the value may change right after
// it's read.
func (g *Gate) PendingCount() int {
	return int(g.pending.Load())
}

// Limit returns the concurrency limit the gate was created with.
func (g *Gate) Limit() int {
	return cap(g.slots)
}
