/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package throttle provides rate limiters that bound how many operations
// may start within a time window, and a Waiter that delays starts (never
// rejects them) until the limiter grants one.
//
// Limiters implement the Limiter interface and differ in how strictly the
// window is accounted:
//   - sliding log: exact accounting, at most Count starts in any window of
//     Interval length
//   - leaky bucket (GCRA): starts spaced evenly across the interval, with
//     an optional burst
//   - sliding window: counter-based approximation over the current and
//     previous fixed windows
//   - token bucket: continuous token refill with a configurable burst
//
// The Waiter serializes concurrent callers in arrival order, so a start
// freed by the window always goes to the earliest-queued caller.
package throttle
