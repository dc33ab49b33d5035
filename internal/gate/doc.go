/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package gate provides a concurrency gate that bounds the number of
// operations executing at the same time.
//
// Callers acquire a slot before running an operation and release it when
// the operation settles. Excess callers block and are admitted in arrival
// (FIFO) order. There is no built-in timeout: a caller that never releases
// its slot blocks the queue behind it, and bounded waiting has to be
// arranged by the caller via context cancellation.
//
// The gate also keeps a live pending counter (queued plus executing
// callers) for introspection.
package gate
