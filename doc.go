/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package regulator provides client-side regulation of calls to named services:
// a per-service cap on concurrent executions, throttling of operation starts
// to a configured rate (callers are delayed, never rejected), and retries
// of failed operations with a configurable backoff.
// Callers waiting for a slot or for a throttle grant are served in arrival order.
package regulator
