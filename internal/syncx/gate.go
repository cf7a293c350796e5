// Package syncx provides extended synchronization primitives
package syncx

import "sync/atomic"

// Gate is a single-flight guard: at most one holder at a time, with a
// non-blocking acquire. It backs the turn pipeline's single-flight
// invariant - a second trigger while a turn is being served is refused
// rather than queued.
type Gate struct {
	busy atomic.Bool
}

// TryAcquire takes the gate if it is free; reports whether it did.
func (g *Gate) TryAcquire() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Release frees the gate.
func (g *Gate) Release() {
	g.busy.Store(false)
}

// Busy reports whether the gate is currently held.
func (g *Gate) Busy() bool {
	return g.busy.Load()
}
