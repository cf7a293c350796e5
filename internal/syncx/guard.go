package syncx

import "sync"

// RWGuard wraps RWMutex with scoped lock helpers. Used for shared
// collections like the server's connection set.
type RWGuard[T any] struct {
	mu    sync.RWMutex
	value T
}

// NewGuard creates a guarded value.
func NewGuard[T any](initial T) *RWGuard[T] {
	return &RWGuard[T]{value: initial}
}

// Read executes fn while holding the read lock.
func (g *RWGuard[T]) Read(fn func(T)) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	fn(g.value)
}

// Write executes fn while holding the write lock; fn receives a
// pointer for mutation.
func (g *RWGuard[T]) Write(fn func(*T)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(&g.value)
}
