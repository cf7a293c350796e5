// Package resilience provides the circuit breaker guarding the remote
// transcription endpoint. The turn pipeline never retries a failed
// call; the breaker instead skips the remote attempt entirely after
// repeated failures so worst-case turn latency stays bounded even when
// the remote host is down.
package resilience

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// State represents circuit breaker state
type State uint32

const (
	Closed   State = iota // normal operation
	Open                  // failing fast
	HalfOpen              // testing recovery
)

func (s State) String() string {
	return [...]string{"closed", "open", "half-open"}[s]
}

// ErrOpen is returned when a call is refused without being attempted.
var ErrOpen = errors.New("circuit breaker open")

// Config holds circuit breaker settings.
type Config struct {
	Threshold         int           // failures before opening
	ResetTimeout      time.Duration // wait before half-open attempt
	HalfOpenSuccesses int           // successes needed to close
}

// DefaultConfig suits a flaky LAN service: three straight failures
// switch to local-only, with a retry probe half a minute later.
func DefaultConfig() Config {
	return Config{
		Threshold:         3,
		ResetTimeout:      30 * time.Second,
		HalfOpenSuccesses: 2,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Threshold <= 0 {
		c.Threshold = def.Threshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = def.ResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = def.HalfOpenSuccesses
	}
	return c
}

// Breaker implements the circuit breaker pattern with atomic state.
type Breaker struct {
	cfg         Config
	state       atomic.Uint32
	failures    atomic.Int32
	successes   atomic.Int32
	lastFailure atomic.Int64 // unix nano
}

// New creates a breaker with config.
func New(cfg Config) *Breaker {
	b := &Breaker{cfg: cfg.withDefaults()}
	b.state.Store(uint32(Closed))
	return b
}

// Allow checks if a call should proceed; returns nil if allowed.
func (b *Breaker) Allow() error {
	switch State(b.state.Load()) {
	case Open:
		if b.shouldAttemptReset() {
			b.transition(HalfOpen)
			return nil
		}
		return ErrOpen
	default:
		return nil
	}
}

// Success records a successful call.
func (b *Breaker) Success() {
	switch State(b.state.Load()) {
	case HalfOpen:
		if b.successes.Add(1) >= int32(b.cfg.HalfOpenSuccesses) {
			b.transition(Closed)
		}
	case Closed:
		b.failures.Store(0)
	}
}

// Failure records a failed call.
func (b *Breaker) Failure() {
	b.lastFailure.Store(time.Now().UnixNano())
	count := b.failures.Add(1)

	switch State(b.state.Load()) {
	case HalfOpen:
		b.transition(Open)
	case Closed:
		if count >= int32(b.cfg.Threshold) {
			b.transition(Open)
		}
	}
}

// State returns current state.
func (b *Breaker) State() State {
	return State(b.state.Load())
}

func (b *Breaker) transition(to State) {
	from := State(b.state.Swap(uint32(to)))
	if from == to {
		return
	}

	switch to {
	case Closed:
		b.failures.Store(0)
		b.successes.Store(0)
		slog.Info("remote endpoint recovered, circuit closed")
	case Open:
		b.successes.Store(0)
		slog.Warn("circuit opened, skipping remote endpoint", "failures", b.failures.Load())
	case HalfOpen:
		b.successes.Store(0)
		slog.Info("probing remote endpoint, circuit half-open")
	}
}

func (b *Breaker) shouldAttemptReset() bool {
	last := b.lastFailure.Load()
	if last == 0 {
		return true
	}
	return time.Since(time.Unix(0, last)) > b.cfg.ResetTimeout
}

// Execute runs fn with circuit breaker protection, returning its value.
func Execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := b.Allow(); err != nil {
		return zero, err
	}
	result, err := fn()
	if err != nil {
		b.Failure()
		return zero, err
	}
	b.Success()
	return result, nil
}
