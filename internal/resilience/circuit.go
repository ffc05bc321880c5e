// Package resilience implements the sink's failure handling for
// spec.md §4.5 and §7: a write error transitions the tracer from
// healthy to Degraded, after which subsequent records are discarded
// without disturbing the engine. Adapted from the teacher's
// pkg/circuit.Breaker (three-state breaker: closed/open/half-open)
// and pkg/degradation.Manager (feature-level degrade/restore
// bookkeeping), narrowed to the single on/off transition this system
// needs: there is no recovery path back to healthy mid-run — once
// Degraded, a run stays degraded (spec.md §4.5: "tracing transitions
// to a degraded state where subsequent records are discarded").
package resilience

import (
	"sync"
	"time"
)

// State mirrors the teacher's CircuitBreakerState naming.
type State string

const (
	StateClosed State = "closed" // healthy: writes are attempted normally
	StateOpen   State = "open"   // degraded: writes are skipped
)

// Breaker trips permanently on the first recorded failure. Unlike the
// teacher's Breaker, it never half-opens: spec.md's Degraded state has
// no automatic recovery, only a fresh tracer Init.
type Breaker struct {
	mu          sync.Mutex
	state       State
	failures    int64
	trippedAt   time.Time
	lastFailure error
}

// NewBreaker returns a Breaker starting in the closed (healthy) state.
func NewBreaker() *Breaker {
	return &Breaker{state: StateClosed}
}

// RecordFailure trips the breaker open. It is idempotent: tripping an
// already-open breaker only updates the failure count.
func (b *Breaker) RecordFailure(err error) (justTripped bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = err
	if b.state == StateClosed {
		b.state = StateOpen
		b.trippedAt = time.Now()
		return true
	}
	return false
}

// Allow reports whether a write should be attempted.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == StateClosed
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the cumulative failure count.
func (b *Breaker) Failures() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// TrippedAt returns the time the breaker first opened, or the zero
// time if it never has.
func (b *Breaker) TrippedAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trippedAt
}
