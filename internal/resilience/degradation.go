package resilience

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// DegradationManager wraps a Breaker with the "single diagnostic
// line" rule from spec.md §4.5/§7: the transition into Degraded is
// logged exactly once, no matter how many subsequent writes fail.
// Adapted from the teacher's pkg/degradation.Manager, narrowed from a
// multi-feature degrade matrix to the tracer's single feature (trace
// writes).
type DegradationManager struct {
	breaker *Breaker
	logger  *logrus.Logger

	mu     sync.Mutex
	warned bool
}

// NewDegradationManager builds a manager around a fresh Breaker.
func NewDegradationManager(logger *logrus.Logger) *DegradationManager {
	return &DegradationManager{breaker: NewBreaker(), logger: logger}
}

// Healthy reports whether the sink should still attempt writes.
func (m *DegradationManager) Healthy() bool {
	return m.breaker.Allow()
}

// ReportWriteError records a sink write failure and, on the first such
// failure, emits the single required diagnostic line.
func (m *DegradationManager) ReportWriteError(err error) {
	justTripped := m.breaker.RecordFailure(err)
	if !justTripped {
		return
	}

	m.mu.Lock()
	alreadyWarned := m.warned
	m.warned = true
	m.mu.Unlock()

	if alreadyWarned || m.logger == nil {
		return
	}
	m.logger.WithError(err).Error("trace sink write failed, tracing degraded: subsequent records will be discarded")
}

// State exposes the underlying breaker state for metrics/health
// reporting.
func (m *DegradationManager) State() State { return m.breaker.State() }

// Failures exposes the cumulative failure count for metrics.
func (m *DegradationManager) Failures() int64 { return m.breaker.Failures() }
