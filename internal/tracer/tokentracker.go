package tracer

import "tensortrace/internal/trace"

// TokenTracker holds the two globals spec.md §4.7 describes:
// current_token and phase. Both are written exactly once per decode
// call, by the single controlling thread that invokes decode, before
// any op for that token dispatches; hook-calling workers only ever
// read values already settled by that write. Spec.md §5 is explicit
// that this needs no atomics because per-token processing is
// sequential — so, deliberately, this type has no mutex and no
// atomic fields.
//
// Grounded on the teacher's pkg/task_manager.TaskManager phase
// bookkeeping: a small set of plain fields updated at well-defined
// lifecycle boundaries rather than continuously.
type TokenTracker struct {
	currentToken uint32
	phase        trace.Phase
}

// NewTokenTracker starts the counter at 0 (spec.md §4.7).
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// BeginDecode is called by the controlling thread at the start of a
// decode call, before dispatching any op for tokenID.
func (t *TokenTracker) BeginDecode(tokenID uint32, phase trace.Phase) {
	t.currentToken = tokenID
	t.phase = phase
}

// Token returns the token ordinal currently being processed.
func (t *TokenTracker) Token() uint32 { return t.currentToken }

// Phase returns the current run phase.
func (t *TokenTracker) Phase() trace.Phase { return t.phase }
