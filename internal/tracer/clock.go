// Package tracer is the in-process tensor-access tracer (spec.md §2,
// §4): clock and thread identity, tensor registry, memory-source
// classifier, per-thread ring buffers, trace sink, buffer event log,
// graph dumper, operation hook, and token/phase tracker. Every
// component here is owned by a single Tracer instance constructed at
// Init and dropped at Shutdown (spec.md §9: "process-global mutable
// state... model as explicitly-constructed singletons").
package tracer

import (
	"sync/atomic"
	"time"
)

// Clock supplies the two primitives spec.md §4.1 requires of the hot
// path: a monotonic nanosecond counter relative to tracer init, and a
// short, process-stable thread identifier. Neither call may block or
// allocate.
//
// Go has no allocation-free way to read an OS thread id from a
// goroutine (goroutines are not pinned to OS threads), so ThreadID is
// not derived from the OS at all: the engine's worker pool
// (internal/workerpool) already hands every dispatcher worker a
// stable small integer id at construction, and the hook is called
// with that id already in hand. Clock itself only owns the epoch.
type Clock struct {
	epoch     time.Time
	epochMono int64 // time.Now().UnixNano() captured at the same instant, for metadata only
}

// NewClock captures the tracer's epoch. Call once, at Init.
func NewClock() *Clock {
	now := time.Now()
	return &Clock{epoch: now, epochMono: now.UnixNano()}
}

// NowNS returns nanoseconds elapsed since the epoch captured at
// construction. This is the value stored in every Record's
// TimestampNS field (spec.md §3.1). Monotonic per time.Since's
// guarantees; not comparable across processes.
func (c *Clock) NowNS() uint64 {
	return uint64(time.Since(c.epoch).Nanoseconds())
}

// EpochUnixNano returns the wall-clock time the epoch was captured,
// recorded once as metadata so consumers can render human-readable
// timestamps (spec.md §5: "Wall-clock time is recorded once at init
// as metadata"; this is also the chosen resolution of the open
// question over timestamp_start_ns semantics — see DESIGN.md).
func (c *Clock) EpochUnixNano() int64 {
	return c.epochMono
}

// threadIDSeq backs AllocateThreadID for call sites that are not
// already routed through the worker pool.
var threadIDSeq uint32

// AllocateThreadID hands back the next thread id from a monotonic
// counter. Only used when a caller has no worker-pool-assigned id
// available; the engine's dispatcher workers should prefer their own
// workerpool.Worker.ID.
func AllocateThreadID() uint16 {
	id := atomic.AddUint32(&threadIDSeq, 1) - 1
	return uint16(id)
}
