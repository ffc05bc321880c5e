package tracer

import "tensortrace/internal/trace"

// BatchWriter is the subset of Sink a Ring needs: write records and
// account for write errors internally (spec.md §7: hot-path errors
// are absorbed, never propagated). Split out as an interface so Ring
// can be tested without a real file-backed Sink.
type BatchWriter interface {
	WriteBatch(records []trace.Record)
}

// Ring is a fixed-capacity, single-owner staging buffer for trace
// records (spec.md §4.4). Exactly one goroutine ever appends to a
// given Ring — there is no cross-thread write, so Append takes no
// lock. When the local capacity threshold is reached, Append itself
// drains the ring into the sink before accepting the new record; a
// record is never dropped.
//
// Grounded on the teacher's pkg/backpressure.Manager (a local buffer
// that must drain before accepting more work) combined with
// pkg/batching.AdaptiveBatcher's capacity-threshold-triggers-flush
// logic, adapted here from byte/item counting of log batches to
// record counting of fixed-size trace records.
type Ring struct {
	sink     BatchWriter
	buf      []trace.Record
	len      int
	capacity int
}

// NewRing builds a Ring of the given capacity backed by sink. A
// capacity below 1 is raised to 1; the 1024 floor of spec.md §4.4 is
// enforced by config validation, not here.
func NewRing(capacity int, sink BatchWriter) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{
		sink:     sink,
		buf:      make([]trace.Record, capacity),
		capacity: capacity,
	}
}

// Append stages one record, draining to the sink first if the ring is
// already full. No allocation on the common (non-draining) path.
func (r *Ring) Append(rec trace.Record) {
	if r.len == r.capacity {
		r.Drain()
	}
	r.buf[r.len] = rec
	r.len++
}

// Drain flushes every staged record to the sink and resets the ring.
// Called either inline by Append (overflow) or by the owning thread
// at shutdown (spec.md §5: "a process exit or a shutdown call drains
// all rings").
func (r *Ring) Drain() {
	if r.len == 0 {
		return
	}
	r.sink.WriteBatch(r.buf[:r.len])
	r.len = 0
}

// Len reports the number of currently staged records, used by tests
// and by metrics to watch drain frequency.
func (r *Ring) Len() int { return r.len }
