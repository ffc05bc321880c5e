package tracer

import (
	"tensortrace/internal/trace"
)

// Classifier decides, for a raw tensor pointer, whether its bytes live
// inside the model's memory-mapped file (DISK) or in some other
// runtime allocation (BUFFER), per spec.md §4.3. Initialized once with
// the half-open mmap range; Classify is constant-time and
// allocation-free, touching only the two immutable range bounds.
//
// Grounded on the teacher's pkg/cleanup.DiskSpaceManager, which makes
// the same shape of decision (is a byte count inside or outside a
// threshold range) — generalized here from a scalar threshold
// comparison to an address-range membership test.
type Classifier struct {
	mmapStart uint64
	mmapEnd   uint64
	set       bool
}

// NewClassifier builds a Classifier over the model's mmap range
// [start, end).
func NewClassifier(start, end uint64) *Classifier {
	return &Classifier{mmapStart: start, mmapEnd: end, set: true}
}

// Ready reports whether the mmap range has been established; a
// Classifier constructed via the zero value is not ready and Init
// must fail with MmapRangeMissing rather than silently misclassify.
func (c *Classifier) Ready() bool { return c.set }

// Classify returns the memory source for ptr and, for DISK, the byte
// offset into the model file (ptr - mmapStart). For BUFFER, the
// buffer id is not resolved here — spec.md §4.3 assigns that to the
// buffer-event log's reverse pointer index, which the hook consults
// separately (see BufferLog.ResolveID) because doing so here would
// require touching the buffer log's shared map on the hot path.
func (c *Classifier) Classify(ptr uint64) (trace.MemorySource, uint64) {
	if ptr >= c.mmapStart && ptr < c.mmapEnd {
		return trace.SourceDisk, ptr - c.mmapStart
	}
	return trace.SourceBuffer, 0
}
