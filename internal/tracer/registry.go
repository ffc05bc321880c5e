package tracer

import (
	"strconv"
	"strings"
	"sync"

	"tensortrace/internal/terrors"
	"tensortrace/internal/trace"
)

// Registry is the process-global, write-once tensor table (spec.md
// §4.2): Register installs entries during model load, Lookup resolves
// a pointer to its metadata during tracing. Grounded on the teacher's
// pkg/positions.PositionBufferManager — an in-memory, mutex-guarded,
// append-mostly table keyed by an id — generalized here from a
// string-keyed position table to a pointer-keyed, write-once tensor
// table.
//
// Register is mutex-guarded because model load may itself be
// concurrent (parallel tensor mmap across loader goroutines); Lookup
// takes no lock at all, because spec.md §4.2 is explicit that "the
// registry is populated entirely before any inference and never
// modified afterward, so readers need no synchronization" once Seal
// has been called.
type Registry struct {
	mu       sync.Mutex
	capacity int
	entries  map[uint64]trace.RegistryEntry
	sealed   bool
}

// NewRegistry builds a Registry with a fixed capacity. Size to the
// largest expected model (spec.md §4.2: "capacity... implementers
// must size to the largest expected model").
func NewRegistry(capacity int) *Registry {
	return &Registry{
		capacity: capacity,
		entries:  make(map[uint64]trace.RegistryEntry, capacity),
	}
}

// Register installs one immutable entry. Returns RegistryFull once
// capacity is exhausted.
func (r *Registry) Register(ptr uint64, name string, fileOffset, size uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return terrors.New(terrors.KindInitFailure, terrors.CodeRegistryFull, "registry", "Register", "registry is sealed, cannot register after tracing has begun")
	}
	if len(r.entries) >= r.capacity {
		return terrors.RegistryFull("Register", r.capacity)
	}

	r.entries[ptr] = trace.RegistryEntry{
		Ptr:        ptr,
		Name:       name,
		FileOffset: fileOffset,
		Size:       size,
		LayerID:    ParseLayerID(name),
	}
	return nil
}

// Seal marks registration complete. Called once, at the end of model
// load, before the first inference op. After Seal, Lookup is
// data-race free without any further synchronization because the
// underlying map is never again written.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Lookup resolves a previously-registered pointer. No lock: valid only
// after Seal, per the registry's documented lifecycle.
func (r *Registry) Lookup(ptr uint64) (trace.RegistryEntry, bool) {
	e, ok := r.entries[ptr]
	return e, ok
}

// Len reports the number of registered entries, used by metrics and
// by Seal-time sanity checks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// ParseLayerID extracts the layer id from a tensor's logical name per
// spec.md §4.2: a "block.N." prefix for integer N means layer_id=N;
// anything else is the LayerIDNone sentinel.
func ParseLayerID(name string) uint16 {
	const prefix = "block."
	if !strings.HasPrefix(name, prefix) {
		return trace.LayerIDNone
	}
	rest := name[len(prefix):]
	dot := strings.IndexByte(rest, '.')
	if dot < 0 {
		return trace.LayerIDNone
	}
	n, err := strconv.ParseUint(rest[:dot], 10, 16)
	if err != nil {
		return trace.LayerIDNone
	}
	return uint16(n)
}
