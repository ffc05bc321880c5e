package offline

import (
	"strings"

	"github.com/cespare/xxhash/v2"

	"tensortrace/internal/terrors"
	"tensortrace/internal/trace"
)

// truncatedNameLen is the exact length a name reaches once the
// tracer's fixed 20-byte name field has truncated it (spec.md §4.11:
// "trace source and destination names are truncated to 19
// characters"). A name shorter than this was never truncated.
const truncatedNameLen = 19

// Correlator reconciles truncated trace names against the full model
// memory map (spec.md §4.11). Grounded on the teacher's
// pkg/deduplication.Manager, generalized from content-hash dedup of
// whole log lines to a 19-byte-prefix bucket keyed by
// cespare/xxhash/v2, with literal-prefix verification inside each
// bucket so a hash collision can never merge two unrelated tensors.
type Correlator struct {
	byFullName map[string]trace.TensorLayout
	byPrefix   map[uint64][]trace.TensorLayout
}

// NewCorrelator indexes every tensor in mm by its full name and by the
// xxhash of its first truncatedNameLen characters.
func NewCorrelator(mm *trace.MemoryMap) *Correlator {
	c := &Correlator{
		byFullName: make(map[string]trace.TensorLayout, len(mm.Tensors)),
		byPrefix:   make(map[uint64][]trace.TensorLayout, len(mm.Tensors)),
	}
	for _, t := range mm.Tensors {
		c.byFullName[t.Name] = t
		key := xxhash.Sum64String(prefixKey(t.Name))
		c.byPrefix[key] = append(c.byPrefix[key], t)
	}
	return c
}

func prefixKey(name string) string {
	if len(name) > truncatedNameLen {
		return name[:truncatedNameLen]
	}
	return name
}

// Resolve reconciles one possibly-truncated name from a trace record
// into its full layout entry. memSource and offsetOrID are the
// record's own classification and offset-or-buffer-id for the slot
// being resolved; they are only consulted to disambiguate an
// ambiguous 19-character prefix, per spec.md §4.11 ("the disambiguator
// is the source's pointer or offset"). A name with no memory-map entry
// at all (a runtime buffer) resolves with a nil layout and no error.
func (c *Correlator) Resolve(name string, memSource trace.MemorySource, offsetOrID uint64) (string, *trace.TensorLayout, error) {
	if len(name) < truncatedNameLen {
		if t, ok := c.byFullName[name]; ok {
			return name, &t, nil
		}
		return name, nil, nil
	}

	bucket := c.byPrefix[xxhash.Sum64String(prefixKey(name))]
	var candidates []trace.TensorLayout
	for _, t := range bucket {
		if strings.HasPrefix(t.Name, name) {
			candidates = append(candidates, t)
		}
	}

	switch len(candidates) {
	case 0:
		return name, nil, nil
	case 1:
		return candidates[0].Name, &candidates[0], nil
	default:
		if memSource == trace.SourceDisk {
			for _, t := range candidates {
				if offsetOrID >= t.Offset && offsetOrID < t.OffsetEnd {
					return t.Name, &t, nil
				}
			}
		}
		return name, nil, terrors.CorrelationAmbiguity("Resolve", name)
	}
}
