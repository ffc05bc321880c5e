package tracer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tensortrace/internal/trace"
)

// collectingWriter is a BatchWriter test double that appends every
// batch it receives, in call order, so tests can assert both ordering
// and total count.
type collectingWriter struct {
	batches [][]trace.Record
}

func (w *collectingWriter) WriteBatch(records []trace.Record) {
	batch := make([]trace.Record, len(records))
	copy(batch, records)
	w.batches = append(w.batches, batch)
}

func (w *collectingWriter) all() []trace.Record {
	var out []trace.Record
	for _, b := range w.batches {
		out = append(out, b...)
	}
	return out
}

func TestRingAppendsInFIFOOrder(t *testing.T) {
	w := &collectingWriter{}
	r := NewRing(8, w)

	for i := uint32(0); i < 5; i++ {
		r.Append(trace.Record{TokenID: i})
	}
	r.Drain()

	all := w.all()
	require.Len(t, all, 5)
	for i, rec := range all {
		assert.Equal(t, uint32(i), rec.TokenID)
	}
}

func TestRingOverflowDrainsNeverDrops(t *testing.T) {
	w := &collectingWriter{}
	r := NewRing(8, w)

	const total = 100
	for i := uint32(0); i < total; i++ {
		r.Append(trace.Record{TokenID: i})
	}
	r.Drain()

	all := w.all()
	require.Len(t, all, total)
	for i, rec := range all {
		assert.Equal(t, uint32(i), rec.TokenID, "record %d out of order or duplicated", i)
	}
}

func TestRingLenResetsAfterDrain(t *testing.T) {
	w := &collectingWriter{}
	r := NewRing(4, w)
	r.Append(trace.Record{})
	r.Append(trace.Record{})
	assert.Equal(t, 2, r.Len())
	r.Drain()
	assert.Equal(t, 0, r.Len())
}
