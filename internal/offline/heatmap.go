package offline

import (
	"sort"

	"tensortrace/internal/trace"
)

// HeatmapBuilder accumulates per-tensor access-frequency counters
// while walking a trace (spec.md §4.11). Grounded on the teacher's
// pkg/anomaly frequency-counting machinery, repurposed from
// request-rate counters to tensor-access counters; the resulting
// table feeds DetectOutliers (anomaly.go) in place of the teacher's own detector
// output.
type HeatmapBuilder struct {
	correlator *Correlator
	entries    map[string]*trace.HeatmapEntry
}

// NewHeatmapBuilder builds a HeatmapBuilder that reconciles truncated
// names against mm before counting them.
func NewHeatmapBuilder(mm *trace.MemoryMap) *HeatmapBuilder {
	return &HeatmapBuilder{
		correlator: NewCorrelator(mm),
		entries:    make(map[string]*trace.HeatmapEntry),
	}
}

// entryFor returns the accumulator for name, creating it on first
// touch. A tensor absent from the memory map (a runtime buffer) still
// gets an entry, keyed by its resolved-or-truncated name alone, per
// spec.md §4.11 ("tensors missing from the memory map are still
// counted, keyed by their truncated-or-full name"); its per-access
// DISK/BUFFER split is tracked by DiskAccesses/BufferAccesses on that
// same entry rather than by a separate key, since a single tensor is
// either disk-resident for its whole lifetime or not.
func (b *HeatmapBuilder) entryFor(name string, layout *trace.TensorLayout) *trace.HeatmapEntry {
	e, ok := b.entries[name]
	if ok {
		return e
	}
	e = &trace.HeatmapEntry{Name: name}
	if layout != nil {
		off := layout.Offset
		e.Offset = &off
		e.SizeBytes = layout.Size
		e.IsDiskResident = true
	}
	b.entries[name] = e
	return e
}

func touchTimestamps(e *trace.HeatmapEntry, ts uint64) {
	if e.FirstAccessNS == 0 || ts < e.FirstAccessNS {
		e.FirstAccessNS = ts
	}
	if ts > e.LastAccessNS {
		e.LastAccessNS = ts
	}
}

// Ingest walks records and updates every touched tensor's counters.
// Ambiguous-prefix correlation failures are reported in the returned
// Diagnostics and the record is still counted, under its truncated
// name, per spec.md §7's CorrelationAmbiguity policy.
func (b *HeatmapBuilder) Ingest(records []trace.Record) Diagnostics {
	var diag Diagnostics

	for i, rec := range records {
		destName, destLayout, err := b.correlator.Resolve(rec.DstName, trace.SourceBuffer, 0)
		if err != nil {
			diag.Warn(int64(i), "record %d: %v", i, err)
			destName = rec.DstName
			destLayout = nil
		}
		dst := b.entryFor(destName, destLayout)
		dst.TotalAccesses++
		dst.DestWrites++
		if destLayout != nil {
			dst.DiskAccesses++
		} else {
			dst.BufferAccesses++
		}
		touchTimestamps(dst, rec.TimestampNS)

		for s := uint8(0); s < rec.NumSources && int(s) < len(rec.Sources); s++ {
			src := rec.Sources[s]
			srcName, srcLayout, err := b.correlator.Resolve(src.Name, src.Memory, src.OffsetOrID)
			if err != nil {
				diag.Warn(int64(i), "record %d source %d: %v", i, s, err)
				srcName = src.Name
				srcLayout = nil
			}
			e := b.entryFor(srcName, srcLayout)
			e.TotalAccesses++
			e.SourceReads++
			if src.Memory == trace.SourceDisk {
				e.DiskAccesses++
			} else {
				e.BufferAccesses++
			}
			touchTimestamps(e, rec.TimestampNS)
		}
	}
	return diag
}

// Entries returns the accumulated per-tensor heatmap, unordered.
func (b *HeatmapBuilder) Entries() []trace.HeatmapEntry {
	out := make([]trace.HeatmapEntry, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, *e)
	}
	return out
}

// SortedHeatmapEntries orders entries by name, giving the heatmap.json
// artifact (spec.md §3.7) a deterministic on-disk byte order instead
// of map-iteration order.
func SortedHeatmapEntries(entries []trace.HeatmapEntry) []trace.HeatmapEntry {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}
