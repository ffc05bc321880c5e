package tracer

import "tensortrace/internal/trace"

// SourceInput is one source tensor as the engine's dispatcher sees it,
// before classification: a name, its raw runtime pointer, and its
// byte size. The hook resolves the rest (source-layer, memory-source,
// offset-or-id) itself.
type SourceInput struct {
	Name string
	Ptr  uint64
	Size uint32
}

// OpContext is everything the engine's dispatcher hands the hook for
// one executed op (spec.md §4.6). Sources and ExpertIDs are fixed-size
// arrays, not slices, so a caller that builds one on the stack and
// passes it by value gives the hook nothing to allocate.
type OpContext struct {
	DstName       string
	OperationType uint8
	NumSources    uint8
	Sources       [trace.MaxSourceSlots]SourceInput
	NumExperts    uint8
	ExpertIDs     [trace.MaxExpertIDs]uint8
}

// Hook is the single call site inside the engine's operation
// dispatcher (spec.md §4.6): invoked once per executed op, only by
// the thread with logical rank 0 within that op's worker pool. It
// must not allocate, block, call system I/O, or touch shared mutable
// state other than ring — the classifier's range and the registry's
// map are both read-only at this point in the tracer's lifecycle, and
// the buffer log's snapshot read is a lock-free atomic load.
func (tr *Tracer) Hook(ring *Ring, threadID uint16, ctx OpContext) {
	if tr == nil || !tr.enabled {
		return
	}

	var rec trace.Record
	rec.TimestampNS = tr.clock.NowNS()
	rec.ThreadID = threadID
	rec.TokenID = tr.tokens.Token()
	rec.Phase = tr.tokens.Phase()
	rec.OperationType = ctx.OperationType
	rec.DstName = ctx.DstName
	rec.LayerID = ParseLayerID(ctx.DstName)

	n := ctx.NumSources
	if n > trace.MaxSourceSlots {
		n = trace.MaxSourceSlots
	}
	rec.NumSources = n
	for i := uint8(0); i < n; i++ {
		src := ctx.Sources[i]
		memSource, offsetOrID := tr.classifier.Classify(src.Ptr)
		if memSource == trace.SourceBuffer {
			offsetOrID = tr.bufferLog.ResolveID(src.Ptr)
		}
		rec.Sources[i] = trace.SourceSlot{
			Name:        src.Name,
			Ptr:         src.Ptr,
			Size:        src.Size,
			SourceLayer: ParseLayerID(src.Name),
			Memory:      memSource,
			OffsetOrID:  offsetOrID,
		}
	}

	k := ctx.NumExperts
	if k > trace.MaxExpertIDs {
		k = trace.MaxExpertIDs
	}
	rec.NumExperts = k
	for i := uint8(0); i < k; i++ {
		rec.ExpertIDs[i] = ctx.ExpertIDs[i]
	}

	ring.Append(rec)
}
