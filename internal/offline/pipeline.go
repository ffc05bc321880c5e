package offline

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"tensortrace/internal/trace"
	"tensortrace/internal/workerpool"
)

// ParserInputs names the four on-disk artifacts a pipeline run reads.
type ParserInputs struct {
	TracePath     string
	LayoutCSVPath string
	BufferLogPath string
	GraphsDir     string
	ModelName     string
}

// ParseResult collects every parser's output plus its own Diagnostics,
// keyed by artifact, so a caller can inspect per-parser health
// independently (spec.md §7: "each parser reports a line or byte
// offset; partial outputs MAY be produced").
type ParseResult struct {
	Trace      *TraceParseResult
	TraceErr   error
	Layout     *trace.MemoryMap
	LayoutDiag Diagnostics
	LayoutErr  error
	Buffers    []BufferLifetime
	BufferDiag Diagnostics
	BufferErr  error
	Graphs     map[uint32]*trace.GraphDump
	GraphDiag  Diagnostics
	GraphErr   error
}

// RunParsers dispatches the four offline parsers concurrently across
// an adapted workerpool.WorkerPool of four workers, one task per
// parser, since each reads an independent artifact. A failing parser does not
// block the other three; its error is recorded on the returned
// ParseResult instead of aborting the run.
func RunParsers(in ParserInputs, logger *logrus.Logger) *ParseResult {
	wp := workerpool.New(workerpool.Config{MaxWorkers: 4}, logger)
	wp.Start()
	defer wp.Stop()

	result := &ParseResult{}
	var wg sync.WaitGroup
	wg.Add(4)

	submit := func(id string, fn func()) {
		err := wp.Submit(workerpool.Task{
			ID: id,
			Execute: func(ctx context.Context) error {
				defer wg.Done()
				fn()
				return nil
			},
		})
		if err != nil {
			wg.Done()
			if logger != nil {
				logger.WithError(err).WithField("task", id).Warn("offline pipeline: failed to submit parser task")
			}
		}
	}

	submit("trace", func() {
		result.Trace, result.TraceErr = ParseTraceFile(in.TracePath)
	})
	submit("layout", func() {
		result.Layout, result.LayoutDiag, result.LayoutErr = ParseLayoutCSV(in.LayoutCSVPath, in.ModelName)
	})
	submit("buffer_events", func() {
		result.Buffers, result.BufferDiag, result.BufferErr = ParseBufferEventLog(in.BufferLogPath)
	})
	submit("graphs", func() {
		result.Graphs, result.GraphDiag, result.GraphErr = ParseGraphDumpsDir(in.GraphsDir)
	})

	wg.Wait()
	return result
}

// formatVersion is stamped into every per-token JSON document's
// metadata block (spec.md §6.5).
const formatVersion = 1

// BuildTokenDocument reconstructs one token's consumer-facing JSON
// document (spec.md §6.5) from its trace records, reconciling every
// truncated name against correlator along the way.
func BuildTokenDocument(tokenID uint32, records []trace.Record, correlator *Correlator, clockEpochUnixNs int64) (*trace.TokenDocument, Diagnostics) {
	var diag Diagnostics
	if len(records) == 0 {
		return &trace.TokenDocument{Metadata: trace.TokenMetadata{TokenID: tokenID, FormatVersion: formatVersion}}, diag
	}

	startNS := records[0].TimestampNS
	for _, r := range records {
		if r.TimestampNS < startNS {
			startNS = r.TimestampNS
		}
	}

	entries := make([]trace.TokenEntry, 0, len(records))
	for i, r := range records {
		dstName, _, err := correlator.Resolve(r.DstName, trace.SourceBuffer, 0)
		if err != nil {
			diag.Warn(int64(i), "entry %d dst: %v", i, err)
			dstName = r.DstName
		}

		sources := make([]trace.TokenSourceEntry, 0, r.NumSources)
		for s := uint8(0); s < r.NumSources && int(s) < len(r.Sources); s++ {
			slot := r.Sources[s]
			name, _, err := correlator.Resolve(slot.Name, slot.Memory, slot.OffsetOrID)
			if err != nil {
				diag.Warn(int64(i), "entry %d source %d: %v", i, s, err)
				name = slot.Name
			}
			se := trace.TokenSourceEntry{
				Name:         name,
				TensorPtr:    fmt.Sprintf("0x%x", slot.Ptr),
				SizeBytes:    slot.Size,
				LayerID:      trace.LayerIDOrNil(slot.SourceLayer),
				MemorySource: slot.Memory.String(),
			}
			offsetOrID := slot.OffsetOrID
			if slot.Memory == trace.SourceDisk {
				se.DiskOffset = &offsetOrID
			} else {
				se.BufferID = &offsetOrID
			}
			sources = append(sources, se)
		}

		experts := make([]uint8, r.NumExperts)
		copy(experts, r.ExpertIDs[:r.NumExperts])

		entries = append(entries, trace.TokenEntry{
			EntryID:             i,
			TimestampNS:         r.TimestampNS,
			TimestampRelativeMS: float64(r.TimestampNS-startNS) / 1e6,
			TokenID:             r.TokenID,
			LayerID:             trace.LayerIDOrNil(r.LayerID),
			ThreadID:            r.ThreadID,
			Phase:               r.Phase.String(),
			OperationType:       r.OperationType,
			DstName:             dstName,
			NumSources:          r.NumSources,
			Sources:             sources,
			ExpertIDs:           experts,
			NumExperts:          r.NumExperts,
		})
	}

	last := records[0].TimestampNS
	for _, r := range records {
		if r.TimestampNS > last {
			last = r.TimestampNS
		}
	}

	doc := &trace.TokenDocument{
		Metadata: trace.TokenMetadata{
			Phase:            records[0].Phase.String(),
			TokenID:          tokenID,
			TotalEntries:     len(entries),
			DurationMS:       int64((last - startNS) / 1e6),
			TimestampStartNs: startNS,
			ClockEpochUnixNs: clockEpochUnixNs,
			FormatVersion:    formatVersion,
		},
		Entries: entries,
	}
	return doc, diag
}
