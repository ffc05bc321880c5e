package offline

import (
	"bufio"
	"os"

	"github.com/goccy/go-json"

	"tensortrace/internal/terrors"
	"tensortrace/internal/trace"
)

// BufferLifetime is one reconstructed alloc/dealloc span from the
// buffer event log (spec.md §4.10: "reconstructs a buffer lifetime
// timeline"). DeallocMS is nil for a buffer still live at end of run.
type BufferLifetime struct {
	ID        uint64
	Ptr       uint64
	Size      uint64
	Layer     int32
	Label     string
	AllocMS   int64
	DeallocMS *int64
}

// ParseBufferEventLog reads the JSONL alloc/dealloc stream (spec.md
// §6.2) and reconstructs a lifetime per id. A dealloc with no prior
// alloc, or a duplicate alloc of a still-live id, is a diagnostic, not
// a hard failure, per §7's "offline only" parser-error policy.
func ParseBufferEventLog(path string) ([]BufferLifetime, Diagnostics, error) {
	var diag Diagnostics

	f, err := os.Open(path)
	if err != nil {
		return nil, diag, err
	}
	defer f.Close()

	live := make(map[uint64]*BufferLifetime)
	var order []uint64
	var done []BufferLifetime

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var ev trace.BufferEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			diag.WarnSkip(int64(line), "line %d: %v", line, terrors.MalformedJSONL("ParseBufferEventLog", line, err))
			continue
		}

		switch ev.Event {
		case trace.BufferEventAlloc:
			if _, exists := live[ev.ID]; exists {
				diag.Warn(int64(line), "line %d: duplicate alloc for still-live id %d", line, ev.ID)
			}
			live[ev.ID] = &BufferLifetime{
				ID:      ev.ID,
				Ptr:     ev.Ptr,
				Size:    ev.Size,
				Layer:   ev.Layer,
				Label:   ev.Label,
				AllocMS: ev.TimestampMS,
			}
			order = append(order, ev.ID)
		case trace.BufferEventDealloc:
			bl, ok := live[ev.ID]
			if !ok {
				diag.WarnSkip(int64(line), "line %d: dealloc for unknown id %d", line, ev.ID)
				continue
			}
			ts := ev.TimestampMS
			bl.DeallocMS = &ts
			done = append(done, *bl)
			delete(live, ev.ID)
		default:
			diag.WarnSkip(int64(line), "line %d: unrecognized event kind %q", line, ev.Event)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, diag, err
	}

	emitted := make(map[uint64]bool, len(live))
	for _, id := range order {
		if emitted[id] {
			continue
		}
		if bl, ok := live[id]; ok {
			done = append(done, *bl)
			emitted[id] = true
		}
	}
	return done, diag, nil
}
