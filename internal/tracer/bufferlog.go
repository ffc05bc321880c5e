package tracer

import (
	"bufio"
	"os"
	"sync"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"tensortrace/internal/terrors"
	"tensortrace/internal/trace"
)

// bufferRecord is the alloc-time metadata replayed verbatim onto the
// matching dealloc event, so both lines in the JSONL stream carry the
// same ptr/size/layer/label (spec.md §3.4).
type bufferRecord struct {
	ptr   uint64
	size  uint64
	layer int32
	label string
}

// BufferLog is the text-line-delimited JSON stream of allocation and
// deallocation events for non-model buffers (spec.md §4.8, §6.2). Not
// on the per-op hot path, so its id counter and file writer are
// mutex-guarded as the spec explicitly allows ("this path is not on
// the per-op hot path, so a mutex is acceptable").
//
// ResolveID, however, IS called from the hook (to fill a BUFFER
// source slot's offset_or_buffer_id), so it cannot take that mutex.
// Instead every alloc copy-on-writes a new ptr->id snapshot map and
// atomically swaps it in; ResolveID is a lock-free atomic load plus a
// read-only map lookup. Adapted from the teacher's
// pkg/types.LabelsCOW copy-on-write idea, swapped from a
// mutex-guarded COW map to an atomically-published immutable
// snapshot, because the reader here must never block (spec.md §4.6).
type BufferLog struct {
	mu     sync.Mutex
	writer *bufio.Writer
	file   *os.File
	nextID uint64
	byID   map[uint64]bufferRecord
	clock  *Clock
	logger *logrus.Logger

	snapshot atomic.Pointer[map[uint64]uint64]
}

// NewBufferLog opens path for append and prepares an empty snapshot.
func NewBufferLog(path string, clock *Clock, logger *logrus.Logger) (*BufferLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, terrors.New(terrors.KindInitFailure, terrors.CodeSinkUnavailable, "bufferlog", "NewBufferLog", "buffer event log could not be opened").Wrap(err)
	}
	bl := &BufferLog{
		writer: bufio.NewWriterSize(f, 16*1024),
		file:   f,
		nextID: 1, // 0 is reserved for "unknown" (spec.md §4.8)
		byID:   make(map[uint64]bufferRecord),
		clock:  clock,
		logger: logger,
	}
	empty := map[uint64]uint64{}
	bl.snapshot.Store(&empty)
	return bl, nil
}

// OnAlloc registers a new buffer, assigns it the next monotonic id,
// publishes the updated ptr->id snapshot, and emits the JSONL alloc
// line.
func (b *BufferLog) OnAlloc(ptr, size uint64, label string, layer int32) uint64 {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.byID[id] = bufferRecord{ptr: ptr, size: size, layer: layer, label: label}

	prev := *b.snapshot.Load()
	next := make(map[uint64]uint64, len(prev)+1)
	for k, v := range prev {
		next[k] = v
	}
	next[ptr] = id
	b.snapshot.Store(&next)
	b.mu.Unlock()

	b.writeLine(trace.BufferEvent{
		TimestampMS: b.nowMS(),
		Event:       trace.BufferEventAlloc,
		ID:          id,
		Ptr:         ptr,
		Size:        size,
		Layer:       layer,
		Label:       label,
	})
	return id
}

// OnDealloc emits the JSONL dealloc line for a previously-assigned id.
// Per spec.md §3.4's invariant, id must reference a prior alloc; if it
// does not, the event is skipped and an error is returned for the
// caller to log off the hot path (OnDealloc itself is never called
// from the hook).
func (b *BufferLog) OnDealloc(id uint64) error {
	b.mu.Lock()
	rec, ok := b.byID[id]
	b.mu.Unlock()
	if !ok {
		return terrors.New(terrors.KindParseError, terrors.CodeMalformedJSONL, "bufferlog", "OnDealloc", "dealloc references an id with no prior alloc").WithMetadata("id", id)
	}

	b.writeLine(trace.BufferEvent{
		TimestampMS: b.nowMS(),
		Event:       trace.BufferEventDealloc,
		ID:          id,
		Ptr:         rec.ptr,
		Size:        rec.size,
		Layer:       rec.layer,
		Label:       rec.label,
	})
	return nil
}

// ResolveID returns the buffer id currently associated with ptr, or 0
// ("unknown") if no alloc for that pointer has been recorded. Lock-
// free: safe to call from the operation hook.
func (b *BufferLog) ResolveID(ptr uint64) uint64 {
	m := b.snapshot.Load()
	if m == nil {
		return 0
	}
	return (*m)[ptr]
}

func (b *BufferLog) nowMS() int64 {
	if b.clock == nil {
		return 0
	}
	return int64(b.clock.NowNS() / 1_000_000)
}

func (b *BufferLog) writeLine(ev trace.BufferEvent) {
	line, err := json.Marshal(ev)
	if err != nil {
		if b.logger != nil {
			b.logger.WithError(err).Error("bufferlog: failed to marshal event")
		}
		return
	}
	line = append(line, '\n')

	b.mu.Lock()
	_, werr := b.writer.Write(line)
	b.mu.Unlock()
	if werr != nil && b.logger != nil {
		b.logger.WithError(werr).Error("bufferlog: write failed")
	}
}

// Flush forces buffered JSONL bytes to disk.
func (b *BufferLog) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writer.Flush()
}

// Close flushes and closes the underlying file.
func (b *BufferLog) Close() error {
	if err := b.Flush(); err != nil {
		b.file.Close()
		return err
	}
	return b.file.Close()
}
