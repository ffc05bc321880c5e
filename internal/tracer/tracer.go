package tracer

import (
	"github.com/sirupsen/logrus"

	"tensortrace/internal/terrors"
)

// Config is everything Init needs to stand up a Tracer (spec.md §9:
// "process-global mutable state... model as explicitly-constructed
// singletons owned by the tracer's init function").
type Config struct {
	TracePath     string
	GraphsDir     string
	BufferLogPath string
	RegistryCap   int
	RingCapacity  int

	// MmapStart/MmapEnd is the model file's mapped byte range; both
	// zero means the range was never set, and Init fails with
	// MmapRangeMissing (spec.md §4.3, §7).
	MmapStart uint64
	MmapEnd   uint64

	// NumWorkers sizes the ring-per-worker table; workers identify
	// themselves to the hook by a small stable integer id (see
	// internal/workerpool.Worker.ID) in [0, NumWorkers).
	NumWorkers int

	// AbortOnInitFailure selects the SinkUnavailable failure policy
	// spec.md §7 leaves to the implementer: true aborts Init, false
	// falls back to a NoopSink and runs the engine uninstrumented.
	AbortOnInitFailure bool

	Logger *logrus.Logger
}

// Tracer owns every tracing subcomponent for one run. Constructed by
// Init before the engine starts; dropped by Shutdown after it stops.
type Tracer struct {
	enabled bool

	clock       *Clock
	registry    *Registry
	classifier  *Classifier
	sink        *Sink // nil when running uninstrumented after SinkUnavailable
	bufferLog   *BufferLog
	graphDumper *GraphDumper
	tokens      *TokenTracker
	rings       []*Ring

	logger *logrus.Logger
}

// Init constructs every subcomponent and seals nothing yet — callers
// must still populate the registry via Registry().Register for every
// model tensor and call Registry().Seal() before the first op runs.
func Init(cfg Config) (*Tracer, error) {
	if cfg.MmapStart == 0 && cfg.MmapEnd == 0 {
		return nil, terrors.MmapRangeMissing("Init")
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 1
	}

	clock := NewClock()
	registry := NewRegistry(cfg.RegistryCap)
	classifier := NewClassifier(cfg.MmapStart, cfg.MmapEnd)

	bufferLog, err := NewBufferLog(cfg.BufferLogPath, clock, cfg.Logger)
	if err != nil {
		return nil, err
	}
	graphDumper, err := NewGraphDumper(cfg.GraphsDir)
	if err != nil {
		return nil, err
	}

	var sink *Sink
	var writer BatchWriter
	sink, err = NewSink(cfg.TracePath, cfg.Logger)
	if err != nil {
		if cfg.AbortOnInitFailure {
			return nil, err
		}
		if cfg.Logger != nil {
			cfg.Logger.WithError(err).Warn("trace sink unavailable, engine will run uninstrumented")
		}
		sink = nil
		writer = NoopSink{}
	} else {
		writer = sink
	}

	rings := make([]*Ring, cfg.NumWorkers)
	for i := range rings {
		rings[i] = NewRing(cfg.RingCapacity, writer)
	}

	return &Tracer{
		enabled:     true,
		clock:       clock,
		registry:    registry,
		classifier:  classifier,
		sink:        sink,
		bufferLog:   bufferLog,
		graphDumper: graphDumper,
		tokens:      NewTokenTracker(),
		rings:       rings,
		logger:      cfg.Logger,
	}, nil
}

// Registry exposes the tensor registry for model-load-time population.
func (t *Tracer) Registry() *Registry { return t.registry }

// Tokens exposes the token/phase tracker for the decode-call boundary.
func (t *Tracer) Tokens() *TokenTracker { return t.tokens }

// GraphDumper exposes the per-token graph dumper.
func (t *Tracer) GraphDumper() *GraphDumper { return t.graphDumper }

// BufferLog exposes the allocation/deallocation event log.
func (t *Tracer) BufferLog() *BufferLog { return t.bufferLog }

// Clock exposes the tracer's monotonic clock, e.g. for the runner to
// stamp the wall-clock epoch into per-token JSON metadata.
func (t *Tracer) Clock() *Clock { return t.clock }

// Ring returns the per-thread ring for a worker id, or nil if the id
// is out of range for the NumWorkers configured at Init.
func (t *Tracer) Ring(threadID uint16) *Ring {
	if int(threadID) >= len(t.rings) {
		return nil
	}
	return t.rings[threadID]
}

// Enabled reports whether the tracer is actively recording (false
// only when SinkUnavailable was tolerated per AbortOnInitFailure=false
// — rings still exist but write through a NoopSink).
func (t *Tracer) Enabled() bool { return t.enabled && t.sink != nil }

// Shutdown drains every ring under the sink's mutex, then flushes and
// closes the sink and the buffer log (spec.md §5: "a process exit or
// a shutdown call drains all rings and flushes the sink").
func (t *Tracer) Shutdown() error {
	for _, r := range t.rings {
		r.Drain()
	}

	var first error
	if t.sink != nil {
		if err := t.sink.Close(); err != nil {
			first = err
		}
	}
	if err := t.bufferLog.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
