// Package terrors defines the typed error kinds used across the
// tracer, offline pipeline, and runner (spec.md §7): InitFailure,
// Degraded, Overflow, ParseError, CorrelationAmbiguity, and
// RunnerStepFailure. Adapted from the teacher's pkg/errors.AppError —
// same code/component/operation/metadata shape (no severity field), narrowed to
// the kinds this system actually needs instead of a general-purpose
// catalog.
package terrors

import (
	"fmt"
	"time"
)

// Kind is the error category from spec.md §7.
type Kind string

const (
	KindInitFailure          Kind = "init_failure"
	KindDegraded             Kind = "degraded"
	KindOverflow             Kind = "overflow"
	KindParseError           Kind = "parse_error"
	KindCorrelationAmbiguity Kind = "correlation_ambiguity"
	KindRunnerStepFailure    Kind = "runner_step_failure"
)

// Code is a specific, stable error code within a Kind; the CLI uses it
// to give SinkUnavailable and RegistryFull exit statuses of their own.
type Code string

const (
	CodeSinkUnavailable   Code = "SINK_UNAVAILABLE"
	CodeRegistryFull      Code = "REGISTRY_FULL"
	CodeMmapRangeMissing  Code = "MMAP_RANGE_MISSING"
	CodeSinkWriteFailed   Code = "SINK_WRITE_FAILED"
	CodeRingOverflow      Code = "RING_OVERFLOW"
	CodeTruncatedTrace    Code = "TRUNCATED_TRACE"
	CodeMalformedCSV      Code = "MALFORMED_CSV"
	CodeMalformedJSONL    Code = "MALFORMED_JSONL"
	CodeDuplicateGraph    Code = "DUPLICATE_GRAPH_FOR_TOKEN"
	CodeAmbiguousPrefix   Code = "CORRELATION_AMBIGUITY"
	CodeStepFailed        Code = "RUNNER_STEP_FAILED"
)

// TracerError is the standardized error type for this system. It
// carries enough structure for both the off-hot-path caller
// (constructing it) and the CLI (selecting an exit code from it).
type TracerError struct {
	Kind      Kind
	Code      Code
	Component string
	Operation string
	Message   string
	Cause     error
	Metadata  map[string]any
	Timestamp time.Time
}

func (e *TracerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s/%s: %s: %v", e.Component, e.Operation, e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s/%s: %s", e.Component, e.Operation, e.Kind, e.Code, e.Message)
}

func (e *TracerError) Unwrap() error { return e.Cause }

// New constructs a TracerError.
func New(kind Kind, code Code, component, operation, message string) *TracerError {
	return &TracerError{
		Kind:      kind,
		Code:      code,
		Component: component,
		Operation: operation,
		Message:   message,
		Metadata:  make(map[string]any),
		Timestamp: time.Now(),
	}
}

// Wrap attaches a cause to a TracerError and returns it for chaining.
func (e *TracerError) Wrap(cause error) *TracerError {
	e.Cause = cause
	return e
}

// WithMetadata attaches a diagnostic key/value, used by the parsers to
// report a line number or byte offset alongside the error.
func (e *TracerError) WithMetadata(key string, value any) *TracerError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
	return e
}

// As reports whether err is a *TracerError and, if so, returns it.
func As(err error) (*TracerError, bool) {
	te, ok := err.(*TracerError)
	return te, ok
}

// Convenience constructors, one per error condition named in spec.md
// §7.

func SinkUnavailable(operation string, cause error) *TracerError {
	return New(KindInitFailure, CodeSinkUnavailable, "sink", operation, "trace sink could not be opened").Wrap(cause)
}

func RegistryFull(operation string, capacity int) *TracerError {
	return New(KindInitFailure, CodeRegistryFull, "registry", operation, "tensor registry capacity exhausted").
		WithMetadata("capacity", capacity)
}

func MmapRangeMissing(operation string) *TracerError {
	return New(KindInitFailure, CodeMmapRangeMissing, "classifier", operation, "model mmap range was never set")
}

func Degraded(operation string, cause error) *TracerError {
	return New(KindDegraded, CodeSinkWriteFailed, "sink", operation, "sink write failed, tracing degraded").Wrap(cause)
}

func TruncatedTrace(operation string, size int64) *TracerError {
	return New(KindParseError, CodeTruncatedTrace, "traceparser", operation, "trace file size is not a multiple of RecordSize").
		WithMetadata("file_size", size)
}

func MalformedCSV(operation string, line int, cause error) *TracerError {
	return New(KindParseError, CodeMalformedCSV, "layoutparser", operation, "malformed layout CSV row").
		WithMetadata("line", line).Wrap(cause)
}

func MalformedJSONL(operation string, line int, cause error) *TracerError {
	return New(KindParseError, CodeMalformedJSONL, "buffereventparser", operation, "malformed buffer event JSONL line").
		WithMetadata("line", line).Wrap(cause)
}

func DuplicateGraphForToken(operation string, tokenID uint32) *TracerError {
	return New(KindParseError, CodeDuplicateGraph, "graphparser", operation, "duplicate graph dump for token").
		WithMetadata("token_id", tokenID)
}

func CorrelationAmbiguity(operation, truncatedName string) *TracerError {
	return New(KindCorrelationAmbiguity, CodeAmbiguousPrefix, "correlate", operation, "truncated name matches more than one layout entry and could not be disambiguated").
		WithMetadata("truncated_name", truncatedName)
}

func StepFailed(operation string, cause error) *TracerError {
	return New(KindRunnerStepFailure, CodeStepFailed, "runner", operation, "experiment runner step failed").Wrap(cause)
}
