// Package offline implements the four offline parsers (spec.md §4.10),
// truncated-name correlation and per-tensor heatmap (§4.11), and the
// hot/cold outlier pass that rides on top of the heatmap. Every parser
// is a pure reader: it never mutates its input artifact and always
// returns a result alongside a Diagnostics summary, per spec.md §9's
// "result-and-context" error-surfacing policy.
package offline

import "fmt"

// Diagnostics accumulates warnings, a skip count, and the byte/line
// offsets a caller needs to locate a problem, rather than failing a
// whole parse on the first bad record. Shared across all four parsers
// and the correlator.
type Diagnostics struct {
	Warnings    []string
	Skipped     int
	ByteOffsets []int64
}

// Warn records one diagnostic line with its offset.
func (d *Diagnostics) Warn(offset int64, format string, args ...any) {
	d.Warnings = append(d.Warnings, fmt.Sprintf(format, args...))
	d.ByteOffsets = append(d.ByteOffsets, offset)
}

// WarnSkip records a diagnostic and counts the record as skipped.
func (d *Diagnostics) WarnSkip(offset int64, format string, args ...any) {
	d.Warn(offset, format, args...)
	d.Skipped++
}

// Clean reports whether the parse produced no warnings at all.
func (d *Diagnostics) Clean() bool { return len(d.Warnings) == 0 }
