package offline

import (
	"os"
	"sort"

	"tensortrace/internal/terrors"
	"tensortrace/internal/trace"
)

// TraceParseResult is the binary trace parser's output (spec.md
// §4.10): the successfully decoded records, in file order, plus
// diagnostics for anything truncated or malformed.
type TraceParseResult struct {
	Records     []trace.Record
	Diagnostics Diagnostics
}

// ParseTraceFile reads path as a stream of fixed trace.RecordSize
// records. A trailing partial record is not an abort condition — per
// spec.md §5 ("the parser tolerates any record count that is a
// multiple of 256 bytes and warns on a non-aligned tail") and §7
// ("partial outputs MAY be produced for successfully-parsed
// prefixes") — it is reported as a TruncatedTrace diagnostic and the
// complete prefix is still returned.
func ParseTraceFile(path string) (*TraceParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	n := len(data) / trace.RecordSize
	remainder := len(data) % trace.RecordSize

	result := &TraceParseResult{Records: make([]trace.Record, 0, n)}
	if remainder != 0 {
		err := terrors.TruncatedTrace("ParseTraceFile", int64(len(data)))
		result.Diagnostics.WarnSkip(int64(n*trace.RecordSize), "%s: ignoring trailing %d bytes", err.Error(), remainder)
	}

	for i := 0; i < n; i++ {
		var buf [trace.RecordSize]byte
		copy(buf[:], data[i*trace.RecordSize:(i+1)*trace.RecordSize])
		rec, err := trace.Decode(buf)
		if err != nil {
			result.Diagnostics.WarnSkip(int64(i*trace.RecordSize), "record %d: %v", i, err)
			continue
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

// GroupByToken buckets decoded records by their token_id, preserving
// each bucket's internal file order.
func GroupByToken(records []trace.Record) map[uint32][]trace.Record {
	groups := make(map[uint32][]trace.Record)
	for _, r := range records {
		groups[r.TokenID] = append(groups[r.TokenID], r)
	}
	return groups
}

// SortedTokenIDs returns the token ids present in groups in ascending
// order, the order the offline pipeline writes per-token JSON in.
func SortedTokenIDs(groups map[uint32][]trace.Record) []uint32 {
	ids := make([]uint32, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ValidateTokenSequencing checks spec.md §8's token-sequencing
// property: token_id is monotonically non-decreasing in file order.
func ValidateTokenSequencing(records []trace.Record) bool {
	for i := 1; i < len(records); i++ {
		if records[i].TokenID < records[i-1].TokenID {
			return false
		}
	}
	return true
}
