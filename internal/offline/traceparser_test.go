package offline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tensortrace/internal/trace"
)

func writeRecords(t *testing.T, recs []trace.Record, trailing int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.bin")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	for _, r := range recs {
		buf := r.Encode()
		_, err := f.Write(buf[:])
		require.NoError(t, err)
	}
	if trailing > 0 {
		_, err := f.Write(make([]byte, trailing))
		require.NoError(t, err)
	}
	return path
}

func sampleRecord(tokenID uint32, dst string) trace.Record {
	return trace.Record{
		TimestampNS:   1000,
		TokenID:       tokenID,
		LayerID:       3,
		ThreadID:      1,
		Phase:         trace.PhaseGenerate,
		OperationType: 1,
		NumSources:    1,
		DstName:       dst,
		Sources: [trace.MaxSourceSlots]trace.SourceSlot{
			{Name: "blk.3.attn_q.weight", Ptr: 0x1000, Size: 64},
		},
	}
}

func TestParseTraceFileCleanFile(t *testing.T) {
	recs := []trace.Record{sampleRecord(0, "out0"), sampleRecord(1, "out1")}
	path := writeRecords(t, recs, 0)

	result, err := ParseTraceFile(path)
	require.NoError(t, err)
	assert.Len(t, result.Records, 2)
	assert.True(t, result.Diagnostics.Clean())
}

func TestParseTraceFileWarnsOnTruncatedTail(t *testing.T) {
	recs := []trace.Record{sampleRecord(0, "out0")}
	path := writeRecords(t, recs, 17)

	result, err := ParseTraceFile(path)
	require.NoError(t, err)
	assert.Len(t, result.Records, 1, "complete prefix is still returned")
	assert.Equal(t, 1, result.Diagnostics.Skipped)
	assert.False(t, result.Diagnostics.Clean())
}

func TestGroupByTokenAndSortedTokenIDs(t *testing.T) {
	recs := []trace.Record{
		sampleRecord(2, "a"),
		sampleRecord(0, "b"),
		sampleRecord(2, "c"),
		sampleRecord(1, "d"),
	}
	groups := GroupByToken(recs)
	assert.Len(t, groups[2], 2)
	assert.Equal(t, []uint32{0, 1, 2}, SortedTokenIDs(groups))
}

func TestValidateTokenSequencing(t *testing.T) {
	ok := []trace.Record{sampleRecord(0, "a"), sampleRecord(0, "b"), sampleRecord(1, "c")}
	assert.True(t, ValidateTokenSequencing(ok))

	bad := []trace.Record{sampleRecord(1, "a"), sampleRecord(0, "b")}
	assert.False(t, ValidateTokenSequencing(bad))
}
