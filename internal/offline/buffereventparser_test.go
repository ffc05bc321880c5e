package offline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSONL(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "buffer_events.jsonl")
	contents := ""
	for _, l := range lines {
		contents += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestParseBufferEventLogReconstructsLifetimes(t *testing.T) {
	path := writeJSONL(t,
		`{"timestamp_ms":100,"event":"alloc","id":1,"ptr":4096,"size":256,"layer":2,"label":"kv_cache"}`,
		`{"timestamp_ms":150,"event":"dealloc","id":1,"ptr":4096,"size":256,"layer":2,"label":"kv_cache"}`,
		`{"timestamp_ms":200,"event":"alloc","id":2,"ptr":8192,"size":512,"layer":-1,"label":"scratch"}`,
	)

	lifetimes, diag, err := ParseBufferEventLog(path)
	require.NoError(t, err)
	assert.True(t, diag.Clean())
	require.Len(t, lifetimes, 2)

	byID := map[uint64]BufferLifetime{}
	for _, l := range lifetimes {
		byID[l.ID] = l
	}
	require.NotNil(t, byID[1].DeallocMS)
	assert.Equal(t, int64(150), *byID[1].DeallocMS)
	assert.Nil(t, byID[2].DeallocMS)
}

func TestParseBufferEventLogWarnsOnOrphanDealloc(t *testing.T) {
	path := writeJSONL(t,
		`{"timestamp_ms":100,"event":"dealloc","id":99,"ptr":0,"size":0,"layer":-1,"label":""}`,
	)
	lifetimes, diag, err := ParseBufferEventLog(path)
	require.NoError(t, err)
	assert.Len(t, lifetimes, 0)
	assert.Equal(t, 1, diag.Skipped)
}

func TestParseBufferEventLogSkipsMalformedLine(t *testing.T) {
	path := writeJSONL(t,
		`not json at all`,
		`{"timestamp_ms":100,"event":"alloc","id":1,"ptr":1,"size":1,"layer":-1,"label":"x"}`,
	)
	lifetimes, diag, err := ParseBufferEventLog(path)
	require.NoError(t, err)
	assert.Len(t, lifetimes, 1)
	assert.Equal(t, 1, diag.Skipped)
}
