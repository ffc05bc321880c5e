package offline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tensortrace/internal/trace"
)

func TestRunParsersFansOutAllFour(t *testing.T) {
	dir := t.TempDir()

	tracePath := filepath.Join(dir, "trace.bin")
	recs := []trace.Record{sampleRecord(0, "out0")}
	f, err := os.Create(tracePath)
	require.NoError(t, err)
	for _, r := range recs {
		buf := r.Encode()
		_, err := f.Write(buf[:])
		require.NoError(t, err)
	}
	require.NoError(t, f.Close())

	layoutPath := filepath.Join(dir, "layout.csv")
	require.NoError(t, os.WriteFile(layoutPath, []byte("name,offset,size,dtype,shape\na.weight,0,10,f32,[1]\n"), 0o644))

	bufPath := filepath.Join(dir, "buffer_events.jsonl")
	require.NoError(t, os.WriteFile(bufPath, []byte(`{"timestamp_ms":1,"event":"alloc","id":1,"ptr":1,"size":1,"layer":-1,"label":"x"}`+"\n"), 0o644))

	graphsDir := filepath.Join(dir, "graphs")
	require.NoError(t, os.MkdirAll(graphsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(graphsDir, "token-00000.dot"), []byte(`  n0 [label="a"]`+"\n"), 0o644))

	result := RunParsers(ParserInputs{
		TracePath:     tracePath,
		LayoutCSVPath: layoutPath,
		BufferLogPath: bufPath,
		GraphsDir:     graphsDir,
		ModelName:     "test-model",
	}, logrus.New())

	require.NoError(t, result.TraceErr)
	require.NoError(t, result.LayoutErr)
	require.NoError(t, result.BufferErr)
	require.NoError(t, result.GraphErr)

	assert.Len(t, result.Trace.Records, 1)
	assert.Len(t, result.Layout.Tensors, 1)
	assert.Len(t, result.Buffers, 1)
	assert.Contains(t, result.Graphs, uint32(0))
}

func TestBuildTokenDocumentAssemblesEntries(t *testing.T) {
	mm := &trace.MemoryMap{Tensors: []trace.TensorLayout{
		{Name: "block.0.attn_q.weight", Offset: 0, OffsetEnd: 100},
	}}
	c := NewCorrelator(mm)

	records := []trace.Record{
		{
			TimestampNS:   1_000_000,
			TokenID:       5,
			LayerID:       0,
			ThreadID:      2,
			Phase:         trace.PhaseGenerate,
			OperationType: 1,
			NumSources:    1,
			DstName:       "out0",
			Sources: [trace.MaxSourceSlots]trace.SourceSlot{
				{Name: "block.0.attn_q.weight", Ptr: 0x1000, Size: 64, Memory: trace.SourceDisk, OffsetOrID: 10},
			},
		},
		{
			TimestampNS:   2_000_000,
			TokenID:       5,
			Phase:         trace.PhaseGenerate,
			DstName:       "out1",
			NumSources:    0,
		},
	}

	doc, diag := BuildTokenDocument(5, records, c, 1_700_000_000)
	assert.True(t, diag.Clean())
	assert.Equal(t, uint32(5), doc.Metadata.TokenID)
	assert.Equal(t, 2, doc.Metadata.TotalEntries)
	assert.Equal(t, int64(1), doc.Metadata.DurationMS)

	first := doc.Entries[0]
	require.Len(t, first.Sources, 1)
	assert.Equal(t, "block.0.attn_q.weight", first.Sources[0].Name)
	require.NotNil(t, first.Sources[0].DiskOffset)
	assert.Equal(t, uint64(10), *first.Sources[0].DiskOffset)
	assert.Equal(t, "0x1000", first.Sources[0].TensorPtr)
}
