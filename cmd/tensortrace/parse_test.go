package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tensortrace/internal/trace"
)

func TestRunParseOnlyAssemblesTokenDocuments(t *testing.T) {
	root := t.TempDir()

	tracePath := filepath.Join(root, "trace.bin")
	f, err := os.Create(tracePath)
	require.NoError(t, err)
	rec := trace.Record{
		TimestampNS:   1,
		TokenID:       0,
		LayerID:       0,
		ThreadID:      0,
		Phase:         trace.PhaseGenerate,
		OperationType: 1,
		NumSources:    1,
		DstName:       "out0",
		Sources: [trace.MaxSourceSlots]trace.SourceSlot{
			{Name: "attn_q.weight", Ptr: 0x1000, Size: 64},
		},
	}
	buf := rec.Encode()
	_, err = f.Write(buf[:])
	require.NoError(t, err)
	require.NoError(t, f.Close())

	layoutPath := filepath.Join(root, "layout.csv")
	csv := "name,offset,size,dtype,shape\n" +
		"attn_q.weight,0,64,f32,\"[8,8]\"\n" +
		"out0,64,64,f32,\"[8,8]\"\n"
	require.NoError(t, os.WriteFile(layoutPath, []byte(csv), 0o644))

	bufferLogPath := filepath.Join(root, "buffer_events.jsonl")
	require.NoError(t, os.WriteFile(bufferLogPath, nil, 0o644))

	graphsDir := filepath.Join(root, "graphs")
	require.NoError(t, os.MkdirAll(graphsDir, 0o755))

	outputDir := filepath.Join(root, "out")

	configPath := filepath.Join(root, "settings.json")
	settingsJSON := `{
		"model_path": "model.gguf",
		"trace_path": "trace.bin",
		"layout_csv_path": "layout.csv",
		"buffer_log_path": "buffer_events.jsonl",
		"graphs_dir": "graphs",
		"output_dir": "out"
	}`
	require.NoError(t, os.WriteFile(configPath, []byte(settingsJSON), 0o644))

	require.NoError(t, runParseOnly(configPath))

	_, statErr := os.Stat(filepath.Join(outputDir, "token-00000.json"))
	require.NoError(t, statErr)
	_, statErr = os.Stat(filepath.Join(outputDir, "memory_map.json"))
	require.NoError(t, statErr)
	_, statErr = os.Stat(filepath.Join(outputDir, "heatmap.json"))
	require.NoError(t, statErr)
}
