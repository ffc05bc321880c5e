package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerRunExecutesAllStepsSuccessfully(t *testing.T) {
	root := t.TempDir()
	paths := ArtifactPaths{
		TracePath:     filepath.Join(root, "trace.bin"),
		GraphsDir:     filepath.Join(root, "graphs"),
		BufferLogPath: filepath.Join(root, "buffer_events.jsonl"),
		LayoutCSVPath: filepath.Join(root, "layout.csv"),
		OutputDir:     filepath.Join(root, "out"),
		VisualizerDir: filepath.Join(root, "viz"),
	}

	// The engine stub stands in for the instrumented inference engine:
	// it writes one all-zero 256-byte record (a valid, empty trace
	// entry), an empty buffer-event log, and one graph dump.
	engineScript := "mkdir -p " + paths.GraphsDir +
		" && dd if=/dev/zero of=" + paths.TracePath + " bs=256 count=1 2>/dev/null" +
		" && : > " + paths.BufferLogPath +
		" && touch " + filepath.Join(paths.GraphsDir, "token-00000.dot")

	cfg := Config{
		ModelPath:         filepath.Join(root, "model.gguf"),
		ModelName:         "test-model",
		DumpLayoutCommand: []string{"sh", "-c", "printf 'name,offset,size,dtype,shape\\nfoo.weight,0,10,f32,[1]\\n'"},
		EngineCommand:     []string{"sh", "-c", engineScript},
		Paths:             paths,
	}

	r := New(cfg)
	err := r.Run(context.Background())
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(paths.VisualizerDir, "memory_map.json"))
	assert.NoError(t, statErr)
	_, statErr = os.Stat(filepath.Join(paths.VisualizerDir, "token-00000.json"))
	assert.NoError(t, statErr)
	_, statErr = os.Stat(filepath.Join(paths.VisualizerDir, "heatmap.json"))
	assert.NoError(t, statErr)
}

func TestRunnerRunReportsFailingStep(t *testing.T) {
	root := t.TempDir()
	paths := ArtifactPaths{
		TracePath:     filepath.Join(root, "trace.bin"),
		GraphsDir:     filepath.Join(root, "graphs"),
		BufferLogPath: filepath.Join(root, "buffer_events.jsonl"),
		LayoutCSVPath: filepath.Join(root, "layout.csv"),
		OutputDir:     filepath.Join(root, "out"),
	}

	cfg := Config{
		ModelPath:         filepath.Join(root, "model.gguf"),
		ModelName:         "test-model",
		DumpLayoutCommand: []string{"sh", "-c", "exit 1"},
		EngineCommand:     []string{"sh", "-c", "true"},
		Paths:             paths,
	}

	r := New(cfg)
	err := r.Run(context.Background())
	require.Error(t, err)
	failedName, _ := r.Steps().FailedStep()
	assert.Equal(t, "dump_layout", failedName)
}
