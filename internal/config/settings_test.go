package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, dir string, body string) string {
	t.Helper()
	path := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeSettings(t, dir, `{"model_path": "model.gguf", "prompt": "hello"}`)

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "model.gguf", s.ModelPath)
	assert.Equal(t, 32, s.NPredict)
	assert.Equal(t, "artifacts/trace.bin", s.TracePath)
	assert.Equal(t, 4096, s.RingCapacity)
}

func TestLoadRejectsMissingModelPath(t *testing.T) {
	dir := t.TempDir()
	path := writeSettings(t, dir, `{"prompt": "hello"}`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrideWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := writeSettings(t, dir, `{"model_path": "model.gguf"}`)
	t.Setenv("TENSORTRACE_MODEL_PATH", "override.gguf")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "override.gguf", s.ModelPath)
}

func TestResolvePathsJoinsRelativePaths(t *testing.T) {
	s := &Settings{TracePath: "trace.bin", GraphsDir: "/abs/graphs"}
	s.ResolvePaths("/base")
	assert.Equal(t, "/base/trace.bin", s.TracePath)
	assert.Equal(t, "/abs/graphs", s.GraphsDir)
}
