package tracer

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphDumperWritesNamedFile(t *testing.T) {
	dir := t.TempDir()
	d, err := NewGraphDumper(dir)
	require.NoError(t, err)

	require.NoError(t, d.Dump(42, "node a\nnode b\na -> b\n"))

	data, err := os.ReadFile(dir + "/token-00042.dot")
	require.NoError(t, err)
	assert.Equal(t, "node a\nnode b\na -> b\n", string(data))
}

func TestGraphDumperDuplicateEmissionOverwrites(t *testing.T) {
	dir := t.TempDir()
	d, err := NewGraphDumper(dir)
	require.NoError(t, err)

	require.NoError(t, d.Dump(1, "first"))
	require.NoError(t, d.Dump(1, "second"))

	data, err := os.ReadFile(dir + "/token-00001.dot")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestGraphDumperLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	d, err := NewGraphDumper(dir)
	require.NoError(t, err)
	require.NoError(t, d.Dump(5, "x"))

	_, err = os.Stat(dir + "/token-00005.dot.tmp")
	assert.True(t, os.IsNotExist(err))
}
