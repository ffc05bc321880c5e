package tracer

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tensortrace/internal/trace"
)

func TestSinkWriteBatchThenFlushProducesExactStride(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/trace.bin"
	s, err := NewSink(path, logrus.New())
	require.NoError(t, err)

	records := []trace.Record{{TokenID: 0}, {TokenID: 1}, {TokenID: 2}}
	s.WriteBatch(records)
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, len(records)*trace.RecordSize, len(data))
}

func TestSinkUnavailableOnBadPath(t *testing.T) {
	_, err := NewSink("/nonexistent-dir-xyz/trace.bin", logrus.New())
	assert.Error(t, err)
}

func TestSinkDiscardsAfterDegraded(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/trace.bin"
	s, err := NewSink(path, logrus.New())
	require.NoError(t, err)

	s.WriteBatch([]trace.Record{{TokenID: 0}})
	require.NoError(t, s.file.Close()) // force the next underlying write to fail

	// A batch larger than the buffered writer's internal buffer forces
	// an immediate passthrough write to the now-closed file descriptor.
	big := make([]trace.Record, 300)
	s.WriteBatch(big)

	assert.False(t, s.Healthy())

	// Further writes are no-ops, not further errors.
	assert.NotPanics(t, func() {
		s.WriteBatch([]trace.Record{{TokenID: 2}})
	})
}
