package offline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tensortrace/internal/trace"
)

func writeGraphDump(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "token-00001.dot")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestParseGraphDumpFileClassifiesNodes(t *testing.T) {
	dump := `  n0 [label="token_embd.weight" dtype=f32 shape=[10,10] ptr=0x1000]
  n1 [label="block.2.attn_q.weight" dtype=f32 ptr=0x2000]
  n2 [label="intermediate-2" dtype=f32]
  n3 [label="output.weight" dtype=f32]
  n1 -> n2
  n2 -> n3 [slot=1]
`
	path := writeGraphDump(t, dump)
	g, diag, err := ParseGraphDumpFile(path, 1)
	require.NoError(t, err)
	assert.True(t, diag.Clean())
	require.Len(t, g.Nodes, 4)
	require.Len(t, g.Edges, 2)

	assert.Equal(t, trace.NodeEmbedding, g.Nodes[0].Kind)

	attn := g.Nodes[1]
	assert.Equal(t, trace.NodeLayerInternal, attn.Kind)
	require.NotNil(t, attn.LayerID)
	assert.Equal(t, uint16(2), *attn.LayerID)
	assert.Equal(t, uint64(0x2000), attn.OutPtr)

	inter := g.Nodes[2]
	assert.Equal(t, trace.NodeLayerInternal, inter.Kind)
	require.NotNil(t, inter.LayerID)
	assert.Equal(t, uint16(2), *inter.LayerID)

	out := g.Nodes[3]
	assert.Equal(t, trace.NodeOutput, out.Kind)

	assert.Equal(t, 1, g.Edges[1].SlotIndex)
}

func TestParseGraphDumpFileWarnsOnUnrecognizedLine(t *testing.T) {
	dump := "  n0 [label=\"a\"]\n  this is not a valid line\n"
	path := writeGraphDump(t, dump)
	g, diag, err := ParseGraphDumpFile(path, 1)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 1)
	assert.False(t, diag.Clean())
	assert.Equal(t, 1, diag.Skipped)
}
