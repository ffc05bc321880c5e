package offline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "layout.csv")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestParseLayoutCSVHappyPath(t *testing.T) {
	csv := "name,offset,size,dtype,shape\n" +
		"token_embd.weight,0,1000,f32,\"[100,10]\"\n" +
		"block.0.attn_q.weight,1000,500,f32,\"[50,10]\"\n" +
		"block.0.ffn_gate.expert.2.weight,1500,200,f32,\"[20,10]\"\n"
	path := writeCSV(t, csv)

	mm, diag, err := ParseLayoutCSV(path, "test-model")
	require.NoError(t, err)
	assert.True(t, diag.Clean())
	require.Len(t, mm.Tensors, 3)
	assert.Equal(t, uint64(1700), mm.TotalSizeByte)
	assert.Equal(t, 1, mm.Metadata.NLayers)

	embd := mm.Tensors[0]
	assert.Equal(t, "token_embd.weight", embd.Name)
	assert.Nil(t, embd.LayerID)
	assert.Equal(t, "weight", embd.Component)
	assert.Equal(t, "token_embd", embd.ComponentType)

	attn := mm.Tensors[1]
	require.NotNil(t, attn.LayerID)
	assert.Equal(t, uint16(0), *attn.LayerID)
	assert.Equal(t, "attn_q", attn.ComponentType)

	ffn := mm.Tensors[2]
	require.NotNil(t, ffn.ExpertID)
	assert.Equal(t, 2, *ffn.ExpertID)
	assert.Equal(t, "ffn_gate", ffn.ComponentType)
}

func TestParseLayoutCSVWarnsOnGap(t *testing.T) {
	csv := "name,offset,size,dtype,shape\n" +
		"a.weight,0,100,f32,[10]\n" +
		"b.weight,200,100,f32,[10]\n"
	path := writeCSV(t, csv)

	_, diag, err := ParseLayoutCSV(path, "m")
	require.NoError(t, err)
	assert.False(t, diag.Clean())
	assert.Contains(t, diag.Warnings[0], "gap")
}

func TestParseLayoutCSVFailsOnOverlap(t *testing.T) {
	csv := "name,offset,size,dtype,shape\n" +
		"a.weight,0,100,f32,[10]\n" +
		"b.weight,50,100,f32,[10]\n"
	path := writeCSV(t, csv)

	_, _, err := ParseLayoutCSV(path, "m")
	assert.Error(t, err)
}

func TestParseLayoutCSVSkipsMalformedRow(t *testing.T) {
	csv := "name,offset,size,dtype,shape\n" +
		"a.weight,0,100,f32,[10]\n" +
		"b.weight,notanumber,100,f32,[10]\n" +
		"c.weight,300,100,f32,[10]\n"
	path := writeCSV(t, csv)

	mm, diag, err := ParseLayoutCSV(path, "m")
	require.NoError(t, err)
	assert.Len(t, mm.Tensors, 2)
	assert.Equal(t, 1, diag.Skipped)
}
