package tracer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tensortrace/internal/trace"
)

func TestClassifyDiskInsideRange(t *testing.T) {
	c := NewClassifier(0x1000_0000, 0x1001_0000)

	source, offset := c.Classify(0x1000_4000)
	assert.Equal(t, trace.SourceDisk, source)
	assert.Equal(t, uint64(0x4000), offset)
}

func TestClassifyBufferOutsideRange(t *testing.T) {
	c := NewClassifier(0x1000_0000, 0x1001_0000)

	source, _ := c.Classify(0x7FF0_0000)
	assert.Equal(t, trace.SourceBuffer, source)
}

func TestClassifyRangeBoundaries(t *testing.T) {
	c := NewClassifier(100, 200)

	start, _ := c.Classify(100)
	assert.Equal(t, trace.SourceDisk, start, "start is inclusive")

	end, _ := c.Classify(200)
	assert.Equal(t, trace.SourceBuffer, end, "end is exclusive")

	before, _ := c.Classify(99)
	assert.Equal(t, trace.SourceBuffer, before)
}

func TestClassifyMatchesSpecForAnyPointer(t *testing.T) {
	const s, e = uint64(1000), uint64(2000)
	c := NewClassifier(s, e)

	for _, p := range []uint64{0, 500, 999, 1000, 1500, 1999, 2000, 5000} {
		source, offset := c.Classify(p)
		wantDisk := p >= s && p < e
		if wantDisk {
			assert.Equal(t, trace.SourceDisk, source, "ptr=%d", p)
			assert.Equal(t, p-s, offset, "ptr=%d", p)
		} else {
			assert.Equal(t, trace.SourceBuffer, source, "ptr=%d", p)
		}
	}
}
