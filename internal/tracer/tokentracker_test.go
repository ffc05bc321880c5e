package tracer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tensortrace/internal/trace"
)

func TestTokenTrackerStartsAtZero(t *testing.T) {
	tt := NewTokenTracker()
	assert.Equal(t, uint32(0), tt.Token())
	assert.Equal(t, trace.PhasePrompt, tt.Phase())
}

func TestTokenTrackerBeginDecodeUpdatesBoth(t *testing.T) {
	tt := NewTokenTracker()
	tt.BeginDecode(5, trace.PhaseGenerate)
	assert.Equal(t, uint32(5), tt.Token())
	assert.Equal(t, trace.PhaseGenerate, tt.Phase())
}
