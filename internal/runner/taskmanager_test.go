package runner

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepTrackerTracksSuccessAndFailure(t *testing.T) {
	st := NewStepTracker()

	i0 := st.Begin("clean")
	st.Complete(i0)

	i1 := st.Begin("dump_layout")
	st.Fail(i1, errors.New("disk full"))

	name, err := st.FailedStep()
	assert.Equal(t, "dump_layout", name)
	assert.EqualError(t, err, "disk full")
	assert.Equal(t, "clean", st.LastGoodStep())
}

func TestStepTrackerNoFailureReportsEmpty(t *testing.T) {
	st := NewStepTracker()
	i0 := st.Begin("clean")
	st.Complete(i0)

	name, err := st.FailedStep()
	assert.Empty(t, name)
	assert.NoError(t, err)
	assert.Equal(t, "clean", st.LastGoodStep())
}
