package selector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/vdma-stream/api"
	"github.com/momentics/vdma-stream/selector"
)

func TestReadIndexLaw(t *testing.T) {
	for n := 2; n <= 8; n++ {
		for w := 0; w < n; w++ {
			r := selector.ReadIndex(w, n)
			assert.Equal(t, (w+n-1)%n, r, "n=%d w=%d", n, w)
			assert.NotEqual(t, w, r, "n=%d w=%d reads the slot being written", n, w)
		}
	}
}

func TestReadIndexSingleBuffer(t *testing.T) {
	for w := 0; w < 5; w++ {
		assert.Equal(t, 0, selector.ReadIndex(w, 1))
	}
	s, err := selector.New(1)
	require.NoError(t, err)
	sel, ok := s.Next(0, false)
	require.True(t, ok)
	assert.Equal(t, 0, sel.ReadIndex)
}

func TestNewRejectsEmptyRing(t *testing.T) {
	_, err := selector.New(0)
	assert.ErrorIs(t, err, api.ErrConfiguration)
}

func TestScenarioThreeBuffers(t *testing.T) {
	s, err := selector.New(3)
	require.NoError(t, err)

	writes := []int{0, 1, 2, 0, 1}
	want := []int{2, 0, 1, 2, 0}
	for i, w := range writes {
		sel, ok := s.Next(w, false)
		require.True(t, ok, "poll %d", i)
		assert.Equal(t, want[i], sel.ReadIndex, "poll %d", i)
		assert.Equal(t, w, sel.WriteIndex)
		assert.False(t, sel.Forced)
	}
}

func TestNoNewFrameIffUnchanged(t *testing.T) {
	s, err := selector.New(4)
	require.NoError(t, err)

	_, ok := s.Next(2, false)
	assert.True(t, ok, "first poll always selects")

	_, ok = s.Next(2, false)
	assert.False(t, ok)
	_, ok = s.Next(2, false)
	assert.False(t, ok)

	sel, ok := s.Next(3, false)
	assert.True(t, ok)
	assert.Equal(t, 2, sel.ReadIndex)
}

func TestForceSendReusesSelection(t *testing.T) {
	s, err := selector.New(3)
	require.NoError(t, err)

	first, ok := s.Next(1, true)
	require.True(t, ok)
	assert.False(t, first.Forced)

	again, ok := s.Next(1, true)
	require.True(t, ok)
	assert.True(t, again.Forced)
	assert.Equal(t, first.ReadIndex, again.ReadIndex)

	next, ok := s.Next(2, true)
	require.True(t, ok)
	assert.False(t, next.Forced)
	assert.Equal(t, 1, next.ReadIndex)

	last, ok := s.Last()
	assert.True(t, ok)
	assert.Equal(t, next, last)
}
