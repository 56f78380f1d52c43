package verification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcherCompare(t *testing.T) {
	m := NewMatcher(DefaultMatchThreshold)

	t.Run("identical descriptors match", func(t *testing.T) {
		desc := []float64{0.1, 0.2, 0.3, 0.4}
		res, err := m.Compare(desc, desc)
		require.NoError(t, err)
		assert.True(t, res.Match)
		assert.Zero(t, res.Distance)
		assert.Equal(t, 1.0, res.Confidence)
	})

	t.Run("distance past threshold does not match", func(t *testing.T) {
		res, err := m.Compare([]float64{0, 0, 0}, []float64{1, 1, 1})
		require.NoError(t, err)
		assert.False(t, res.Match)
		assert.InDelta(t, 1.732, res.Distance, 0.001)
		assert.Zero(t, res.Confidence)
	})

	t.Run("close descriptors match", func(t *testing.T) {
		res, err := m.Compare([]float64{0.5, 0.5}, []float64{0.6, 0.5})
		require.NoError(t, err)
		assert.True(t, res.Match)
		assert.InDelta(t, 0.9, res.Confidence, 0.001)
	})

	t.Run("length mismatch is rejected", func(t *testing.T) {
		_, err := m.Compare([]float64{1, 2}, []float64{1, 2, 3})
		assert.ErrorIs(t, err, ErrDescriptorMismatch)
		_, err = m.Compare(nil, []float64{1})
		assert.ErrorIs(t, err, ErrDescriptorMismatch)
	})
}

func TestNewMatcherDefaultsThreshold(t *testing.T) {
	m := NewMatcher(0)
	res, err := m.Compare([]float64{0, 0}, []float64{0.5, 0})
	require.NoError(t, err)
	assert.True(t, res.Match)
}
