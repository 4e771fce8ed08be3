package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 0}, []float32{2, 0}), 1e-6)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	assert.Equal(t, float32(0), Cosine([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, float32(0), Cosine([]float32{1}, []float32{1, 0}))
	assert.Equal(t, float32(0), Cosine(nil, nil))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    []float32
		expected []float32
	}{
		{name: "unit vector remains unchanged", input: []float32{1, 0, 0}, expected: []float32{1, 0, 0}},
		{name: "scale non-unit vector", input: []float32{3, 4}, expected: []float32{0.6, 0.8}},
		{name: "negative values", input: []float32{-1, 1}, expected: []float32{-1 / float32(math.Sqrt2), 1 / float32(math.Sqrt2)}},
		{name: "zero vector", input: []float32{0, 0}, expected: []float32{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Normalize(tt.input)
			require.Len(t, result, len(tt.expected))
			for i := range result {
				assert.InDelta(t, tt.expected[i], result[i], 1e-6, "element %d", i)
			}
		})
	}

	assert.Empty(t, Normalize(nil))
}

func TestNormalizeDoesNotModifyInput(t *testing.T) {
	input := []float32{3, 4}
	_ = Normalize(input)
	assert.Equal(t, []float32{3, 4}, input)
}

func TestMean(t *testing.T) {
	mean, err := Mean([][]float32{{1, 0}, {0, 1}, {2, 2}})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{1, 1}, mean, 1e-6)

	mean, err = Mean(nil)
	require.NoError(t, err)
	assert.Nil(t, mean)

	_, err = Mean([][]float32{{1, 0}, {1}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestDotAndClamp(t *testing.T) {
	assert.Equal(t, float32(11), Dot([]float32{1, 2}, []float32{3, 4, 5}))
	assert.Equal(t, float32(0), Clamp01(-0.2))
	assert.Equal(t, float32(1), Clamp01(1.3))
	assert.Equal(t, float32(0.4), Clamp01(0.4))
}
