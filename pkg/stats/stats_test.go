package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		name string
		xs   []float64
		want float64
	}{
		{"odd", []float64{5, 1, 3}, 3},
		{"even averages middle pair", []float64{4, 1, 3, 2}, 2.5},
		{"single", []float64{7}, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Median(tt.xs)
			require.True(t, ok)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}

	_, ok := Median(nil)
	assert.False(t, ok)
}

func TestMedianDoesNotReorderInput(t *testing.T) {
	xs := []float64{3, 1, 2}
	_, _ = Median(xs)
	assert.Equal(t, []float64{3, 1, 2}, xs)
}

func TestDescribe(t *testing.T) {
	s, ok := Describe([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	require.True(t, ok)

	assert.Equal(t, 8, s.Count)
	assert.InDelta(t, 5.0, s.Mean, 1e-12)
	assert.InDelta(t, 2.138089935, s.StdDev, 1e-6)
	assert.InDelta(t, 2.0, s.Min, 1e-12)
	assert.InDelta(t, 4.5, s.Median, 1e-12)
	assert.InDelta(t, 9.0, s.Max, 1e-12)

	one, ok := Describe([]float64{3})
	require.True(t, ok)
	assert.True(t, math.IsNaN(one.StdDev))

	_, ok = Describe(nil)
	assert.False(t, ok)
}
