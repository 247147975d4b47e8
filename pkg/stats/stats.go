// Package stats holds the descriptive statistics used by imputation and
// profiling.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Median returns the middle value of xs, averaging the two middle values
// when the count is even. It reports false for an empty input.
func Median(xs []float64) (float64, bool) {
	if len(xs) == 0 {
		return 0, false
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], true
	}
	return (sorted[mid-1] + sorted[mid]) / 2, true
}

// Summary describes a numeric column
type Summary struct {
	Count  int
	Mean   float64
	StdDev float64
	Min    float64
	Median float64
	Max    float64
}

// Describe computes count, mean, sample standard deviation, min, median and
// max. StdDev is NaN for fewer than two values.
func Describe(xs []float64) (Summary, bool) {
	if len(xs) == 0 {
		return Summary{}, false
	}

	median, _ := Median(xs)
	s := Summary{
		Count:  len(xs),
		Mean:   stat.Mean(xs, nil),
		Min:    floats.Min(xs),
		Median: median,
		Max:    floats.Max(xs),
		StdDev: math.NaN(),
	}
	if len(xs) > 1 {
		s.StdDev = stat.StdDev(xs, nil)
	}
	return s, true
}
