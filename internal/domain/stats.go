package domain

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// DefaultPercentiles are the points reported when a caller passes none: the
// tails, the quartiles, and the median.
var DefaultPercentiles = []float64{1, 25, 50, 75, 99}

// Percentile is one computed percentile of a distribution.
type Percentile struct {
	Pct   float64 `json:"pct"`
	Value float64 `json:"value"`
}

// SummaryStats describes the distribution of the finite values in an array.
// Count is the number of finite samples, Missing the number of NaN cells
// excluded. Std uses the unbiased (n-1) estimator and is NaN when Count is 1,
// where the estimator is undefined.
type SummaryStats struct {
	Count       int
	Missing     int
	Mean        float64
	Std         float64
	Min         float64
	Max         float64
	Percentiles []Percentile
}

// Summarize computes summary statistics over the finite values of a flat
// array, ignoring NaN cells the way the grid operations produce them. Pass
// nil percentiles for DefaultPercentiles. An array with no finite values has
// no statistics and returns ErrAllMissing; a requested percentile outside
// [0, 100] is rejected before any work is done.
func Summarize(values []float64, pcts []float64) (SummaryStats, error) {
	if pcts == nil {
		pcts = DefaultPercentiles
	}
	for _, p := range pcts {
		if math.IsNaN(p) || p < 0 || p > 100 {
			return SummaryStats{}, fmt.Errorf("summarize: percentile %g outside [0, 100]", p)
		}
	}

	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return SummaryStats{}, fmt.Errorf("%w: %d values, none finite", ErrAllMissing, len(values))
	}
	sort.Float64s(finite)

	s := SummaryStats{
		Count:       len(finite),
		Missing:     len(values) - len(finite),
		Mean:        stat.Mean(finite, nil),
		Std:         stat.StdDev(finite, nil),
		Min:         finite[0],
		Max:         finite[len(finite)-1],
		Percentiles: make([]Percentile, len(pcts)),
	}
	for i, p := range pcts {
		s.Percentiles[i] = Percentile{Pct: p, Value: quantileR7(finite, p)}
	}
	return s, nil
}

// quantileR7 returns the p-th percentile (p in [0, 100]) of an ascending
// sorted slice using linear interpolation between the two closest order
// statistics: rank h = (n-1)*p/100, blending sorted[floor(h)] and
// sorted[ceil(h)]. This is Hyndman-Fan type 7, the default in numpy and R,
// chosen so medians of even-length arrays land halfway between the middle
// pair. gonum's stat.Quantile implements other estimator families, so the
// interpolation is done directly here.
func quantileR7(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * p / 100
	lower := int(math.Floor(h))
	upper := int(math.Ceil(h))
	if upper >= n {
		upper = n - 1
	}
	if lower == upper {
		return sorted[lower]
	}
	frac := h - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
