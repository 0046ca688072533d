package domain

import "math"

// ReduceMeanOverTime collapses the time axis to a single plane of per-cell
// means: out[y,x] is the mean of every finite values[t,y,x]. Cells that are
// NaN at every timestep stay NaN. The same running-mean update as
// ComputeClimatology keeps long records numerically stable.
func ReduceMeanOverTime(g *Grid) *Field {
	nt, ny, nx := g.Shape()
	plane := ny * nx
	means := make([]float64, plane)
	counts := make([]int, plane)
	for t := 0; t < nt; t++ {
		base := t * plane
		for i := 0; i < plane; i++ {
			v := g.values[base+i]
			if math.IsNaN(v) {
				continue
			}
			counts[i]++
			means[i] += (v - means[i]) / float64(counts[i])
		}
	}
	for i, n := range counts {
		if n == 0 {
			means[i] = math.NaN()
		}
	}
	return &Field{
		Name:   g.name + " time mean",
		Lats:   g.lats,
		Lons:   g.lons,
		Values: means,
	}
}

// ReduceStdOverTime collapses the time axis to a plane of per-cell sample
// standard deviations over time, using the unbiased n-1 denominator. Cells
// with fewer than two finite samples stay NaN, where the estimator is
// undefined. Welford accumulators keep the same t-major single sweep as the
// mean reductions instead of gathering a strided series per cell.
func ReduceStdOverTime(g *Grid) *Field {
	nt, ny, nx := g.Shape()
	plane := ny * nx
	means := make([]float64, plane)
	m2 := make([]float64, plane)
	counts := make([]int, plane)
	for t := 0; t < nt; t++ {
		base := t * plane
		for i := 0; i < plane; i++ {
			v := g.values[base+i]
			if math.IsNaN(v) {
				continue
			}
			counts[i]++
			delta := v - means[i]
			means[i] += delta / float64(counts[i])
			m2[i] += delta * (v - means[i])
		}
	}
	out := make([]float64, plane)
	for i, n := range counts {
		if n < 2 {
			out[i] = math.NaN()
			continue
		}
		out[i] = math.Sqrt(m2[i] / float64(n-1))
	}
	return &Field{
		Name:   g.name + " time std",
		Lats:   g.lats,
		Lons:   g.lons,
		Values: out,
	}
}

// ReduceMeanOverSpace collapses the spatial axes to one value per timestep:
// out[t] is the mean of the finite cells in plane t, or NaN when the whole
// plane is missing.
func ReduceMeanOverSpace(g *Grid) []float64 {
	nt, ny, nx := g.Shape()
	plane := ny * nx
	out := make([]float64, nt)
	for t := 0; t < nt; t++ {
		mean, _, _, finite := nanAggregates(g.values[t*plane : (t+1)*plane])
		if finite == 0 {
			out[t] = math.NaN()
			continue
		}
		out[t] = mean
	}
	return out
}

// nanAggregates computes the mean, min, and max of the finite values in a
// slice in one pass, plus how many finite values there were. With no finite
// values the aggregates are NaN.
func nanAggregates(values []float64) (mean, min, max float64, finite int) {
	mean, min, max = math.NaN(), math.NaN(), math.NaN()
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		finite++
		if finite == 1 {
			mean, min, max = v, v, v
			continue
		}
		mean += (v - mean) / float64(finite)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return mean, min, max, finite
}
