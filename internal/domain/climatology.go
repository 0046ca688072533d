package domain

import (
	"fmt"
	"math"
	"time"
)

// Climatology holds twelve monthly mean planes for one variable: means[m,y,x]
// where m is the zero-based calendar month. A cell's January mean is the
// average of that cell's value in every January of the baseline period,
// regardless of year. Cells with no finite sample in a month are NaN.
type Climatology struct {
	name  string
	units string
	lats  []float64
	lons  []float64
	means []float64
	// steps[m] is the number of baseline timesteps that fell in month m+1.
	// Individual cells may have fewer samples where the input was NaN.
	steps [12]int
}

// ComputeClimatology partitions a grid's timesteps into the twelve calendar
// months and computes the per-cell mean of each bucket with a single pass of
// Welford-style running means:
//
//	count++
//	mean += (value - mean) / count
//
// which stays numerically stable over long records where a naive sum of
// thousands of ~300 K values would lose precision. NaN cells are skipped
// entirely: they join neither the sum nor the count, so a cell observed in
// only some years still gets the mean of the years it was observed in.
// Partial years are accepted; a month with no timesteps at all yields an
// all-NaN plane rather than an error.
func ComputeClimatology(g *Grid) (*Climatology, error) {
	nt, ny, nx := g.Shape()
	plane := ny * nx
	if len(g.values) != nt*plane {
		return nil, fmt.Errorf("%w: container holds %d values for %dx%dx%d grid",
			ErrShape, len(g.values), nt, ny, nx)
	}

	c := &Climatology{
		name:  g.name,
		units: g.units,
		lats:  g.lats,
		lons:  g.lons,
		means: make([]float64, 12*plane),
	}
	counts := make([]int, 12*plane)

	for t := 0; t < nt; t++ {
		m := int(g.times[t].UTC().Month()) - 1
		c.steps[m]++
		base := t * plane
		mbase := m * plane
		for i := 0; i < plane; i++ {
			v := g.values[base+i]
			if math.IsNaN(v) {
				continue
			}
			counts[mbase+i]++
			c.means[mbase+i] += (v - c.means[mbase+i]) / float64(counts[mbase+i])
		}
	}

	// A never-observed cell must read as missing, not as the zero the
	// accumulator started from.
	for i, n := range counts {
		if n == 0 {
			c.means[i] = math.NaN()
		}
	}
	return c, nil
}

// Name returns the variable name the climatology was computed from.
func (c *Climatology) Name() string { return c.name }

// Units returns the units label of the monthly means.
func (c *Climatology) Units() string { return c.units }

// Shape returns the spatial cardinalities (lat, lon).
func (c *Climatology) Shape() (ny, nx int) {
	return len(c.lats), len(c.lons)
}

// Lats returns a copy of the latitude coordinate vector.
func (c *Climatology) Lats() []float64 {
	out := make([]float64, len(c.lats))
	copy(out, c.lats)
	return out
}

// Lons returns a copy of the longitude coordinate vector.
func (c *Climatology) Lons() []float64 {
	out := make([]float64, len(c.lons))
	copy(out, c.lons)
	return out
}

// Steps returns how many baseline timesteps fell in month m.
func (c *Climatology) Steps(m time.Month) int {
	return c.steps[int(m)-1]
}

// At returns the mean for month m at (lat index, lon index).
func (c *Climatology) At(m time.Month, y, x int) float64 {
	return c.means[(int(m)-1)*len(c.lats)*len(c.lons)+y*len(c.lons)+x]
}

// MonthField returns month m's mean plane as a Field for rendering.
func (c *Climatology) MonthField(m time.Month) (*Field, error) {
	if m < time.January || m > time.December {
		return nil, fmt.Errorf("%w: month %d outside 1-12", ErrNotFound, m)
	}
	plane := len(c.lats) * len(c.lons)
	values := make([]float64, plane)
	copy(values, c.means[(int(m)-1)*plane:int(m)*plane])
	return &Field{
		Name:   fmt.Sprintf("%s climatology %s", c.name, m),
		Lats:   c.lats,
		Lons:   c.lons,
		Values: values,
	}, nil
}
