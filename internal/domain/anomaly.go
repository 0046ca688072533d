package domain

import "fmt"

// ComputeAnomaly subtracts each timestep's calendar-month climatology plane
// from the grid: anomaly[t,y,x] = values[t,y,x] - clim[month(t),y,x]. An
// August 2019 plane has the August normal subtracted, an August 2024 plane the
// same normal, so anomalies are comparable across years. The grid and the
// climatology must not come from the same period for that comparison to be
// meaningful, but the function does not enforce it: anomalies of the baseline
// itself are how the zero-mean property is verified.
//
// NaN propagates through the subtraction from either operand; a cell missing
// in the observation or never observed in the baseline yields a NaN anomaly,
// never a fabricated zero. The result is a new Grid with the same shape,
// coordinates, and units; the inputs are not mutated.
func ComputeAnomaly(g *Grid, c *Climatology) (*Grid, error) {
	nt, ny, nx := g.Shape()
	cy, cx := c.Shape()
	if ny != cy || nx != cx {
		return nil, fmt.Errorf("%w: grid %dx%d vs climatology %dx%d", ErrShapeMismatch, ny, nx, cy, cx)
	}
	if g.units != c.units {
		return nil, fmt.Errorf("anomaly: grid units %q vs climatology units %q", g.units, c.units)
	}

	plane := ny * nx
	values := make([]float64, len(g.values))
	for t := 0; t < nt; t++ {
		base := t * plane
		mbase := (int(g.times[t].UTC().Month()) - 1) * plane
		for i := 0; i < plane; i++ {
			values[base+i] = g.values[base+i] - c.means[mbase+i]
		}
	}
	return &Grid{
		name:   g.name,
		units:  g.units,
		times:  g.times,
		lats:   g.lats,
		lons:   g.lons,
		values: values,
	}, nil
}
