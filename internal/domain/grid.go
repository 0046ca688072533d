package domain

import (
	"fmt"
	"strings"
	"time"
)

// Axis is one coordinate axis of a decoded snapshot. Exactly one of Times or
// Coords is populated: Times for the time axis, Coords for numeric axes
// (latitude, longitude, or auxiliary decode metadata such as an ensemble
// number).
type Axis struct {
	Name   string      `json:"name"`
	Times  []time.Time `json:"times,omitempty"`
	Coords []float64   `json:"coords,omitempty"`
}

// Len returns the axis cardinality.
func (a Axis) Len() int {
	if len(a.Times) > 0 {
		return len(a.Times)
	}
	return len(a.Coords)
}

// Grid is an immutable 3-D array of cell values indexed by (time, lat, lon),
// with one coordinate vector per axis. Values are stored t-major (time, then
// latitude, then longitude) and may contain NaN as the missing-value sentinel.
// All derived grids (unit conversions, time selections, anomalies) are new
// containers; a Grid is never mutated after construction.
type Grid struct {
	name   string
	units  string
	times  []time.Time
	lats   []float64
	lons   []float64
	values []float64
}

// NewGrid constructs a Grid from coordinate vectors and a flat t-major value
// array. It validates that all axes are non-empty, that the value count equals
// the product of the axis cardinalities, and that times are strictly
// increasing. Input slices are copied so later caller mutation cannot leak in.
func NewGrid(name, units string, times []time.Time, lats, lons, values []float64) (*Grid, error) {
	if len(times) == 0 || len(lats) == 0 || len(lons) == 0 {
		return nil, fmt.Errorf("%w: empty axis (time=%d lat=%d lon=%d)", ErrShape, len(times), len(lats), len(lons))
	}
	if want := len(times) * len(lats) * len(lons); len(values) != want {
		return nil, fmt.Errorf("%w: %d values for %dx%dx%d grid (want %d)",
			ErrShape, len(values), len(times), len(lats), len(lons), want)
	}
	for i := 1; i < len(times); i++ {
		if !times[i].After(times[i-1]) {
			return nil, fmt.Errorf("%w: times not strictly increasing at index %d (%s >= %s)",
				ErrShape, i, times[i-1].Format(time.RFC3339), times[i].Format(time.RFC3339))
		}
	}

	g := &Grid{
		name:   name,
		units:  units,
		times:  make([]time.Time, len(times)),
		lats:   make([]float64, len(lats)),
		lons:   make([]float64, len(lons)),
		values: make([]float64, len(values)),
	}
	copy(g.times, times)
	copy(g.lats, lats)
	copy(g.lons, lons)
	copy(g.values, values)
	return g, nil
}

// BuildGrid constructs a Grid from a decoded axis list. Auxiliary axes with
// cardinality 1 (ensemble number, surface level, and similar decode metadata)
// are dropped silently: dropping a singleton leaves the flat row-major payload
// unchanged wherever the axis sits in the order. An auxiliary axis with more
// than one entry cannot form a 3-D grid and is rejected, as is a missing or
// out-of-order time/lat/lon axis.
func BuildGrid(name, units string, axes []Axis, values []float64) (*Grid, error) {
	var (
		times      []time.Time
		lats, lons []float64
		order      []string
	)
	for _, ax := range axes {
		switch canonicalAxisName(ax.Name) {
		case "time":
			times = ax.Times
			order = append(order, "time")
		case "lat":
			lats = ax.Coords
			order = append(order, "lat")
		case "lon":
			lons = ax.Coords
			order = append(order, "lon")
		default:
			if ax.Len() != 1 {
				return nil, fmt.Errorf("%w: auxiliary axis %q has cardinality %d (only singletons can be dropped)",
					ErrShape, ax.Name, ax.Len())
			}
		}
	}
	if times == nil || lats == nil || lons == nil {
		return nil, fmt.Errorf("%w: axis list %v lacks time, lat, or lon", ErrShape, axisNames(axes))
	}
	if len(order) != 3 || order[0] != "time" || order[1] != "lat" || order[2] != "lon" {
		return nil, fmt.Errorf("%w: axes ordered %v, want [time lat lon]", ErrShape, order)
	}
	return NewGrid(name, units, times, lats, lons, values)
}

// canonicalAxisName maps decoder aliases onto the three canonical axis names.
func canonicalAxisName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "time", "valid_time":
		return "time"
	case "lat", "latitude":
		return "lat"
	case "lon", "longitude":
		return "lon"
	default:
		return ""
	}
}

func axisNames(axes []Axis) []string {
	names := make([]string, len(axes))
	for i, ax := range axes {
		names[i] = ax.Name
	}
	return names
}

// Name returns the variable name, e.g. "skt".
func (g *Grid) Name() string { return g.name }

// Units returns the units label, e.g. "K" or "degC".
func (g *Grid) Units() string { return g.units }

// Shape returns the axis cardinalities (time, lat, lon).
func (g *Grid) Shape() (nt, ny, nx int) {
	return len(g.times), len(g.lats), len(g.lons)
}

// Times returns a copy of the time coordinate vector.
func (g *Grid) Times() []time.Time {
	out := make([]time.Time, len(g.times))
	copy(out, g.times)
	return out
}

// Lats returns a copy of the latitude coordinate vector.
func (g *Grid) Lats() []float64 {
	out := make([]float64, len(g.lats))
	copy(out, g.lats)
	return out
}

// Lons returns a copy of the longitude coordinate vector.
func (g *Grid) Lons() []float64 {
	out := make([]float64, len(g.lons))
	copy(out, g.lons)
	return out
}

// TimeAt returns the timestamp of timestep i.
func (g *Grid) TimeAt(i int) time.Time { return g.times[i] }

// At returns the cell value at (timestep, lat index, lon index).
func (g *Grid) At(t, y, x int) float64 {
	return g.values[(t*len(g.lats)+y)*len(g.lons)+x]
}

// Values returns the flat t-major value array. The returned slice is the
// grid's backing store, shared to avoid copying hundreds of megabytes per
// call; callers must treat it as read-only.
func (g *Grid) Values() []float64 { return g.values }

// plane returns the number of cells in one timestep (lat x lon).
func (g *Grid) plane() int { return len(g.lats) * len(g.lons) }

// ConvertUnits returns a new Grid with every cell mapped through
// v' = (v - offset) * scale and the given units label. The receiver is never
// mutated; NaN cells stay NaN through ordinary float arithmetic. The shape
// check guards against a corrupted container handed in from outside.
func (g *Grid) ConvertUnits(offset, scale float64, units string) (*Grid, error) {
	if len(g.values) != len(g.times)*g.plane() {
		return nil, fmt.Errorf("%w: container holds %d values for %dx%dx%d grid",
			ErrShape, len(g.values), len(g.times), len(g.lats), len(g.lons))
	}
	values := make([]float64, len(g.values))
	for i, v := range g.values {
		values[i] = (v - offset) * scale
	}
	return &Grid{
		name:   g.name,
		units:  units,
		times:  g.times,
		lats:   g.lats,
		lons:   g.lons,
		values: values,
	}, nil
}

// ToCelsius converts a Kelvin grid to degrees Celsius. A grid already labeled
// Celsius is returned unchanged; any other units label is an error because a
// silent wrong-unit subtraction would corrupt every downstream statistic.
func (g *Grid) ToCelsius() (*Grid, error) {
	switch strings.ToLower(g.units) {
	case "k", "kelvin":
		return g.ConvertUnits(273.15, 1, "degC")
	case "degc", "c", "celsius":
		return g, nil
	default:
		return nil, fmt.Errorf("convert to celsius: unsupported units %q", g.units)
	}
}

// SelectTime returns the sub-grid of all timesteps whose UTC RFC 3339
// rendering matches label exactly or by prefix: "2013-08" selects the August
// 2013 step, "2013" all of 2013. Matching steps are contiguous because times
// are strictly increasing.
func (g *Grid) SelectTime(label string) (*Grid, error) {
	first, last := -1, -1
	for i, t := range g.times {
		if strings.HasPrefix(t.UTC().Format(time.RFC3339), label) {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return nil, fmt.Errorf("%w: no timestep matches %q", ErrNotFound, label)
	}
	return g.slice(first, last+1), nil
}

// SelectYears returns the sub-grid covering the inclusive calendar-year
// window [from, to], used to pin a climatology baseline period.
func (g *Grid) SelectYears(from, to int) (*Grid, error) {
	first, last := -1, -1
	for i, t := range g.times {
		y := t.UTC().Year()
		if y < from || y > to {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	if first < 0 {
		return nil, fmt.Errorf("%w: no timesteps in years %d-%d", ErrNotFound, from, to)
	}
	return g.slice(first, last+1), nil
}

// slice returns the sub-grid of timesteps [from, to). Coordinate vectors are
// shared with the receiver; the value window is copied so the sub-grid stays
// valid independently of the parent.
func (g *Grid) slice(from, to int) *Grid {
	plane := g.plane()
	values := make([]float64, (to-from)*plane)
	copy(values, g.values[from*plane:to*plane])
	return &Grid{
		name:   g.name,
		units:  g.units,
		times:  g.times[from:to],
		lats:   g.lats,
		lons:   g.lons,
		values: values,
	}
}

// FieldAt returns the spatial plane of timestep i as a Field.
func (g *Grid) FieldAt(i int) (*Field, error) {
	if i < 0 || i >= len(g.times) {
		return nil, fmt.Errorf("%w: timestep index %d outside [0,%d)", ErrNotFound, i, len(g.times))
	}
	plane := g.plane()
	values := make([]float64, plane)
	copy(values, g.values[i*plane:(i+1)*plane])
	return &Field{
		Name:   fmt.Sprintf("%s %s", g.name, g.times[i].UTC().Format("2006-01")),
		Lats:   g.lats,
		Lons:   g.lons,
		Values: values,
	}, nil
}
