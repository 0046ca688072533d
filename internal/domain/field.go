package domain

// Field is one spatial plane: a single timestep of a grid or a single
// calendar-month slab of a climatology. Values are stored y-major
// (latitude rows, longitude columns) with NaN marking missing cells.
// Fields exist for rendering and inspection and are never serialized to
// JSON, so NaN can live in them freely.
type Field struct {
	Name   string
	Lats   []float64
	Lons   []float64
	Values []float64
}

// Shape returns the plane cardinalities (lat, lon).
func (f *Field) Shape() (ny, nx int) {
	return len(f.Lats), len(f.Lons)
}

// At returns the cell value at (lat index, lon index).
func (f *Field) At(y, x int) float64 {
	return f.Values[y*len(f.Lons)+x]
}
