package report

import (
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/couchcryptid/climate-anomaly-etl/internal/domain"
)

// missingCellColor marks grid cells with no data in the heatmaps.
var missingCellColor = color.RGBA{R: 0xc9, G: 0xc9, B: 0xc9, A: 0xff}

// fieldGrid adapts a domain.Field to the plotter.GridXYZ interface.
// Reanalysis grids order latitude north to south; the plotter wants an
// ascending Y axis, so rows are flipped when needed.
type fieldGrid struct {
	f    *domain.Field
	flip bool
}

func newFieldGrid(f *domain.Field) fieldGrid {
	flip := len(f.Lats) > 1 && f.Lats[0] > f.Lats[len(f.Lats)-1]
	return fieldGrid{f: f, flip: flip}
}

func (g fieldGrid) Dims() (c, r int) { return len(g.f.Lons), len(g.f.Lats) }

func (g fieldGrid) Z(c, r int) float64 { return g.f.At(g.row(r), c) }

func (g fieldGrid) X(c int) float64 { return g.f.Lons[c] }

func (g fieldGrid) Y(r int) float64 { return g.f.Lats[g.row(r)] }

func (g fieldGrid) row(r int) int {
	if g.flip {
		return len(g.f.Lats) - 1 - r
	}
	return r
}

// saveDivergingHeatmap renders an anomaly field with a blue-white-red ramp
// centered on zero, so warm and cold departures read symmetrically.
func saveDivergingHeatmap(path string, f *domain.Field) error {
	limit := symmetricLimit(f.Values)
	cm := moreland.SmoothBlueRed()
	cm.SetMin(-limit)
	cm.SetMax(limit)

	h := plotter.NewHeatMap(newFieldGrid(f), cm.Palette(255))
	h.NaN = missingCellColor
	h.Min = -limit
	h.Max = limit
	return saveHeatmapPlot(path, f.Name, h)
}

// saveSequentialHeatmap renders an absolute-valued field with a heat ramp.
func saveSequentialHeatmap(path string, f *domain.Field) error {
	h := plotter.NewHeatMap(newFieldGrid(f), palette.Heat(255, 1))
	h.NaN = missingCellColor
	return saveHeatmapPlot(path, f.Name, h)
}

func saveHeatmapPlot(path, title string, h *plotter.HeatMap) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "longitude"
	p.Y.Label.Text = "latitude"
	p.Add(h)
	return p.Save(10*vg.Inch, 5*vg.Inch, path)
}

// symmetricLimit returns the largest finite magnitude in values, or 1 when
// there is none, to anchor a diverging color scale.
func symmetricLimit(values []float64) float64 {
	limit := 0.0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		limit = math.Max(limit, math.Abs(v))
	}
	if limit == 0 {
		return 1
	}
	return limit
}
