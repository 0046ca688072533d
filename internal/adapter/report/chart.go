package report

import (
	"fmt"
	"math"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/couchcryptid/climate-anomaly-etl/internal/domain"
)

// viridis is the perceptually uniform ramp used by the visual map.
var viridis = []string{
	"#440154", "#482777", "#3e4989", "#31688e", "#26828e",
	"#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725",
}

// missingValue is how echarts encodes a gap in a series.
const missingValue = "-"

func renderCharts(path string, res *domain.RunResult) error {
	page := components.NewPage()
	page.AddCharts(seriesChart(res), normalsChart(res))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create charts file: %w", err)
	}
	defer f.Close()

	if err := page.Render(f); err != nil {
		return fmt.Errorf("render charts: %w", err)
	}
	return nil
}

// seriesChart plots the global mean anomaly per timestep with a zero
// markline for the baseline.
func seriesChart(res *domain.RunResult) *charts.Line {
	labels := make([]string, len(res.Series))
	data := make([]opts.LineData, len(res.Series))
	minV, maxV := math.Inf(1), math.Inf(-1)
	for i, pt := range res.Series {
		labels[i] = pt.Time.Format("2006-01")
		if pt.MeanAnomaly == nil {
			data[i] = opts.LineData{Value: missingValue}
			continue
		}
		v := *pt.MeanAnomaly
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
		data[i] = opts.LineData{Value: v}
	}
	if minV > maxV {
		minV, maxV = -1, 1
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Climate Anomaly Report",
			Width:     "1200px",
			Height:    "500px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s global mean anomaly (%s)", res.Variable, res.Units),
			Subtitle: fmt.Sprintf("dataset=%s baseline=%d-%d", res.Dataset, res.BaselineFrom, res.BaselineTo),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(minV),
			Max:        float32(maxV),
			Dimension:  "1",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	line.SetXAxis(labels).
		AddSeries("mean anomaly", data, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))
	line.SetSeriesOptions(
		charts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{Name: "baseline", YAxis: 0}),
	)
	return line
}

// normalsChart plots the twelve monthly climatology means.
func normalsChart(res *domain.RunResult) *charts.Bar {
	labels := make([]string, len(res.Normals))
	data := make([]opts.BarData, len(res.Normals))
	for i, n := range res.Normals {
		labels[i] = n.Label
		if n.Mean == nil {
			data[i] = opts.BarData{Value: missingValue}
			continue
		}
		data[i] = opts.BarData{Value: *n.Mean}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Monthly climatology normals",
			Subtitle: fmt.Sprintf("%s (%s), spatial mean per calendar month", res.Variable, res.Units),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels).
		AddSeries("normal", data, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))
	return bar
}
