// Package report renders the artifacts of a pipeline run: a JSON summary,
// interactive HTML charts of the anomaly series and monthly normals, and PNG
// heatmaps of the latest anomaly field, its per-cell spread over time, and
// two reference climatology months.
package report

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/climate-anomaly-etl/internal/domain"
)

// Renderer writes run artifacts under a timestamped directory per run.
// It implements pipeline.ReportRenderer.
type Renderer struct {
	baseDir string
	logger  *slog.Logger
}

// NewRenderer creates a renderer rooted at baseDir. Run directories are
// created beneath it on demand.
func NewRenderer(baseDir string, logger *slog.Logger) *Renderer {
	return &Renderer{baseDir: baseDir, logger: logger}
}

// Render writes all artifacts for one run into a fresh directory named after
// the run's generation time.
func (r *Renderer) Render(res *domain.RunResult, anom *domain.Grid, clim *domain.Climatology) error {
	dir := filepath.Join(r.baseDir, res.GeneratedAt.UTC().Format("20060102_150405"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	if err := writeSummary(filepath.Join(dir, "summary.json"), res); err != nil {
		return err
	}
	if err := renderCharts(filepath.Join(dir, "charts.html"), res); err != nil {
		return err
	}

	nt, _, _ := anom.Shape()
	latest, err := anom.FieldAt(nt - 1)
	if err != nil {
		return err
	}
	if err := saveDivergingHeatmap(filepath.Join(dir, "anomaly_latest.png"), latest); err != nil {
		return fmt.Errorf("render anomaly heatmap: %w", err)
	}
	if err := saveSequentialHeatmap(filepath.Join(dir, "anomaly_std.png"), domain.ReduceStdOverTime(anom)); err != nil {
		return fmt.Errorf("render anomaly std heatmap: %w", err)
	}

	// January and July bracket the seasonal cycle in either hemisphere.
	for _, m := range []time.Month{time.January, time.July} {
		field, err := clim.MonthField(m)
		if err != nil {
			return err
		}
		name := fmt.Sprintf("climatology_%s.png", monthSlug(m))
		if err := saveSequentialHeatmap(filepath.Join(dir, name), field); err != nil {
			return fmt.Errorf("render climatology heatmap: %w", err)
		}
	}

	r.logger.Info("report written", "run_id", res.RunID, "dir", dir)
	return nil
}

func writeSummary(path string, res *domain.RunResult) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write run summary: %w", err)
	}
	return nil
}

func monthSlug(m time.Month) string {
	return []string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}[m-1]
}
