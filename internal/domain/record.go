package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"
)

// AnomalyRecord is one timestep of an anomaly grid flattened for publishing:
// the spatial aggregates of the plane plus enough provenance to interpret
// them. Aggregate fields are pointers because a timestep whose plane is
// entirely missing has no aggregates, and encoding/json cannot represent NaN;
// nil marshals as null.
type AnomalyRecord struct {
	ID           string    `json:"id"`
	Dataset      string    `json:"dataset"`
	Variable     string    `json:"variable"`
	Time         time.Time `json:"time"`
	Year         int       `json:"year"`
	Month        int       `json:"month"`
	MeanAnomaly  *float64  `json:"mean_anomaly"`
	MinAnomaly   *float64  `json:"min_anomaly"`
	MaxAnomaly   *float64  `json:"max_anomaly"`
	FiniteCells  int       `json:"finite_cells"`
	MissingCells int       `json:"missing_cells"`
	ProcessedAt  time.Time `json:"processed_at"`
}

// BuildRecords flattens an anomaly grid into one record per timestep. Record
// bodies are deterministic apart from ProcessedAt, so replaying a run
// republishes records with the same IDs and downstream consumers can upsert
// idempotently.
func BuildRecords(dataset string, anom *Grid) []AnomalyRecord {
	nt, ny, nx := anom.Shape()
	plane := ny * nx
	now := clock.Now().UTC()

	records := make([]AnomalyRecord, nt)
	for t := 0; t < nt; t++ {
		ts := anom.TimeAt(t).UTC()
		mean, min, max, finite := nanAggregates(anom.values[t*plane : (t+1)*plane])
		records[t] = AnomalyRecord{
			ID:           recordID(dataset, anom.name, ts),
			Dataset:      dataset,
			Variable:     anom.name,
			Time:         ts,
			Year:         ts.Year(),
			Month:        int(ts.Month()),
			MeanAnomaly:  finitePtr(mean),
			MinAnomaly:   finitePtr(min),
			MaxAnomaly:   finitePtr(max),
			FiniteCells:  finite,
			MissingCells: plane - finite,
			ProcessedAt:  now,
		}
	}
	return records
}

// recordID produces a deterministic ID from the record's key fields.
// Reprocessing the same dataset and timestep yields the same ID, which
// enables idempotent upserts downstream (ON CONFLICT DO NOTHING) and replay
// safety without distributed coordination.
func recordID(dataset, variable string, ts time.Time) string {
	input := fmt.Sprintf("%s|%s|%s", dataset, variable, ts.UTC().Format(time.RFC3339))
	hash := sha256.Sum256([]byte(input))
	short := hex.EncodeToString(hash[:8])
	if variable == "" {
		return short
	}
	return variable + "-" + short
}

// finitePtr returns a pointer to v, or nil when v is NaN. JSON output uses
// null for missing aggregates because the encoder rejects NaN outright.
func finitePtr(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// SeriesPoint is one timestep of the spatially averaged anomaly series.
type SeriesPoint struct {
	Time        time.Time `json:"time"`
	MeanAnomaly *float64  `json:"mean_anomaly"`
}

// MonthlyNormal is one calendar month of a climatology reduced to its spatial
// mean, with the number of baseline timesteps behind it.
type MonthlyNormal struct {
	Month   int      `json:"month"`
	Label   string   `json:"label"`
	Mean    *float64 `json:"mean"`
	Samples int      `json:"samples"`
}

// StatsReport is the wire form of SummaryStats. Mean, Min, and Max are plain
// floats because Summarize guarantees them finite; Std is a pointer because
// the unbiased estimator is undefined for a single sample and null is the
// only honest JSON rendering of that.
type StatsReport struct {
	Count       int          `json:"count"`
	Missing     int          `json:"missing"`
	Mean        float64      `json:"mean"`
	Std         *float64     `json:"std"`
	Min         float64      `json:"min"`
	Max         float64      `json:"max"`
	Percentiles []Percentile `json:"percentiles"`
}

// NewStatsReport converts computed statistics to their wire form.
func NewStatsReport(s SummaryStats) StatsReport {
	return StatsReport{
		Count:       s.Count,
		Missing:     s.Missing,
		Mean:        s.Mean,
		Std:         finitePtr(s.Std),
		Min:         s.Min,
		Max:         s.Max,
		Percentiles: s.Percentiles,
	}
}

// RunResult captures everything one pipeline run derived from a snapshot:
// the value, anomaly, and series distributions, the spatial-mean anomaly
// series, and the monthly normals the anomalies were measured against. It is
// what the summary endpoint serves and what the report renderer charts.
type RunResult struct {
	RunID        string          `json:"run_id"`
	Dataset      string          `json:"dataset"`
	Variable     string          `json:"variable"`
	Units        string          `json:"units"`
	GeneratedAt  time.Time       `json:"generated_at"`
	BaselineFrom int             `json:"baseline_from"`
	BaselineTo   int             `json:"baseline_to"`
	Timesteps    int             `json:"timesteps"`
	LatCells     int             `json:"lat_cells"`
	LonCells     int             `json:"lon_cells"`
	ValueStats   StatsReport     `json:"value_stats"`
	AnomalyStats StatsReport     `json:"anomaly_stats"`
	SeriesStats  StatsReport     `json:"series_stats"`
	Series       []SeriesPoint   `json:"series"`
	Normals      []MonthlyNormal `json:"normals"`
}

// BuildRunResult assembles the run summary for a converted grid, its anomaly
// grid, and the climatology the anomalies were measured against. The
// distribution is summarized three ways: the converted values, the anomalies,
// and the spatial-mean anomaly series. A nil pcts requests the default
// percentile set. It fails when a grid has no finite cells at all, in which
// case there is no distribution to report.
func BuildRunResult(runID, dataset string, baselineFrom, baselineTo int, values, anom *Grid, clim *Climatology, pcts []float64) (*RunResult, error) {
	valueStats, err := Summarize(values.Values(), pcts)
	if err != nil {
		return nil, fmt.Errorf("summarize values: %w", err)
	}
	stats, err := Summarize(anom.Values(), pcts)
	if err != nil {
		return nil, fmt.Errorf("summarize anomalies: %w", err)
	}

	means := ReduceMeanOverSpace(anom)
	seriesStats, err := Summarize(means, pcts)
	if err != nil {
		return nil, fmt.Errorf("summarize series: %w", err)
	}
	series := make([]SeriesPoint, len(means))
	for t, mean := range means {
		series[t] = SeriesPoint{Time: anom.TimeAt(t).UTC(), MeanAnomaly: finitePtr(mean)}
	}

	ny, nx := clim.Shape()
	plane := ny * nx
	normals := make([]MonthlyNormal, 12)
	for m := 0; m < 12; m++ {
		mean, _, _, _ := nanAggregates(clim.means[m*plane : (m+1)*plane])
		normals[m] = MonthlyNormal{
			Month:   m + 1,
			Label:   time.Month(m + 1).String()[:3],
			Mean:    finitePtr(mean),
			Samples: clim.steps[m],
		}
	}

	nt, gy, gx := anom.Shape()
	return &RunResult{
		RunID:        runID,
		Dataset:      dataset,
		Variable:     anom.Name(),
		Units:        anom.Units(),
		GeneratedAt:  clock.Now().UTC(),
		BaselineFrom: baselineFrom,
		BaselineTo:   baselineTo,
		Timesteps:    nt,
		LatCells:     gy,
		LonCells:     gx,
		ValueStats:   NewStatsReport(valueStats),
		AnomalyStats: NewStatsReport(stats),
		SeriesStats:  NewStatsReport(seriesStats),
		Series:       series,
		Normals:      normals,
	}, nil
}
