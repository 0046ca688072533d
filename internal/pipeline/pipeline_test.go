package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-anomaly-etl/internal/config"
	"github.com/couchcryptid/climate-anomaly-etl/internal/domain"
	"github.com/couchcryptid/climate-anomaly-etl/internal/observability"
	"github.com/couchcryptid/climate-anomaly-etl/internal/pipeline"
	"github.com/couchcryptid/climate-anomaly-etl/internal/snapshot"
)

// --- mocks ---

type stubSource struct {
	snap  *snapshot.Snapshot
	err   error
	calls atomic.Int64
}

func (s *stubSource) FetchSnapshot(ctx context.Context, _, _ string) (*snapshot.Snapshot, error) {
	s.calls.Add(1)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.snap, nil
}

// flakySource fails the first n fetches, then serves the snapshot.
type flakySource struct {
	remaining atomic.Int64
	snap      *snapshot.Snapshot
}

func (s *flakySource) FetchSnapshot(ctx context.Context, _, _ string) (*snapshot.Snapshot, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if s.remaining.Add(-1) >= 0 {
		return nil, errors.New("source unavailable")
	}
	return s.snap, nil
}

type captureWriter struct {
	calls   int
	runID   string
	records []domain.AnomalyRecord
	err     error
}

func (w *captureWriter) LoadBatch(_ context.Context, runID string, records []domain.AnomalyRecord) error {
	w.calls++
	w.runID = runID
	w.records = records
	return w.err
}

type captureRenderer struct {
	calls int
	res   *domain.RunResult
	err   error
}

func (r *captureRenderer) Render(res *domain.RunResult, _ *domain.Grid, _ *domain.Climatology) error {
	r.calls++
	r.res = res
	return r.err
}

// --- helpers ---

// makeSnapshot builds two years of monthly Kelvin data on a 2x1 grid with a
// repeating seasonal cycle, so the baseline climatology reproduces every
// value exactly.
func makeSnapshot(t *testing.T) *snapshot.Snapshot {
	t.Helper()

	const months = 24
	times := make([]time.Time, months)
	for i := range times {
		times[i] = time.Date(2019, time.January+time.Month(i), 1, 0, 0, 0, 0, time.UTC)
	}

	cycle := []float64{0, 10, 20, 10}
	values := make([]float64, months*2)
	for tIdx := 0; tIdx < months; tIdx++ {
		values[tIdx*2+0] = 273.15 + 5 + cycle[tIdx%4]
		values[tIdx*2+1] = 273.15 + 8 + cycle[tIdx%4]
	}

	return &snapshot.Snapshot{
		Dataset:  "era5-monthly",
		Variable: "skt",
		Units:    "K",
		Axes: []domain.Axis{
			{Name: "time", Times: times},
			{Name: "lat", Coords: []float64{40, 50}},
			{Name: "lon", Coords: []float64{10}},
		},
		Values: values,
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Dataset:      "era5-monthly",
		Variable:     "skt",
		BaselineFrom: 2019,
		BaselineTo:   2020,
		RunInterval:  time.Hour,
	}
}

func newTestRunner(source pipeline.GridSource, writer pipeline.RecordWriter, renderer pipeline.ReportRenderer) *pipeline.Runner {
	return pipeline.New(source, writer, renderer, testConfig(), slog.Default(), observability.NewMetricsForTesting())
}

// --- tests ---

func TestRunner_RunOnce_HappyPath(t *testing.T) {
	src := &stubSource{snap: makeSnapshot(t)}
	wtr := &captureWriter{}
	rnd := &captureRenderer{}
	r := newTestRunner(src, wtr, rnd)

	err := r.RunOnce(context.Background())

	require.NoError(t, err)
	assert.True(t, r.Ready())

	res := r.LastResult()
	require.NotNil(t, res)
	assert.Equal(t, "era5-monthly", res.Dataset)
	assert.Equal(t, "skt", res.Variable)
	assert.Equal(t, "degC", res.Units)
	assert.Equal(t, 24, res.Timesteps)
	assert.Equal(t, 2, res.LatCells)
	assert.Equal(t, 1, res.LonCells)

	// The snapshot covers exactly the baseline, so every anomaly is zero.
	assert.Equal(t, 0.0, res.AnomalyStats.Mean)
	assert.Equal(t, 0.0, res.AnomalyStats.Min)
	assert.Equal(t, 0.0, res.AnomalyStats.Max)
	for _, p := range res.AnomalyStats.Percentiles {
		assert.Equal(t, 0.0, p.Value, "p%v", p.Pct)
	}

	// Values are summarized after unit conversion, and the spatial-mean
	// series inherits the zero anomalies.
	assert.Equal(t, 48, res.ValueStats.Count)
	assert.InDelta(t, 16.5, res.ValueStats.Mean, 1e-9)
	assert.InDelta(t, 5.0, res.ValueStats.Min, 1e-9)
	assert.InDelta(t, 28.0, res.ValueStats.Max, 1e-9)
	assert.Equal(t, 24, res.SeriesStats.Count)
	assert.Equal(t, 0.0, res.SeriesStats.Mean)

	assert.Equal(t, 1, wtr.calls)
	assert.Equal(t, res.RunID, wtr.runID)
	assert.Len(t, wtr.records, 24)

	assert.Equal(t, 1, rnd.calls)
	require.NotNil(t, rnd.res)
	assert.Equal(t, res.RunID, rnd.res.RunID)
}

func TestRunner_RunOnce_NilSinks(t *testing.T) {
	src := &stubSource{snap: makeSnapshot(t)}
	r := newTestRunner(src, nil, nil)

	err := r.RunOnce(context.Background())

	require.NoError(t, err)
	assert.True(t, r.Ready())
	assert.NotNil(t, r.LastResult())
}

func TestRunner_RunOnce_FetchError(t *testing.T) {
	wantErr := errors.New("grid service down")
	src := &stubSource{err: wantErr}
	wtr := &captureWriter{}
	r := newTestRunner(src, wtr, nil)

	err := r.RunOnce(context.Background())

	assert.ErrorIs(t, err, wantErr)
	assert.False(t, r.Ready())
	assert.Nil(t, r.LastResult())
	assert.Equal(t, 0, wtr.calls)
}

func TestRunner_RunOnce_WriterError(t *testing.T) {
	wantErr := errors.New("broker unreachable")
	src := &stubSource{snap: makeSnapshot(t)}
	wtr := &captureWriter{err: wantErr}
	r := newTestRunner(src, wtr, nil)

	err := r.RunOnce(context.Background())

	assert.ErrorIs(t, err, wantErr)
	assert.False(t, r.Ready())
}

func TestRunner_RunOnce_RenderFailureTolerated(t *testing.T) {
	src := &stubSource{snap: makeSnapshot(t)}
	rnd := &captureRenderer{err: errors.New("disk full")}
	r := newTestRunner(src, nil, rnd)

	err := r.RunOnce(context.Background())

	require.NoError(t, err)
	assert.True(t, r.Ready())
	assert.Equal(t, 1, rnd.calls)
}

func TestRunner_Run_RunsThenStops(t *testing.T) {
	src := &stubSource{snap: makeSnapshot(t)}
	wtr := &captureWriter{}
	r := newTestRunner(src, wtr, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := r.Run(ctx)

	require.NoError(t, err)
	assert.Equal(t, int64(1), src.calls.Load(), "interval is an hour, only the initial run fits")
	assert.Equal(t, 1, wtr.calls)
	assert.True(t, r.Ready())
}

func TestRunner_Run_ContextCancellation(t *testing.T) {
	src := &stubSource{snap: makeSnapshot(t)}
	wtr := &captureWriter{}
	r := newTestRunner(src, wtr, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	err := r.Run(ctx)

	require.NoError(t, err)
	assert.Equal(t, 0, wtr.calls)
}

func TestRunner_Run_RetriesWithBackoff(t *testing.T) {
	src := &flakySource{snap: makeSnapshot(t)}
	src.remaining.Store(2)
	wtr := &captureWriter{}
	r := newTestRunner(src, wtr, nil)

	// Two failures back off 200ms then 400ms; two seconds is plenty.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := r.Run(ctx)

	require.NoError(t, err)
	assert.True(t, r.Ready())
	assert.Equal(t, 1, wtr.calls)
}
