package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/climate-anomaly-etl/internal/config"
	"github.com/couchcryptid/climate-anomaly-etl/internal/domain"
	"github.com/couchcryptid/climate-anomaly-etl/internal/observability"
	"github.com/couchcryptid/climate-anomaly-etl/internal/snapshot"
)

// GridSource fetches the latest grid snapshot for a dataset variable.
type GridSource interface {
	FetchSnapshot(ctx context.Context, dataset, variable string) (*snapshot.Snapshot, error)
}

// RecordWriter publishes the per-timestep anomaly records of one run.
type RecordWriter interface {
	LoadBatch(ctx context.Context, runID string, records []domain.AnomalyRecord) error
}

// ReportRenderer writes human-readable artifacts for a completed run.
type ReportRenderer interface {
	Render(res *domain.RunResult, anom *domain.Grid, clim *domain.Climatology) error
}

// Runner orchestrates the fetch-compute-publish cycle: pull the latest grid,
// derive the baseline climatology, compute anomalies, and fan the results out
// to Kafka and report artifacts. The writer and renderer are optional; a nil
// value disables that sink.
type Runner struct {
	source   GridSource
	writer   RecordWriter
	renderer ReportRenderer
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *observability.Metrics

	ready atomic.Bool
	mu    sync.RWMutex
	last  *domain.RunResult
}

// New creates a Runner with the given source, sinks and observability.
func New(source GridSource, writer RecordWriter, renderer ReportRenderer, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Runner {
	return &Runner{
		source:   source,
		writer:   writer,
		renderer: renderer,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
	}
}

// Ready reports whether at least one run has completed successfully.
func (r *Runner) Ready() bool {
	return r.ready.Load()
}

// LastResult returns the summary of the most recent successful run, or nil
// before the first one completes.
func (r *Runner) LastResult() *domain.RunResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Run executes the pipeline on the configured interval until the context is
// cancelled. A failed run is retried with exponential backoff instead of
// waiting out the full interval.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("pipeline started",
		"dataset", r.cfg.Dataset,
		"variable", r.cfg.Variable,
		"interval", r.cfg.RunInterval,
	)
	r.metrics.PipelineRunning.Set(1)
	defer r.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	// Keeps retry storms short while avoiding tight loops during source outages.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		if err := r.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				r.logger.Info("pipeline stopping", "reason", ctx.Err())
				return nil
			}
			r.logger.Error("run failed", "error", err)
			if !sleepWithContext(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}

		backoff = 200 * time.Millisecond
		if !sleepWithContext(ctx, r.cfg.RunInterval) {
			r.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// RunOnce executes a single fetch-compute-publish cycle and records its
// outcome in the run metrics.
func (r *Runner) RunOnce(ctx context.Context) error {
	start := time.Now()
	r.metrics.RunsTotal.Inc()

	res, err := r.execute(ctx)
	if err != nil {
		r.metrics.RunFailures.Inc()
		return err
	}

	r.mu.Lock()
	r.last = res
	r.mu.Unlock()
	r.ready.Store(true)

	r.metrics.RunDuration.Observe(time.Since(start).Seconds())
	r.metrics.LastSuccess.SetToCurrentTime()

	r.logger.Info("run completed",
		"run_id", res.RunID,
		"timesteps", res.Timesteps,
		"mean_anomaly", res.AnomalyStats.Mean,
		"duration", time.Since(start),
	)
	return nil
}

// execute performs the domain computation and sink fan-out for one run.
func (r *Runner) execute(ctx context.Context) (*domain.RunResult, error) {
	fetchStart := time.Now()
	snap, err := r.source.FetchSnapshot(ctx, r.cfg.Dataset, r.cfg.Variable)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	r.metrics.FetchDuration.Observe(time.Since(fetchStart).Seconds())

	grid, err := snap.Grid()
	if err != nil {
		return nil, fmt.Errorf("assemble grid: %w", err)
	}
	grid, err = grid.ToCelsius()
	if err != nil {
		return nil, err
	}

	_, ny, nx := grid.Shape()
	r.metrics.GridCells.Set(float64(ny * nx))

	baseline, err := grid.SelectYears(r.cfg.BaselineFrom, r.cfg.BaselineTo)
	if err != nil {
		return nil, fmt.Errorf("select baseline %d-%d: %w", r.cfg.BaselineFrom, r.cfg.BaselineTo, err)
	}
	clim, err := domain.ComputeClimatology(baseline)
	if err != nil {
		return nil, fmt.Errorf("compute climatology: %w", err)
	}
	anom, err := domain.ComputeAnomaly(grid, clim)
	if err != nil {
		return nil, fmt.Errorf("compute anomalies: %w", err)
	}

	runID := uuid.NewString()
	res, err := domain.BuildRunResult(runID, r.cfg.Dataset, r.cfg.BaselineFrom, r.cfg.BaselineTo, grid, anom, clim, r.cfg.Percentiles)
	if err != nil {
		return nil, err
	}
	r.observeLatest(res)

	if r.writer != nil {
		records := domain.BuildRecords(r.cfg.Dataset, anom)
		if err := r.writer.LoadBatch(ctx, runID, records); err != nil {
			return nil, fmt.Errorf("publish records: %w", err)
		}
		r.metrics.RecordsPublished.Add(float64(len(records)))
	}

	if r.renderer != nil {
		// Report artifacts are a convenience product; a render failure is not
		// worth failing the run the records were already published for.
		if err := r.renderer.Render(res, anom, clim); err != nil {
			r.logger.Warn("report render failed", "run_id", runID, "error", err)
		} else {
			r.metrics.ReportsWritten.Inc()
		}
	}

	return res, nil
}

// observeLatest exports the newest timestep's global mean anomaly, when it
// has one.
func (r *Runner) observeLatest(res *domain.RunResult) {
	for i := len(res.Series) - 1; i >= 0; i-- {
		if res.Series[i].MeanAnomaly != nil {
			r.metrics.LatestMeanAnomaly.Set(*res.Series[i].MeanAnomaly)
			return
		}
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
