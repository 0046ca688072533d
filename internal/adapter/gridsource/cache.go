package gridsource

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/couchcryptid/climate-anomaly-etl/internal/observability"
	"github.com/couchcryptid/climate-anomaly-etl/internal/snapshot"
)

// Fetcher fetches grid snapshots. *Client implements it; CachedSource
// decorates any implementation.
type Fetcher interface {
	FetchSnapshot(ctx context.Context, dataset, variable string) (*snapshot.Snapshot, error)
}

// CachedSource wraps a Fetcher with a TTL-bounded disk cache of encoded
// snapshots, keyed by dataset and variable.
type CachedSource struct {
	inner   Fetcher
	dir     string
	ttl     time.Duration
	codec   string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCachedSource creates a disk cache decorator around a fetcher. The cache
// directory is created up front; if that fails the cache degrades to
// pass-through with a warning per write rather than blocking startup.
func NewCachedSource(inner Fetcher, dir string, ttl time.Duration, codecName string, logger *slog.Logger, metrics *observability.Metrics) *CachedSource {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn("snapshot cache directory unavailable", "dir", dir, "error", err)
	}
	return &CachedSource{
		inner:   inner,
		dir:     dir,
		ttl:     ttl,
		codec:   codecName,
		logger:  logger,
		metrics: metrics,
	}
}

func (c *CachedSource) FetchSnapshot(ctx context.Context, dataset, variable string) (*snapshot.Snapshot, error) {
	path := c.path(dataset, variable)
	if snap, ok := c.lookup(path); ok {
		c.logger.Debug("snapshot cache hit", "path", path)
		return snap, nil
	}

	snap, err := c.inner.FetchSnapshot(ctx, dataset, variable)
	if err != nil {
		return nil, err
	}
	// A failed cache write must not fail the fetch; the snapshot is already
	// in hand.
	if err := snapshot.WriteFile(path, snap, c.codec); err != nil {
		c.logger.Warn("snapshot cache write failed", "path", path, "error", err)
	}
	return snap, nil
}

// lookup returns the cached snapshot when present, fresh, and decodable.
// Corrupt entries are evicted immediately: they would fail identically on
// every subsequent run until the TTL expired.
func (c *CachedSource) lookup(path string) (*snapshot.Snapshot, bool) {
	fi, err := os.Stat(path)
	if err != nil {
		c.metrics.SnapshotCache.WithLabelValues("miss").Inc()
		return nil, false
	}
	if time.Since(fi.ModTime()) > c.ttl {
		c.metrics.SnapshotCache.WithLabelValues("stale").Inc()
		return nil, false
	}

	snap, err := snapshot.ReadFile(path)
	if err != nil {
		c.metrics.SnapshotCache.WithLabelValues("corrupt").Inc()
		c.logger.Warn("evicting corrupt cached snapshot", "path", path, "error", err)
		os.Remove(path)
		return nil, false
	}
	c.metrics.SnapshotCache.WithLabelValues("hit").Inc()
	return snap, true
}

// path derives the cache file name from the dataset and variable.
func (c *CachedSource) path(dataset, variable string) string {
	key := xxhash.Sum64String(dataset + "|" + variable)
	return filepath.Join(c.dir, fmt.Sprintf("%016x.snap", key))
}
