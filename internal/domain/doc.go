// Package domain implements climatology and anomaly computation over gridded
// monthly surface-temperature data.
//
// # Data Source
//
// Grids originate from monthly-mean reanalysis extracts (skin temperature on
// a regular latitude/longitude grid, Kelvin). The grid service serves them as
// binary snapshots; the snapshot package decodes those into the axis lists
// and flat payloads that [BuildGrid] consumes. Decoders commonly leave
// singleton bookkeeping axes in place (ensemble number, surface level), which
// BuildGrid drops because removing a length-1 axis never reorders the flat
// payload.
//
// # Grid Layout
//
// A [Grid] stores its values as one flat t-major array:
//
//	index(t, y, x) = (t*ny + y)*nx + x
//
// so a timestep is a contiguous plane and a whole-grid pass is a single
// linear scan. Coordinate vectors are held per axis; times are strictly
// increasing, latitudes and longitudes are whatever order the source uses
// (reanalysis grids typically run north to south).
//
// # Missing Data
//
// NaN is the missing-value sentinel everywhere. Operations never convert NaN
// to zero: a zero temperature anomaly is a real and meaningful value, so
// fabricating zeros from gaps would silently bias every downstream mean. NaN
// cells are excluded from both the numerator and denominator of every mean,
// NaN propagates through arithmetic, and a cell or plane with no finite
// samples reads as NaN (or null once serialized).
//
// # Climatology and Anomalies
//
// [ComputeClimatology] partitions a baseline period's timesteps into the
// twelve calendar months and computes per-cell monthly means with a running
// mean update (count++; mean += (v-mean)/count), which does not accumulate
// the rounding error a naive sum over decades of ~300 K values would.
// [ComputeAnomaly] then subtracts each timestep's calendar-month plane, so an
// August anomaly is "warmer or cooler than a typical August at this cell" and
// values are comparable across years. Anomalies of the baseline itself
// average to zero per cell, a property the validation tool checks.
//
// # Statistics
//
// [Summarize] describes the finite values of an array: count, mean, unbiased
// (n-1) standard deviation, min/max, and percentiles by linear interpolation
// between order statistics (Hyndman-Fan type 7). An all-NaN array has no
// statistics and fails with [ErrAllMissing] rather than reporting zeros.
//
// # ID Generation
//
// Record IDs are deterministic SHA-256 hashes of dataset|variable|timestamp.
// This enables idempotent upserts downstream (ON CONFLICT DO NOTHING) and
// replay safety without distributed coordination. See [BuildRecords].
package domain
