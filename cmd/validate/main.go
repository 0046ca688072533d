// Command validate runs data integrity checks over a grid snapshot and the
// derived climatology, anomalies, and statistics. It recomputes every derived
// quantity with naive reference arithmetic and verifies the engine's
// invariants hold for the given input: missing data never becomes zero,
// baseline anomalies average out, and percentiles stay ordered.
//
// Usage:
//
//	go run ./cmd/gengrid -out /tmp/skt.snap
//	go run ./cmd/validate -snapshot /tmp/skt.snap -baseline-from 1991 -baseline-to 2020
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/climate-anomaly-etl/internal/domain"
	"github.com/couchcryptid/climate-anomaly-etl/internal/snapshot"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	snapPath := flag.String("snapshot", "", "path to a grid snapshot file")
	baselineFrom := flag.Int("baseline-from", 1991, "first baseline year (inclusive)")
	baselineTo := flag.Int("baseline-to", 2020, "last baseline year (inclusive)")
	flag.Parse()

	if *snapPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*snapPath, *baselineFrom, *baselineTo); code != 0 {
		os.Exit(code)
	}
}

func run(snapPath string, baselineFrom, baselineTo int) int {
	fmt.Println("=== Climate Anomaly Engine Validation ===")
	fmt.Println()

	snap, err := snapshot.ReadFile(snapPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read snapshot: %v\n", err)
		return 1
	}

	grid, err := snap.Grid()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: assemble grid: %v\n", err)
		return 1
	}
	grid, err = grid.ToCelsius()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: convert units: %v\n", err)
		return 1
	}

	baseline, err := grid.SelectYears(baselineFrom, baselineTo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: select baseline %d-%d: %v\n", baselineFrom, baselineTo, err)
		return 1
	}
	clim, err := domain.ComputeClimatology(baseline)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: compute climatology: %v\n", err)
		return 1
	}
	anom, err := domain.ComputeAnomaly(grid, clim)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: compute anomalies: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateContainer(snap, grid),
		validateClimatology(baseline, clim),
		validateAnomalies(grid, clim, anom, baseline),
		validateStatistics(anom),
	}

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	nt, ny, nx := grid.Shape()
	fmt.Println()
	fmt.Printf("Grid: %d timesteps, %dx%d cells; baseline %d-%d\n", nt, ny, nx, baselineFrom, baselineTo)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i == 20 {
				fmt.Printf("  ... and %d more\n", len(p.errors)-20)
				break
			}
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Container integrity ──
// The decoded grid must agree with the raw snapshot cell for cell, with the
// Kelvin offset applied to finite values and NaN carried through untouched.

func validateContainer(snap *snapshot.Snapshot, grid *domain.Grid) *phase {
	p := &phase{name: "Phase 1: Container integrity"}

	nt, ny, nx := grid.Shape()
	if want := nt * ny * nx; len(snap.Values) != want {
		p.errorf("snapshot has %d values, grid shape wants %d", len(snap.Values), want)
		return p
	}

	times := grid.Times()
	for t := 1; t < len(times); t++ {
		if !times[t].After(times[t-1]) {
			p.errorf("timestep %d (%s) not after %d (%s)", t, times[t], t-1, times[t-1])
		}
	}

	if grid.Units() != "degC" {
		p.errorf("expected degC after conversion, got %q", grid.Units())
	}

	raw := snap.Values
	conv := grid.Values()
	for i := range raw {
		switch {
		case math.IsNaN(raw[i]) != math.IsNaN(conv[i]):
			p.errorf("value %d: NaN not preserved (raw=%g, converted=%g)", i, raw[i], conv[i])
		case !math.IsNaN(raw[i]) && !floatEq(conv[i], raw[i]-273.15):
			p.errorf("value %d: expected %g-273.15=%g, got %g", i, raw[i], raw[i]-273.15, conv[i])
		}
	}
	return p
}

// ── Phase 2: Climatology invariants ──
// Each monthly mean must match a naive sum/count recomputation, count only
// finite samples, and be NaN exactly when a cell-month was never observed.

func validateClimatology(baseline *domain.Grid, clim *domain.Climatology) *phase {
	p := &phase{name: "Phase 2: Climatology invariants"}

	nt, ny, nx := baseline.Shape()
	times := baseline.Times()

	monthSteps := [12]int{}
	for t := 0; t < nt; t++ {
		monthSteps[int(times[t].Month())-1]++
	}
	for m := time.January; m <= time.December; m++ {
		if got, want := clim.Steps(m), monthSteps[m-1]; got != want {
			p.errorf("%s: Steps reports %d, baseline has %d", m, got, want)
		}
	}

	for m := time.January; m <= time.December; m++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				sum, n := 0.0, 0
				for t := 0; t < nt; t++ {
					if times[t].Month() != m {
						continue
					}
					if v := baseline.At(t, y, x); !math.IsNaN(v) {
						sum += v
						n++
					}
				}
				got := clim.At(m, y, x)
				switch {
				case n == 0 && !math.IsNaN(got):
					p.errorf("%s cell (%d,%d): no samples but mean is %g, want NaN", m, y, x, got)
				case n > 0 && math.IsNaN(got):
					p.errorf("%s cell (%d,%d): %d samples but mean is NaN", m, y, x, n)
				case n > 0 && !closeEnough(got, sum/float64(n)):
					p.errorf("%s cell (%d,%d): running mean %g, naive mean %g", m, y, x, got, sum/float64(n))
				}
			}
		}
	}
	return p
}

// ── Phase 3: Anomaly invariants ──
// Every anomaly is the plain difference against the monthly mean, is NaN
// exactly when either input is, and averages to ~zero over the baseline.

func validateAnomalies(grid *domain.Grid, clim *domain.Climatology, anom, baseline *domain.Grid) *phase {
	p := &phase{name: "Phase 3: Anomaly invariants"}

	nt, ny, nx := grid.Shape()
	times := grid.Times()
	for t := 0; t < nt; t++ {
		m := times[t].Month()
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				v, c, a := grid.At(t, y, x), clim.At(m, y, x), anom.At(t, y, x)
				if math.IsNaN(v) || math.IsNaN(c) {
					if !math.IsNaN(a) {
						p.errorf("t=%d cell (%d,%d): inputs missing but anomaly is %g", t, y, x, a)
					}
					continue
				}
				if !floatEq(a, v-c) {
					p.errorf("t=%d cell (%d,%d): anomaly %g, want %g-%g=%g", t, y, x, a, v, c, v-c)
				}
			}
		}
	}

	// Anomalies of the baseline itself must sum to ~zero per cell-month.
	baseAnom, err := domain.ComputeAnomaly(baseline, clim)
	if err != nil {
		p.errorf("compute baseline anomalies: %v", err)
		return p
	}
	bt, _, _ := baseline.Shape()
	baseTimes := baseline.Times()
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			var sums [12]float64
			var counts [12]int
			for t := 0; t < bt; t++ {
				if a := baseAnom.At(t, y, x); !math.IsNaN(a) {
					m := int(baseTimes[t].Month()) - 1
					sums[m] += a
					counts[m]++
				}
			}
			for m := 0; m < 12; m++ {
				if counts[m] == 0 {
					continue
				}
				if mean := sums[m] / float64(counts[m]); math.Abs(mean) > 1e-6 {
					p.errorf("cell (%d,%d) %s: baseline anomaly mean %g, want ~0", y, x, time.Month(m+1), mean)
				}
			}
		}
	}
	return p
}

// ── Phase 4: Statistics ──
// The summary must account for every value, keep percentiles ordered and
// bounded by min/max, and match a naive mean recomputation; the per-cell
// std map must match a two-pass recomputation and be NaN exactly where the
// estimator is undefined.

func validateStatistics(anom *domain.Grid) *phase {
	p := &phase{name: "Phase 4: Statistics"}

	values := anom.Values()
	stats, err := domain.Summarize(values, nil)
	if err != nil {
		p.errorf("summarize: %v", err)
		return p
	}

	finite, sum := 0, 0.0
	for _, v := range values {
		if !math.IsNaN(v) {
			finite++
			sum += v
		}
	}
	if stats.Count != finite {
		p.errorf("count: reported %d, recomputed %d", stats.Count, finite)
	}
	if stats.Count+stats.Missing != len(values) {
		p.errorf("count %d + missing %d != total %d", stats.Count, stats.Missing, len(values))
	}
	if finite > 0 && !closeEnough(stats.Mean, sum/float64(finite)) {
		p.errorf("mean: reported %g, recomputed %g", stats.Mean, sum/float64(finite))
	}
	if stats.Min > stats.Max {
		p.errorf("min %g > max %g", stats.Min, stats.Max)
	}
	if stats.Count > 1 && (math.IsNaN(stats.Std) || stats.Std < 0) {
		p.errorf("std %g invalid for %d samples", stats.Std, stats.Count)
	}

	prev := stats.Min
	for _, pct := range stats.Percentiles {
		if pct.Value < prev {
			p.errorf("p%g=%g below previous bound %g", pct.Pct, pct.Value, prev)
		}
		prev = pct.Value
	}
	if len(stats.Percentiles) > 0 && prev > stats.Max {
		p.errorf("p%g=%g above max %g", stats.Percentiles[len(stats.Percentiles)-1].Pct, prev, stats.Max)
	}

	std := domain.ReduceStdOverTime(anom)
	nt, ny, nx := anom.Shape()
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			cellSum, n := 0.0, 0
			for t := 0; t < nt; t++ {
				if v := anom.At(t, y, x); !math.IsNaN(v) {
					cellSum += v
					n++
				}
			}
			got := std.At(y, x)
			switch {
			case n < 2 && !math.IsNaN(got):
				p.errorf("std cell (%d,%d): %d samples but std is %g, want NaN", y, x, n, got)
			case n >= 2 && math.IsNaN(got):
				p.errorf("std cell (%d,%d): %d samples but std is NaN", y, x, n)
			case n >= 2:
				mean := cellSum / float64(n)
				m2 := 0.0
				for t := 0; t < nt; t++ {
					if v := anom.At(t, y, x); !math.IsNaN(v) {
						m2 += (v - mean) * (v - mean)
					}
				}
				if want := math.Sqrt(m2 / float64(n-1)); !closeEnough(got, want) {
					p.errorf("std cell (%d,%d): reduction %g, two-pass %g", y, x, got, want)
				}
			}
		}
	}
	return p
}

// ── Helpers ──

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// closeEnough compares two means computed by different summation orders.
func closeEnough(a, b float64) bool {
	return math.Abs(a-b) <= 1e-6*math.Max(1, math.Abs(b))
}
