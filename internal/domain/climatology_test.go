package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeClimatology(t *testing.T) {
	t.Run("constant field", func(t *testing.T) {
		values := make([]float64, 24)
		for i := range values {
			values[i] = 5.0
		}
		g := newTestGrid(t, monthlies(2019, time.January, 24), []float64{0}, []float64{0}, values)

		c, err := ComputeClimatology(g)

		require.NoError(t, err)
		for m := time.January; m <= time.December; m++ {
			assert.Equal(t, 5.0, c.At(m, 0, 0))
			assert.Equal(t, 2, c.Steps(m))
		}
	})

	t.Run("repeating seasonal cycle", func(t *testing.T) {
		// Two full years of a cycle that repeats every four months. Twelve is
		// divisible by four, so each calendar month sees the same value in
		// both years and the monthly mean must reproduce the cycle exactly.
		cycle := []float64{0, 10, 20, 10}
		values := make([]float64, 24)
		for i := range values {
			values[i] = cycle[i%4]
		}
		g := newTestGrid(t, monthlies(2019, time.January, 24), []float64{0}, []float64{0}, values)

		c, err := ComputeClimatology(g)

		require.NoError(t, err)
		for m := time.January; m <= time.December; m++ {
			assert.Equal(t, cycle[(int(m)-1)%4], c.At(m, 0, 0), "month %s", m)
		}
	})

	t.Run("bucket means average across years", func(t *testing.T) {
		g := newTestGrid(t, monthlies(2019, time.January, 24), []float64{0}, []float64{0},
			rampWithJanuaries(24, 10, 14))

		c, err := ComputeClimatology(g)

		require.NoError(t, err)
		assert.Equal(t, 12.0, c.At(time.January, 0, 0))
	})

	t.Run("missing sample excluded from bucket", func(t *testing.T) {
		// January 2020 is missing for this cell; its January normal is the
		// mean of the remaining finite Januaries, not of a fabricated zero.
		values := rampWithJanuaries(24, 10, math.NaN())
		g := newTestGrid(t, monthlies(2019, time.January, 24), []float64{0}, []float64{0}, values)

		c, err := ComputeClimatology(g)

		require.NoError(t, err)
		assert.Equal(t, 10.0, c.At(time.January, 0, 0))
		assert.Equal(t, 2, c.Steps(time.January), "steps count timesteps, not finite cells")
	})

	t.Run("never-observed cell is NaN", func(t *testing.T) {
		// Second cell is NaN at every timestep.
		values := []float64{1, math.NaN(), 3, math.NaN()}
		g := newTestGrid(t, monthlies(2019, time.January, 2), []float64{0}, []float64{100, 110}, values)

		c, err := ComputeClimatology(g)

		require.NoError(t, err)
		assert.Equal(t, 1.0, c.At(time.January, 0, 0))
		assert.True(t, math.IsNaN(c.At(time.January, 0, 1)))
		assert.True(t, math.IsNaN(c.At(time.February, 0, 1)))
	})

	t.Run("partial year", func(t *testing.T) {
		g := newTestGrid(t, monthlies(2019, time.March, 3), []float64{0}, []float64{0}, []float64{1, 2, 3})

		c, err := ComputeClimatology(g)

		require.NoError(t, err)
		assert.Equal(t, 1.0, c.At(time.March, 0, 0))
		assert.Equal(t, 1, c.Steps(time.March))
		assert.Equal(t, 0, c.Steps(time.January))
		assert.True(t, math.IsNaN(c.At(time.January, 0, 0)))
	})

	t.Run("large magnitude offset", func(t *testing.T) {
		// 50 years of Januaries alternating around a large offset. The
		// running-mean update must recover the 0.5 midpoint without drift.
		const years = 50
		values := make([]float64, years*12)
		times := monthlies(1970, time.January, years*12)
		for i := range values {
			values[i] = 1e8 + float64((i/12)%2)
		}
		g := newTestGrid(t, times, []float64{0}, []float64{0}, values)

		c, err := ComputeClimatology(g)

		require.NoError(t, err)
		assert.InDelta(t, 1e8+0.5, c.At(time.January, 0, 0), 1e-6)
		assert.Equal(t, years, c.Steps(time.January))
	})

	t.Run("metadata carried over", func(t *testing.T) {
		g := newTestGrid(t, monthlies(2019, time.January, 1), []float64{10, 0}, []float64{100}, []float64{1, 2})

		c, err := ComputeClimatology(g)

		require.NoError(t, err)
		assert.Equal(t, "skt", c.Name())
		assert.Equal(t, "K", c.Units())
		ny, nx := c.Shape()
		assert.Equal(t, 2, ny)
		assert.Equal(t, 1, nx)
		assert.Equal(t, []float64{10, 0}, c.Lats())
	})
}

func TestMonthField(t *testing.T) {
	g := newTestGrid(t, monthlies(2019, time.January, 12), []float64{0}, []float64{100, 110},
		rampPlane(12, 2))
	c, err := ComputeClimatology(g)
	require.NoError(t, err)

	t.Run("valid month", func(t *testing.T) {
		f, err := c.MonthField(time.March)

		require.NoError(t, err)
		assert.Contains(t, f.Name, "March")
		ny, nx := f.Shape()
		assert.Equal(t, 1, ny)
		assert.Equal(t, 2, nx)
		assert.Equal(t, c.At(time.March, 0, 0), f.At(0, 0))
	})

	t.Run("month out of range", func(t *testing.T) {
		_, err := c.MonthField(time.Month(13))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

// rampWithJanuaries builds a 1x1 monthly series of zeros where the first
// January is jan1 and the second is jan2.
func rampWithJanuaries(n int, jan1, jan2 float64) []float64 {
	values := make([]float64, n)
	values[0] = jan1
	if n > 12 {
		values[12] = jan2
	}
	return values
}

// rampPlane builds nt timesteps of a plane-sized ramp 0..plane-1.
func rampPlane(nt, plane int) []float64 {
	values := make([]float64, nt*plane)
	for t := 0; t < nt; t++ {
		for i := 0; i < plane; i++ {
			values[t*plane+i] = float64(i)
		}
	}
	return values
}
