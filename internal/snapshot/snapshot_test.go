package snapshot

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-anomaly-etl/internal/domain"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		Dataset:  "era5-monthly",
		Variable: "skt",
		Units:    "K",
		Axes: []domain.Axis{
			{Name: "time", Times: []time.Time{
				time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2019, time.February, 1, 0, 0, 0, 0, time.UTC),
			}},
			{Name: "lat", Coords: []float64{10, 0}},
			{Name: "lon", Coords: []float64{100, 110}},
		},
		Values: []float64{280.5, math.NaN(), 290.25, 285, 281, 282, 283, 284},
	}
}

// assertSameValues compares float slices with NaN equal to itself, so missing
// cells count as preserved rather than unequal.
func assertSameValues(t *testing.T, want, got []float64) {
	t.Helper()
	if diff := cmp.Diff(want, got, cmpopts.EquateNaNs()); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, name := range CodecNames() {
		t.Run(name, func(t *testing.T) {
			snap := testSnapshot()
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, snap, name))

			got, err := Read(&buf)

			require.NoError(t, err)
			assert.Equal(t, snap.Dataset, got.Dataset)
			assert.Equal(t, snap.Variable, got.Variable)
			assert.Equal(t, snap.Units, got.Units)
			require.Len(t, got.Axes, 3)
			assert.Equal(t, "time", got.Axes[0].Name)
			assert.Equal(t, snap.Axes[0].Times, got.Axes[0].Times)
			assert.Equal(t, snap.Axes[1].Coords, got.Axes[1].Coords)
			assertSameValues(t, snap.Values, got.Values)
		})
	}
}

func TestWriteUnknownCodec(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, testSnapshot(), "gzip")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "gzip")
}

func TestReadErrors(t *testing.T) {
	// A valid uncompressed snapshot to mutate; "none" keeps byte offsets
	// meaningful all the way into the payload.
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, testSnapshot(), "none"))
	valid := buf.Bytes()

	mutate := func(idx int, b byte) []byte {
		data := make([]byte, len(valid))
		copy(data, valid)
		data[idx] = b
		return data
	}

	t.Run("bad magic", func(t *testing.T) {
		_, err := Read(bytes.NewReader(mutate(0, 'X')))
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("truncated header", func(t *testing.T) {
		_, err := Read(bytes.NewReader(valid[:10]))
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("unknown codec id", func(t *testing.T) {
		_, err := Read(bytes.NewReader(mutate(4, 99)))
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("raw length not multiple of eight", func(t *testing.T) {
		_, err := Read(bytes.NewReader(mutate(12, 7)))
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("raw length exceeds limit", func(t *testing.T) {
		// One flipped byte in the middle of the length field claims a
		// terabyte payload; the read must fail before sizing any buffer.
		_, err := Read(bytes.NewReader(mutate(17, 1)))
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("raw length overflows", func(t *testing.T) {
		// High bit set: the length is negative once truncated to int, which
		// would panic the decompression buffer allocation if it got there.
		_, err := Read(bytes.NewReader(mutate(19, 0x80)))
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("truncated metadata", func(t *testing.T) {
		_, err := Read(bytes.NewReader(valid[:headerSize+2]))
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("malformed metadata", func(t *testing.T) {
		_, err := Read(bytes.NewReader(mutate(headerSize, 'X')))
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("truncated payload", func(t *testing.T) {
		_, err := Read(bytes.NewReader(valid[:len(valid)-8]))
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("corrupted payload", func(t *testing.T) {
		_, err := Read(bytes.NewReader(mutate(len(valid)-1, 0xFF)))
		assert.ErrorIs(t, err, ErrChecksum)
	})
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.snap")
	snap := testSnapshot()

	require.NoError(t, WriteFile(path, snap, "zstd"))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assertSameValues(t, snap.Values, got.Values)

	// The temp file must not survive a successful write.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "absent.snap"))
	assert.Error(t, err)
}

func TestSnapshotGrid(t *testing.T) {
	t.Run("builds a validated grid", func(t *testing.T) {
		snap := testSnapshot()

		g, err := snap.Grid()

		require.NoError(t, err)
		nt, ny, nx := g.Shape()
		assert.Equal(t, 2, nt)
		assert.Equal(t, 2, ny)
		assert.Equal(t, 2, nx)
		assert.Equal(t, "skt", g.Name())
		assert.Equal(t, 280.5, g.At(0, 0, 0))
		assert.True(t, math.IsNaN(g.At(0, 0, 1)))
	})

	t.Run("drops singleton axes from the producer", func(t *testing.T) {
		snap := testSnapshot()
		snap.Axes = append([]domain.Axis{{Name: "number", Coords: []float64{0}}}, snap.Axes...)

		g, err := snap.Grid()

		require.NoError(t, err)
		nt, ny, nx := g.Shape()
		assert.Equal(t, 8, nt*ny*nx)
	})

	t.Run("shape error surfaces", func(t *testing.T) {
		snap := testSnapshot()
		snap.Values = snap.Values[:3]

		_, err := snap.Grid()
		assert.ErrorIs(t, err, domain.ErrShape)
	})
}
