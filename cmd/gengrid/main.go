// Command gengrid generates a synthetic monthly skin-temperature snapshot for
// local development and testing. The field combines a latitude gradient, a
// hemisphere-phased seasonal cycle, a slow warming trend, seeded noise, and a
// permanent missing-data mask, so every pipeline code path sees realistic
// input without an ERA5 download.
//
// Usage:
//
//	go run ./cmd/gengrid -out data/era5_skt.snap
//	go run ./cmd/gengrid -serve :8081
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/couchcryptid/climate-anomaly-etl/internal/domain"
	"github.com/couchcryptid/climate-anomaly-etl/internal/snapshot"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output snapshot path")
	serve := flag.String("serve", "", "serve the snapshot over HTTP on this address instead of the real grid service")
	dataset := flag.String("dataset", "era5-monthly", "dataset name")
	variable := flag.String("variable", "skt", "variable name")
	startYear := flag.Int("start-year", 1990, "first calendar year")
	years := flag.Int("years", 35, "number of years to generate")
	nlat := flag.Int("nlat", 73, "latitude cells (73 = 2.5 degree grid)")
	nlon := flag.Int("nlon", 144, "longitude cells (144 = 2.5 degree grid)")
	codec := flag.String("codec", "zstd", "snapshot compression codec")
	seed := flag.Int64("seed", 42, "noise seed")
	flag.Parse()

	if *out == "" && *serve == "" {
		flag.Usage()
		return fmt.Errorf("nothing to do: provide -out or -serve")
	}
	if !snapshot.KnownCodec(*codec) {
		return fmt.Errorf("unknown codec %q (known: %v)", *codec, snapshot.CodecNames())
	}

	snap := buildSnapshot(*dataset, *variable, *startYear, *years, *nlat, *nlon, *seed)
	missing := 0
	for _, v := range snap.Values {
		if math.IsNaN(v) {
			missing++
		}
	}
	log.Printf("generated %s/%s: %d timesteps, %dx%d grid, %d values (%.1f%% missing)",
		*dataset, *variable, *years*12, *nlat, *nlon, len(snap.Values),
		100*float64(missing)/float64(len(snap.Values)))

	if *out != "" {
		if err := snapshot.WriteFile(*out, snap, *codec); err != nil {
			return fmt.Errorf("writing snapshot: %w", err)
		}
		log.Printf("wrote snapshot: %s (codec=%s)", *out, *codec)
	}

	if *serve != "" {
		return serveSnapshot(*serve, snap, *codec)
	}
	return nil
}

// buildSnapshot assembles the synthetic grid. The leading singleton "number"
// axis mirrors the ensemble dimension reanalysis extracts carry.
func buildSnapshot(dataset, variable string, startYear, years, nlat, nlon int, seed int64) *snapshot.Snapshot {
	rng := rand.New(rand.NewSource(seed))

	lats := make([]float64, nlat)
	for i := range lats {
		lats[i] = 90 - 180*float64(i)/float64(nlat-1)
	}
	lons := make([]float64, nlon)
	for i := range lons {
		lons[i] = 360 * float64(i) / float64(nlon)
	}

	nt := years * 12
	times := make([]time.Time, nt)
	for t := range times {
		times[t] = time.Date(startYear, time.January+time.Month(t), 1, 0, 0, 0, 0, time.UTC)
	}

	// A permanent per-cell mask stands in for unobserved regions.
	masked := make([]bool, nlat*nlon)
	for i := range masked {
		masked[i] = rng.Float64() < 0.02
	}

	values := make([]float64, nt*nlat*nlon)
	for t := 0; t < nt; t++ {
		year := startYear + t/12
		month := t%12 + 1
		for y := 0; y < nlat; y++ {
			for x := 0; x < nlon; x++ {
				idx := (t*nlat+y)*nlon + x
				if masked[y*nlon+x] || rng.Float64() < 0.001 {
					values[idx] = math.NaN()
					continue
				}
				values[idx] = cellValue(rng, lats[y], lons[x], year-startYear, month)
			}
		}
	}

	return &snapshot.Snapshot{
		Dataset:  dataset,
		Variable: variable,
		Units:    "K",
		Axes: []domain.Axis{
			{Name: "number", Coords: []float64{0}},
			{Name: "time", Times: times},
			{Name: "latitude", Coords: lats},
			{Name: "longitude", Coords: lons},
		},
		Values: values,
	}
}

// cellValue models monthly skin temperature in Kelvin: warm equator, cold
// poles, a seasonal cycle that flips phase across the equator and grows with
// latitude, a 0.2 K/decade trend, and weather noise.
func cellValue(rng *rand.Rand, lat, lon float64, yearsIn int, month int) float64 {
	frac := math.Abs(lat) / 90
	base := 288.15 - 30*frac*frac
	base += 2 * math.Sin(3*2*math.Pi*lon/360)

	amp := 2 + 18*frac
	phase := math.Cos(2 * math.Pi * float64(month-7) / 12)
	if lat < 0 {
		phase = -phase
	}

	trend := 0.02 * float64(yearsIn)
	noise := rng.NormFloat64() * 0.5

	return base + amp*phase + trend + noise
}

// serveSnapshot exposes the snapshot the way the grid service does, so the
// pipeline can run end to end against this binary.
func serveSnapshot(addr string, snap *snapshot.Snapshot, codec string) error {
	mux := http.NewServeMux()
	route := fmt.Sprintf("GET /v1/grids/%s/%s/latest", snap.Dataset, snap.Variable)
	mux.HandleFunc(route, func(w http.ResponseWriter, _ *http.Request) {
		if err := snapshot.Write(w, snap, codec); err != nil {
			log.Printf("serve snapshot: %v", err)
		}
	})

	log.Printf("serving %s/%s on %s", snap.Dataset, snap.Variable, addr)
	return http.ListenAndServe(addr, mux)
}
