// Command genmock writes a synthetic FIRMS area CSV with detections in every
// department, for local runs against a stub feed and for refreshing test
// fixtures. It classifies and derives each generated row with the real domain
// package and prints the resulting breakdown.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock/firms_bolivia.csv -per-region 5 -date 2024-09-01
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/wildfire-etl/internal/domain"
)

// Column order of the FIRMS MODIS area API.
var header = []string{
	"latitude", "longitude", "brightness", "scan", "track", "acq_date", "acq_time",
	"satellite", "instrument", "confidence", "version", "bright_t31", "frp", "daynight",
}

const maxSamples = 10000

type options struct {
	perRegion int
	date      time.Time
	seed      uint64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the generated CSV")
	perRegion := flag.Int("per-region", 5, "detections generated per department")
	date := flag.String("date", "2024-09-01", "acquisition date (YYYY-MM-DD)")
	seed := flag.Uint64("seed", 1, "random seed for reproducible output")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *perRegion < 1 {
		return fmt.Errorf("-per-region must be at least 1")
	}
	day, err := time.Parse(domain.AcqDateLayout, *date)
	if err != nil {
		return fmt.Errorf("invalid -date: %w", err)
	}

	table := domain.DefaultRegionTable()
	rows, err := generate(table, options{perRegion: *perRegion, date: day, seed: *seed})
	if err != nil {
		return err
	}

	if err := writeCSV(*out, rows); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote %d detections to %s", len(rows), *out)

	data, err := os.ReadFile(*out)
	if err != nil {
		return err
	}
	detections, err := domain.ParseFeed(string(data))
	if err != nil {
		return fmt.Errorf("generated feed does not parse: %w", err)
	}
	printStats(table, detections)
	return nil
}

// generate samples points inside each department box until the table
// classifies them as that department, so boxes shadowed by earlier entries
// still receive their share of detections.
func generate(table domain.RegionTable, opts options) ([][]string, error) {
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))

	var rows [][]string //nolint:prealloc // row count depends on sampling
	for _, region := range table.Entries() {
		for i := 0; i < opts.perRegion; i++ {
			lat, lon, err := samplePoint(rng, table, region)
			if err != nil {
				return nil, err
			}
			rows = append(rows, detectionRow(rng, lat, lon, opts.date))
		}
	}
	return rows, nil
}

func samplePoint(rng *rand.Rand, table domain.RegionTable, region domain.RegionBounds) (float64, float64, error) {
	box := region.Box
	for range maxSamples {
		lat := round(box.MinLat+rng.Float64()*(box.MaxLat-box.MinLat), 4)
		lon := round(box.MinLon+rng.Float64()*(box.MaxLon-box.MinLon), 4)
		if got, ok := table.Locate(lat, lon); ok && got.Name == region.Name {
			return lat, lon, nil
		}
	}
	return 0, 0, fmt.Errorf("no point classifies as %s after %d samples", region.Name, maxSamples)
}

func detectionRow(rng *rand.Rand, lat, lon float64, day time.Time) []string {
	satellite, daynight := "Terra", "D"
	if rng.IntN(2) == 1 {
		satellite = "Aqua"
	}
	minute := rng.IntN(24 * 60)
	if minute < 6*60 || minute >= 19*60 {
		daynight = "N"
	}

	return []string{
		formatFloat(lat, 4),
		formatFloat(lon, 4),
		formatFloat(300+rng.Float64()*220, 1), // spans every severity tier
		formatFloat(1+rng.Float64()*0.8, 1),
		formatFloat(1+rng.Float64()*0.5, 1),
		day.Format(domain.AcqDateLayout),
		fmt.Sprintf("%02d%02d", minute/60, minute%60),
		satellite,
		"MODIS",
		strconv.Itoa(rng.IntN(101)),
		"6.1NRT",
		formatFloat(270+rng.Float64()*40, 1),
		formatFloat(rng.Float64()*80, 1),
		daynight,
	}
}

func writeCSV(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}

func printStats(table domain.RegionTable, detections []domain.HotspotDetection) {
	regionCounts := map[string]int{}
	severityCounts := map[domain.Severity]int{}
	for _, d := range detections {
		name := "Desconocido"
		if r, ok := table.Locate(d.Latitude, d.Longitude); ok {
			name = r.Name
		}
		regionCounts[name]++
		severityCounts[domain.DeriveMetrics(d).Severity]++
	}

	names := make([]string, 0, len(regionCounts))
	for n := range regionCounts {
		names = append(names, n)
	}
	sort.Strings(names)

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total: %d\n", len(detections))
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", n, regionCounts[n]))
	}
	fmt.Printf("By region: %s\n", strings.Join(parts, ", "))
	fmt.Printf("By severity: low=%d, medium=%d, high=%d, critical=%d\n",
		severityCounts[domain.SeverityLow], severityCounts[domain.SeverityMedium],
		severityCounts[domain.SeverityHigh], severityCounts[domain.SeverityCritical])
}

func round(v float64, places int) float64 {
	f, _ := strconv.ParseFloat(formatFloat(v, places), 64)
	return f
}

func formatFloat(v float64, places int) string {
	return strconv.FormatFloat(v, 'f', places, 64)
}
