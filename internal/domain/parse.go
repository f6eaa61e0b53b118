package domain

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Columns that must be present in every FIRMS payload.
var requiredColumns = []string{"latitude", "longitude", "acq_date", "acq_time"}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseFeed turns raw FIRMS CSV text into detections. Malformed content never
// fails the call: bad lines and rows are dropped. The only error returned is a
// *SchemaError when a mandatory column is missing, in which case the batch is
// discarded and the returned slice is empty.
func ParseFeed(raw string) ([]HotspotDetection, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	header, rows, err := readStrict(raw)
	if err != nil {
		// Structural error somewhere in the payload: skip bad lines instead of aborting.
		header, rows = readLenient(raw)
	}

	cols := indexColumns(header)
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing, Available: normalizeHeader(header)}
	}

	detections := make([]HotspotDetection, 0, len(rows))
	for _, row := range rows {
		det, ok := buildDetection(row, cols)
		if !ok {
			continue
		}
		detections = append(detections, det)
	}
	return detections, nil
}

// readStrict parses the whole payload, requiring every record to match the header width.
func readStrict(raw string) ([]string, [][]string, error) {
	r := csv.NewReader(strings.NewReader(raw))
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}

// readLenient parses line by line and skips any line that fails to parse or
// has a different number of fields than the header.
func readLenient(raw string) ([]string, [][]string) {
	lines := strings.Split(raw, "\n")

	var header []string
	var rows [][]string
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := parseLine(line)
		if err != nil {
			continue
		}
		if header == nil {
			header = rec
			continue
		}
		if len(rec) != len(header) {
			continue
		}
		rows = append(rows, rec)
	}
	return header, rows
}

func parseLine(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.TrimLeadingSpace = true
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	rec, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty line")
	}
	return rec, err
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		out[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return out
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range normalizeHeader(header) {
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	return cols
}

// buildDetection maps one CSV row onto a HotspotDetection. Rows without usable
// coordinates, or failing range validation, are rejected.
func buildDetection(row []string, cols map[string]int) (HotspotDetection, bool) {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	lat, ok := parseFloat(get("latitude"))
	if !ok {
		return HotspotDetection{}, false
	}
	lon, ok := parseFloat(get("longitude"))
	if !ok {
		return HotspotDetection{}, false
	}

	det := HotspotDetection{
		Latitude:   lat,
		Longitude:  lon,
		AcqDate:    get("acq_date"),
		AcqTime:    padAcqTime(get("acq_time")),
		Brightness: parseOptionalFloat(get("brightness")),
		FRP:        parseOptionalFloat(get("frp")),
		Confidence: parseConfidence(get("confidence")),
		Satellite:  get("satellite"),
		BrightT31:  parseOptionalFloat(get("bright_t31")),
	}

	if err := validate.Struct(det); err != nil {
		return HotspotDetection{}, false
	}
	return det, true
}

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseOptionalFloat(s string) *float64 {
	v, ok := parseFloat(s)
	if !ok {
		return nil
	}
	return &v
}

// parseConfidence accepts "85" and "85.0". VIIRS letter codes ("l", "n", "h")
// and values outside 0–100 yield nil.
func parseConfidence(s string) *int {
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		f, ok := parseFloat(s)
		if !ok {
			return nil
		}
		v = int(math.Round(f))
	}
	if v < 0 || v > 100 {
		return nil
	}
	return &v
}
