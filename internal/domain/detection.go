package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// Layouts used by the FIRMS CSV acq_date and acq_time columns.
const (
	AcqDateLayout = "2006-01-02"
	acqTimeLayout = "1504"
)

// HotspotDetection is one row of a FIRMS CSV payload after parsing.
// Optional radiometric fields are nil when the column is absent or unparseable;
// defaults are applied in [DeriveMetrics], never here.
type HotspotDetection struct {
	Latitude   float64  `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude  float64  `json:"longitude" validate:"gte=-180,lte=180"`
	AcqDate    string   `json:"acq_date" validate:"required"`
	AcqTime    string   `json:"acq_time" validate:"required,len=4,numeric"` // zero-padded HHMM
	Brightness *float64 `json:"brightness,omitempty"`
	FRP        *float64 `json:"frp,omitempty"`
	Confidence *int     `json:"confidence,omitempty"`
	Satellite  string   `json:"satellite,omitempty"`
	BrightT31  *float64 `json:"bright_t31,omitempty"`
}

// DetectedAt combines the acquisition date and time into a UTC timestamp.
func (d HotspotDetection) DetectedAt() (time.Time, error) {
	t, err := time.ParseInLocation(AcqDateLayout+" "+acqTimeLayout, d.AcqDate+" "+d.AcqTime, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse acquisition time %q %q: %w", d.AcqDate, d.AcqTime, err)
	}
	return t, nil
}

// padAcqTime restores leading zeros dropped by producers that treat acq_time as a number.
func padAcqTime(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || len(s) >= 4 {
		return s
	}
	return strings.Repeat("0", 4-len(s)) + s
}

// BoundingBox is a rectangular lat/lon area, used for the feed query and for
// region classification. Edges are inclusive.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// BoliviaBBox covers the whole national territory.
var BoliviaBBox = BoundingBox{MinLat: -22.9, MinLon: -69.6, MaxLat: -9.7, MaxLon: -57.5}

// Bound converts the box to an orb.Bound (X = longitude, Y = latitude).
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
}

// Contains reports whether the point lies inside the box or on its edge.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return b.Bound().Contains(orb.Point{lon, lat})
}

// String renders the box as "minLat,minLon,maxLat,maxLon", the order embedded in feed URLs.
func (b BoundingBox) String() string {
	return strings.Join([]string{
		formatCoord(b.MinLat), formatCoord(b.MinLon),
		formatCoord(b.MaxLat), formatCoord(b.MaxLon),
	}, ",")
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseBoundingBox parses "minLat,minLon,maxLat,maxLon".
func ParseBoundingBox(s string) (BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BoundingBox{}, fmt.Errorf("bbox must have 4 components, got %d", len(parts))
	}

	var vals [4]float64
	names := [4]string{"minLat", "minLon", "maxLat", "maxLon"}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BoundingBox{}, fmt.Errorf("invalid %s: %w", names[i], err)
		}
		vals[i] = v
	}

	b := BoundingBox{MinLat: vals[0], MinLon: vals[1], MaxLat: vals[2], MaxLon: vals[3]}
	if b.MinLat < -90 || b.MinLat > 90 || b.MaxLat < -90 || b.MaxLat > 90 {
		return BoundingBox{}, fmt.Errorf("latitude out of range [-90, 90]")
	}
	if b.MinLon < -180 || b.MinLon > 180 || b.MaxLon < -180 || b.MaxLon > 180 {
		return BoundingBox{}, fmt.Errorf("longitude out of range [-180, 180]")
	}
	if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
		return BoundingBox{}, fmt.Errorf("minLat must be <= maxLat and minLon must be <= maxLon")
	}
	return b, nil
}
