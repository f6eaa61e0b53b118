package domain

import (
	"context"
	"time"
)

// MatchToleranceDeg is the half-width of the coordinate window used to match
// a detection against existing records.
const MatchToleranceDeg = 0.01

// MatchQuery selects records close enough to a detection to be the same fire:
// both coordinates within ±Tolerance (inclusive) and the same UTC calendar date.
// The window can merge distinct fires less than ~1 km apart; that approximation
// is accepted.
type MatchQuery struct {
	Latitude  float64
	Longitude float64
	Tolerance float64
	Date      time.Time
}

// NewMatchQuery builds a query with the standard tolerance.
func NewMatchQuery(lat, lon float64, detectedAt time.Time) MatchQuery {
	return MatchQuery{
		Latitude:  lat,
		Longitude: lon,
		Tolerance: MatchToleranceDeg,
		Date:      detectedAt,
	}
}

// DayRange returns the half-open UTC interval [start, end) covering the query date.
func (q MatchQuery) DayRange() (time.Time, time.Time) {
	d := q.Date.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// LatRange and LonRange return the inclusive coordinate bounds.
func (q MatchQuery) LatRange() (float64, float64) {
	return q.Latitude - q.Tolerance, q.Latitude + q.Tolerance
}

func (q MatchQuery) LonRange() (float64, float64) {
	return q.Longitude - q.Tolerance, q.Longitude + q.Tolerance
}

// Matches evaluates the query against a record in memory.
func (q MatchQuery) Matches(r WildfireRecord) bool {
	minLat, maxLat := q.LatRange()
	minLon, maxLon := q.LonRange()
	if r.Latitude < minLat || r.Latitude > maxLat {
		return false
	}
	if r.Longitude < minLon || r.Longitude > maxLon {
		return false
	}
	start, end := q.DayRange()
	t := r.DetectedAt.UTC()
	return !t.Before(start) && t.Before(end)
}

// RecordRepository persists wildfire records. The reconciler owns the
// create-vs-update decision; the repository only finds and writes.
type RecordRepository interface {
	// FindMatch returns the first record satisfying q in store order.
	FindMatch(ctx context.Context, q MatchQuery) (WildfireRecord, bool, error)
	// UpsertRecord inserts the record, or replaces the stored one with the same ID.
	UpsertRecord(ctx context.Context, r WildfireRecord) error
	// CountRecords counts all records, or only those with the given status when non-empty.
	CountRecords(ctx context.Context, status Status) (int, error)
	// LatestDetection returns the most recent DetectedAt in the store.
	LatestDetection(ctx context.Context) (time.Time, bool, error)
}

// RegionRepository persists regions keyed by name.
type RegionRepository interface {
	FindRegion(ctx context.Context, name string) (Region, bool, error)
	// UpsertRegion inserts the region if its name is new and returns the stored row.
	UpsertRegion(ctx context.Context, r Region) (Region, error)
}
