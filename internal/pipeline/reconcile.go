package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/wildfire-etl/internal/domain"
	"github.com/google/uuid"
)

// Outcome reports what the reconciler did with one detection.
type Outcome struct {
	Action domain.ChangeAction
	Record domain.WildfireRecord
}

// Created reports whether a new record was inserted.
func (o Outcome) Created() bool { return o.Action == domain.ActionCreated }

// Reconciler decides whether a detection refreshes an existing record or
// becomes a new one.
type Reconciler struct {
	records  domain.RecordRepository
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// NewReconciler creates a reconciler. geocoder may be nil.
func NewReconciler(records domain.RecordRepository, geocoder domain.Geocoder, logger *slog.Logger) *Reconciler {
	return &Reconciler{records: records, geocoder: geocoder, logger: logger}
}

// Reconcile matches det against stored records (±0.01° on both axes, same UTC
// date) and either updates the first match or creates a record.
//
// An update only refreshes intensity, severity, area, and the update
// timestamp; name and detection time stay as first recorded.
// Failures come back as *domain.RowError.
func (r *Reconciler) Reconcile(ctx context.Context, det domain.HotspotDetection, derived domain.DerivedMetrics, region *domain.Region) (Outcome, error) {
	detectedAt, err := det.DetectedAt()
	if err != nil {
		return Outcome{}, rowError("derive", det, err)
	}

	existing, found, err := r.records.FindMatch(ctx, domain.NewMatchQuery(det.Latitude, det.Longitude, detectedAt))
	if err != nil {
		return Outcome{}, rowError("match", det, err)
	}

	now := domain.Now()

	if found {
		existing.Intensity = derived.Intensity
		existing.Severity = derived.Severity
		existing.AreaHa = derived.AreaHa
		existing.UpdatedAt = now
		if err := r.records.UpsertRecord(ctx, existing); err != nil {
			return Outcome{}, rowError("save", det, err)
		}
		return Outcome{Action: domain.ActionUpdated, Record: existing}, nil
	}

	rec := newRecord(det, derived, region, detectedAt, now)
	rec = domain.EnrichWithPlace(ctx, rec, r.geocoder, r.logger)
	if err := r.records.UpsertRecord(ctx, rec); err != nil {
		return Outcome{}, rowError("save", det, err)
	}
	return Outcome{Action: domain.ActionCreated, Record: rec}, nil
}

func newRecord(det domain.HotspotDetection, derived domain.DerivedMetrics, region *domain.Region, detectedAt, now time.Time) domain.WildfireRecord {
	satellite := det.Satellite
	if satellite == "" {
		satellite = domain.DefaultSatellite
	}
	return domain.WildfireRecord{
		ID:             uuid.New(),
		Name:           domain.RecordName(region, detectedAt),
		DetectedAt:     detectedAt,
		Latitude:       det.Latitude,
		Longitude:      det.Longitude,
		Region:         region,
		Intensity:      derived.Intensity,
		Severity:       derived.Severity,
		AreaHa:         derived.AreaHa,
		Confidence:     derived.Confidence,
		Satellite:      satellite,
		SourceName:     domain.DefaultSourceName,
		Status:         domain.StatusActive,
		BrightnessTemp: det.BrightT31,
		UpdatedAt:      now,
	}
}

func rowError(stage string, det domain.HotspotDetection, err error) *domain.RowError {
	return &domain.RowError{Stage: stage, Latitude: det.Latitude, Longitude: det.Longitude, Err: err}
}
