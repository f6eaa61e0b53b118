// Package postgres persists wildfire records and regions in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/wildfire-etl/internal/domain"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	recordsTable = "wildfire_records"
	regionsTable = "regions"
)

var recordColumns = []string{
	"r.id", "r.name", "r.detected_at", "r.latitude", "r.longitude",
	"r.intensity", "r.severity", "r.area_ha", "r.confidence",
	"r.satellite", "r.source_name", "r.status", "r.brightness_temp",
	"r.place_name", "r.updated_at",
	"g.id", "g.name", "g.code", "g.capital", "g.area_km2",
}

var regionColumns = []string{"id", "name", "code", "capital", "area_km2"}

// Store implements domain.RecordRepository and domain.RegionRepository on a pgx pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Connect opens a pool and verifies the connection.
func Connect(ctx context.Context, url string, logger *slog.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Close releases all pooled connections.
func (s *Store) Close() { s.pool.Close() }

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// FindMatch returns the oldest stored record inside the query window.
func (s *Store) FindMatch(ctx context.Context, q domain.MatchQuery) (domain.WildfireRecord, bool, error) {
	query, args := findMatchQuery(q)
	rec, err := scanRecord(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.WildfireRecord{}, false, nil
	}
	if err != nil {
		return domain.WildfireRecord{}, false, fmt.Errorf("find matching record: %w", err)
	}
	return rec, true, nil
}

func findMatchQuery(q domain.MatchQuery) (string, []any) {
	minLat, maxLat := q.LatRange()
	minLon, maxLon := q.LonRange()
	dayStart, dayEnd := q.DayRange()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(recordColumns...)
	sb.From(recordsTable + " r")
	sb.JoinWithOption(sqlbuilder.LeftJoin, regionsTable+" g", "g.id = r.region_id")
	sb.Where(
		sb.Between("r.latitude", minLat, maxLat),
		sb.Between("r.longitude", minLon, maxLon),
		sb.GreaterEqualThan("r.detected_at", dayStart),
		sb.LessThan("r.detected_at", dayEnd),
	)
	sb.OrderBy("r.created_at", "r.id")
	sb.Limit(1)
	return sb.Build()
}

// UpsertRecord inserts the record or overwrites the row with the same ID.
// created_at is never touched on update, so store order stays stable.
func (s *Store) UpsertRecord(ctx context.Context, r domain.WildfireRecord) error {
	var regionID *int64
	if r.Region != nil && r.Region.ID != 0 {
		regionID = &r.Region.ID
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(recordsTable)
	ib.Cols("id", "name", "detected_at", "latitude", "longitude", "region_id",
		"intensity", "severity", "area_ha", "confidence", "satellite", "source_name",
		"status", "brightness_temp", "place_name", "updated_at")
	ib.Values(r.ID.String(), r.Name, r.DetectedAt.UTC(), r.Latitude, r.Longitude, regionID,
		r.Intensity, string(r.Severity), r.AreaHa, r.Confidence, r.Satellite, r.SourceName,
		string(r.Status), r.BrightnessTemp, r.PlaceName, r.UpdatedAt.UTC())

	query, args := ib.Build()
	query += ` ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		detected_at = EXCLUDED.detected_at,
		latitude = EXCLUDED.latitude,
		longitude = EXCLUDED.longitude,
		region_id = EXCLUDED.region_id,
		intensity = EXCLUDED.intensity,
		severity = EXCLUDED.severity,
		area_ha = EXCLUDED.area_ha,
		confidence = EXCLUDED.confidence,
		satellite = EXCLUDED.satellite,
		source_name = EXCLUDED.source_name,
		status = EXCLUDED.status,
		brightness_temp = EXCLUDED.brightness_temp,
		place_name = EXCLUDED.place_name,
		updated_at = EXCLUDED.updated_at`

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert record %s: %w", r.ID, err)
	}
	return nil
}

func (s *Store) CountRecords(ctx context.Context, status domain.Status) (int, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From(recordsTable)
	if status != "" {
		sb.Where(sb.Equal("status", string(status)))
	}

	query, args := sb.Build()
	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

func (s *Store) LatestDetection(ctx context.Context) (time.Time, bool, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("MAX(detected_at)")
	sb.From(recordsTable)

	query, args := sb.Build()
	var latest *time.Time
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&latest); err != nil {
		return time.Time{}, false, fmt.Errorf("latest detection: %w", err)
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return latest.UTC(), true, nil
}

func (s *Store) FindRegion(ctx context.Context, name string) (domain.Region, bool, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(regionColumns...)
	sb.From(regionsTable)
	sb.Where(sb.Equal("name", name))

	query, args := sb.Build()
	var r domain.Region
	err := s.pool.QueryRow(ctx, query, args...).Scan(&r.ID, &r.Name, &r.Code, &r.Capital, &r.AreaKm2)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Region{}, false, nil
	}
	if err != nil {
		return domain.Region{}, false, fmt.Errorf("find region %q: %w", name, err)
	}
	return r, true, nil
}

// UpsertRegion inserts the region if new. An existing row wins: its code and
// metadata are returned untouched.
func (s *Store) UpsertRegion(ctx context.Context, r domain.Region) (domain.Region, error) {
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(regionsTable)
	ib.Cols("name", "code", "capital", "area_km2")
	ib.Values(r.Name, r.Code, r.Capital, r.AreaKm2)

	query, args := ib.Build()
	query += " ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name RETURNING id, name, code, capital, area_km2"

	var out domain.Region
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&out.ID, &out.Name, &out.Code, &out.Capital, &out.AreaKm2); err != nil {
		return domain.Region{}, fmt.Errorf("upsert region %q: %w", r.Name, err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (domain.WildfireRecord, error) {
	var (
		rec                       domain.WildfireRecord
		id                        string
		severity, status          string
		regionID                  *int64
		regionName, code, capital *string
		areaKm2                   *float64
	)
	err := row.Scan(
		&id, &rec.Name, &rec.DetectedAt, &rec.Latitude, &rec.Longitude,
		&rec.Intensity, &severity, &rec.AreaHa, &rec.Confidence,
		&rec.Satellite, &rec.SourceName, &status, &rec.BrightnessTemp,
		&rec.PlaceName, &rec.UpdatedAt,
		&regionID, &regionName, &code, &capital, &areaKm2,
	)
	if err != nil {
		return domain.WildfireRecord{}, err
	}

	rec.ID, err = uuid.Parse(id)
	if err != nil {
		return domain.WildfireRecord{}, fmt.Errorf("parse record id: %w", err)
	}
	rec.Severity = domain.Severity(severity)
	rec.Status = domain.Status(status)
	rec.DetectedAt = rec.DetectedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()

	if regionID != nil {
		rec.Region = &domain.Region{ID: *regionID}
		if regionName != nil {
			rec.Region.Name = *regionName
		}
		if code != nil {
			rec.Region.Code = *code
		}
		if capital != nil {
			rec.Region.Capital = *capital
		}
		if areaKm2 != nil {
			rec.Region.AreaKm2 = *areaKm2
		}
	}
	return rec, nil
}
