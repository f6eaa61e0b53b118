// Package app wires configuration into a ready-to-run ingestion pipeline.
// Both the service binary and the one-shot CLI build their stages here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/wildfire-etl/internal/adapter/firms"
	kafkaadapter "github.com/couchcryptid/wildfire-etl/internal/adapter/kafka"
	"github.com/couchcryptid/wildfire-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/wildfire-etl/internal/config"
	"github.com/couchcryptid/wildfire-etl/internal/domain"
	"github.com/couchcryptid/wildfire-etl/internal/observability"
	"github.com/couchcryptid/wildfire-etl/internal/pipeline"
	"github.com/couchcryptid/wildfire-etl/internal/store/memory"
	"github.com/couchcryptid/wildfire-etl/internal/store/postgres"
)

// store is what the pipeline needs from a persistence backend.
type store interface {
	domain.RecordRepository
	domain.RegionRepository
}

// App owns the pipeline and every resource that must be released on shutdown.
type App struct {
	Pipeline *pipeline.Pipeline

	db     *postgres.Store
	writer *kafkaadapter.Writer
}

// New builds the pipeline from cfg. With DATABASE_URL set, records go to
// PostgreSQL (migrated on startup); otherwise they live in memory for the
// lifetime of the process.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*App, error) {
	a := &App{}

	var records store
	if cfg.DatabaseURL != "" {
		db, err := postgres.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		a.db = db
		records = db
		logger.Info("using postgres store")
	} else {
		records = memory.New()
		logger.Warn("DATABASE_URL not set, records are kept in memory only")
	}

	feed := firms.NewClient(cfg.FIRMSAPIKey, cfg.FIRMSBaseURL, cfg.FIRMSTimeout, metrics, logger)
	if !feed.HasAPIKey() {
		logger.Warn("NASA_FIRMS_API_KEY not set, updates will fail until it is configured")
	}

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		cached, err := mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		if err != nil {
			a.Close() //nolint:errcheck // already failing
			return nil, err
		}
		geocoder = cached
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	var loader pipeline.ChangeLoader
	if cfg.KafkaEnabled() {
		a.writer = kafkaadapter.NewWriter(cfg, logger)
		loader = a.writer
		logger.Info("publishing record changes", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	a.Pipeline = pipeline.New(pipeline.Stages{
		Feed:       feed,
		Records:    records,
		Regions:    pipeline.NewRegionResolver(domain.DefaultRegionTable(), records, metrics),
		Reconciler: pipeline.NewReconciler(records, geocoder, logger),
		Loader:     loader,
	}, pipeline.Defaults{
		BBox:   cfg.FIRMSBBox,
		Days:   cfg.FIRMSLookbackDays,
		Source: cfg.FIRMSSource,
	}, logger, metrics)

	return a, nil
}

// CheckReadiness requires a completed run and, when configured, a reachable database.
func (a *App) CheckReadiness(ctx context.Context) error {
	if err := a.Pipeline.CheckReadiness(ctx); err != nil {
		return err
	}
	if a.db != nil {
		if err := a.db.Ping(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	return nil
}

// Close flushes the change writer and releases the database pool.
func (a *App) Close() error {
	var errs []error
	if a.writer != nil {
		if err := a.writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka writer close: %w", err))
		}
	}
	if a.db != nil {
		a.db.Close()
	}
	return errors.Join(errs...)
}
