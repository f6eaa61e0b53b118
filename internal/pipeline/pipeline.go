package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/wildfire-etl/internal/domain"
	"github.com/couchcryptid/wildfire-etl/internal/observability"
)

// FeedFetcher downloads raw detection CSV for an area.
type FeedFetcher interface {
	Fetch(ctx context.Context, bbox domain.BoundingBox, days int, source string) (string, error)
	HasAPIKey() bool
}

// ChangeLoader publishes the record changes of a run downstream.
type ChangeLoader interface {
	LoadBatch(ctx context.Context, changes []domain.RecordChange) error
}

// RunOptions selects the feed window for one run. Zero values fall back to
// the pipeline defaults.
type RunOptions struct {
	Days   int
	Source string
}

// Defaults are the feed parameters used when a caller does not override them.
type Defaults struct {
	BBox   domain.BoundingBox
	Days   int
	Source string
}

// Stages groups the collaborators of a pipeline. Loader is optional.
type Stages struct {
	Feed       FeedFetcher
	Records    domain.RecordRepository
	Regions    *RegionResolver
	Reconciler *Reconciler
	Loader     ChangeLoader
}

// Pipeline orchestrates fetch, parse, classify, derive, and reconcile.
type Pipeline struct {
	stages   Stages
	defaults Defaults
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(stages Stages, defaults Defaults, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		stages:   stages,
		defaults: defaults,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once a run has completed, or an error describing
// why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no ingestion run has completed yet")
	}
	return nil
}

// Run performs one complete ingestion and reports what changed.
//
// Transport, schema, and per-row failures are logged and absorbed. The only
// errors returned are *domain.AuthError, a cancelled context, and store
// failures while counting totals.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (domain.RunSummary, error) {
	if opts.Days == 0 {
		opts.Days = p.defaults.Days
	}
	if opts.Source == "" {
		opts.Source = p.defaults.Source
	}

	start := time.Now()
	p.metrics.PipelineRunning.Inc()
	defer p.metrics.PipelineRunning.Dec()

	p.logger.Info("firms update started", "days", opts.Days, "source", opts.Source)

	summary, err := p.run(ctx, opts)
	elapsed := time.Since(start)
	p.metrics.RunDuration.Observe(elapsed.Seconds())

	if err != nil {
		var authErr *domain.AuthError
		outcome := "error"
		if errors.As(err, &authErr) {
			outcome = "auth_error"
		}
		p.metrics.RunsTotal.WithLabelValues(outcome).Inc()
		p.logger.Error("firms update failed", "error", err, "duration", elapsed)
		return summary, err
	}

	p.metrics.RunsTotal.WithLabelValues("success").Inc()
	p.metrics.RecordsInStore.WithLabelValues("total").Set(float64(summary.TotalInStore))
	p.metrics.RecordsInStore.WithLabelValues("active").Set(float64(summary.ActiveInStore))
	p.ready.Store(true)

	p.logger.Info("firms update completed",
		"created", summary.Created,
		"updated", summary.Updated,
		"fetched", summary.Fetched,
		"skipped", summary.Skipped,
		"total", summary.TotalInStore,
		"active", summary.ActiveInStore,
		"duration", elapsed,
	)
	return summary, nil
}

func (p *Pipeline) run(ctx context.Context, opts RunOptions) (domain.RunSummary, error) {
	var summary domain.RunSummary

	raw, err := p.stages.Feed.Fetch(ctx, p.defaults.BBox, opts.Days, opts.Source)
	if err != nil {
		return summary, err
	}

	detections, err := domain.ParseFeed(raw)
	if err != nil {
		var schemaErr *domain.SchemaError
		if errors.As(err, &schemaErr) {
			p.logger.Warn("firms payload rejected",
				"missing", schemaErr.Missing,
				"available", schemaErr.Available,
			)
		} else {
			p.logger.Warn("firms payload rejected", "error", err)
		}
		detections = nil
	}
	summary.Fetched = len(detections)
	p.metrics.DetectionsFetched.Add(float64(len(detections)))

	if len(detections) == 0 {
		p.logger.Info("no detections to process")
	}

	changes := make([]domain.RecordChange, 0, len(detections))
	for _, det := range detections {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("run interrupted after %d detections: %w", summary.Created+summary.Updated+summary.Skipped, err)
		}

		outcome, err := p.processDetection(ctx, det)
		if err != nil {
			summary.Skipped++
			p.recordRowError(err)
			continue
		}

		if outcome.Created() {
			summary.Created++
		} else {
			summary.Updated++
		}
		p.metrics.RecordsReconciled.WithLabelValues(string(outcome.Action)).Inc()
		changes = append(changes, domain.RecordChange{Action: outcome.Action, Record: outcome.Record})
	}

	p.publish(ctx, changes)

	summary.TotalInStore, err = p.stages.Records.CountRecords(ctx, "")
	if err != nil {
		return summary, fmt.Errorf("count records: %w", err)
	}
	summary.ActiveInStore, err = p.stages.Records.CountRecords(ctx, domain.StatusActive)
	if err != nil {
		return summary, fmt.Errorf("count active records: %w", err)
	}
	return summary, nil
}

// processDetection classifies, derives, and reconciles a single detection.
func (p *Pipeline) processDetection(ctx context.Context, det domain.HotspotDetection) (Outcome, error) {
	region, err := p.stages.Regions.Classify(ctx, det.Latitude, det.Longitude)
	if err != nil {
		return Outcome{}, rowError("classify", det, err)
	}
	derived := domain.DeriveMetrics(det)
	return p.stages.Reconciler.Reconcile(ctx, det, derived, region)
}

func (p *Pipeline) recordRowError(err error) {
	p.metrics.DetectionsSkipped.Inc()

	var rowErr *domain.RowError
	if !errors.As(err, &rowErr) {
		p.metrics.RowErrors.WithLabelValues("unknown").Inc()
		p.logger.Warn("detection skipped", "error", err)
		return
	}
	p.metrics.RowErrors.WithLabelValues(rowErr.Stage).Inc()
	p.logger.Warn("detection skipped",
		"stage", rowErr.Stage,
		"lat", rowErr.Latitude,
		"lon", rowErr.Longitude,
		"error", rowErr.Err,
	)
}

// publish hands the run's changes to the loader. Failures are logged only:
// the store is the source of truth and the next run republishes touched records.
func (p *Pipeline) publish(ctx context.Context, changes []domain.RecordChange) {
	if p.stages.Loader == nil || len(changes) == 0 {
		return
	}
	if err := p.stages.Loader.LoadBatch(ctx, changes); err != nil {
		p.metrics.PublishErrors.Inc()
		p.logger.Error("publish record changes failed", "error", err, "count", len(changes))
		return
	}
	p.metrics.RecordsPublished.Add(float64(len(changes)))
}

// Status reports store totals and whether the feed credential is configured.
func (p *Pipeline) Status(ctx context.Context) (domain.StoreStatus, error) {
	status := domain.StoreStatus{APIKeyConfigured: p.stages.Feed.HasAPIKey()}

	var err error
	status.Total, err = p.stages.Records.CountRecords(ctx, "")
	if err != nil {
		return status, fmt.Errorf("count records: %w", err)
	}
	status.Active, err = p.stages.Records.CountRecords(ctx, domain.StatusActive)
	if err != nil {
		return status, fmt.Errorf("count active records: %w", err)
	}

	latest, ok, err := p.stages.Records.LatestDetection(ctx)
	if err != nil {
		return status, fmt.Errorf("latest detection: %w", err)
	}
	if ok {
		status.LastDetection = &latest
	}
	return status, nil
}
