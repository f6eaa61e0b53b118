package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/wildfire-etl/internal/domain"
	"github.com/couchcryptid/wildfire-etl/internal/observability"
	"github.com/couchcryptid/wildfire-etl/internal/pipeline"
	"github.com/couchcryptid/wildfire-etl/internal/store/memory"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoRowPayload = `latitude,longitude,acq_date,acq_time,brightness,frp
-16.5,-68.2,2024-09-01,1300,450,20
-17.8,-63.2,2024-09-01,0600,500,50
`

// --- mocks ---

type fetchCall struct {
	bbox   domain.BoundingBox
	days   int
	source string
}

type fakeFeed struct {
	mu    sync.Mutex
	body  string
	err   error
	noKey bool
	calls []fetchCall
}

func (f *fakeFeed) Fetch(_ context.Context, bbox domain.BoundingBox, days int, source string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fetchCall{bbox: bbox, days: days, source: source})
	return f.body, f.err
}

func (f *fakeFeed) HasAPIKey() bool { return !f.noKey }

type recordingLoader struct {
	batches [][]domain.RecordChange
	err     error
}

func (l *recordingLoader) LoadBatch(_ context.Context, changes []domain.RecordChange) error {
	l.batches = append(l.batches, changes)
	return l.err
}

// failingStore injects errors into a memory store.
type failingStore struct {
	*memory.Store
	failSaveAtLat float64
	failCount     bool
	failRegion    bool
}

func (s *failingStore) UpsertRecord(ctx context.Context, r domain.WildfireRecord) error {
	if r.Latitude == s.failSaveAtLat {
		return errors.New("disk full")
	}
	return s.Store.UpsertRecord(ctx, r)
}

func (s *failingStore) CountRecords(ctx context.Context, status domain.Status) (int, error) {
	if s.failCount {
		return 0, errors.New("connection reset")
	}
	return s.Store.CountRecords(ctx, status)
}

func (s *failingStore) FindRegion(ctx context.Context, name string) (domain.Region, bool, error) {
	if s.failRegion {
		return domain.Region{}, false, errors.New("regions table locked")
	}
	return s.Store.FindRegion(ctx, name)
}

type harness struct {
	pipeline *pipeline.Pipeline
	store    *memory.Store
	feed     *fakeFeed
	loader   *recordingLoader
	metrics  *observability.Metrics
	clock    *clockwork.FakeClock
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var defaults = pipeline.Defaults{BBox: domain.BoliviaBBox, Days: 7, Source: "MODIS_NRT"}

func newHarness(t *testing.T, feed *fakeFeed) *harness {
	t.Helper()
	store := memory.New()
	return newHarnessWithStores(t, feed, store, store, store)
}

func newHarnessWithStores(t *testing.T, feed *fakeFeed, mem *memory.Store, records domain.RecordRepository, regions domain.RegionRepository) *harness {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Date(2024, 9, 1, 18, 0, 0, 0, time.UTC))
	domain.SetClock(clock)
	t.Cleanup(func() { domain.SetClock(nil) })

	metrics := observability.NewMetricsForTesting()
	loader := &recordingLoader{}
	p := pipeline.New(pipeline.Stages{
		Feed:       feed,
		Records:    records,
		Regions:    pipeline.NewRegionResolver(domain.DefaultRegionTable(), regions, metrics),
		Reconciler: pipeline.NewReconciler(records, nil, discardLogger()),
		Loader:     loader,
	}, defaults, discardLogger(), metrics)

	return &harness{pipeline: p, store: mem, feed: feed, loader: loader, metrics: metrics, clock: clock}
}

// --- tests ---

func TestPipeline_Run_TwoDetections(t *testing.T) {
	h := newHarness(t, &fakeFeed{body: twoRowPayload})

	summary, err := h.pipeline.Run(context.Background(), pipeline.RunOptions{})
	require.NoError(t, err)

	want := domain.RunSummary{Created: 2, Updated: 0, TotalInStore: 2, ActiveInStore: 2, Fetched: 2}
	if diff := cmp.Diff(want, summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}

	recs := h.store.Records()
	require.Len(t, recs, 2)

	lapaz := recs[0]
	assert.InDelta(t, 0.9, lapaz.Intensity, 1e-9)
	assert.Equal(t, domain.SeverityCritical, lapaz.Severity)
	assert.InDelta(t, 3.0, lapaz.AreaHa, 1e-9)
	assert.Equal(t, "La Paz", lapaz.RegionName())
	assert.Equal(t, "Incendio_La Paz_20240901_1300", lapaz.Name)
	assert.Equal(t, time.Date(2024, 9, 1, 13, 0, 0, 0, time.UTC), lapaz.DetectedAt)
	assert.InDelta(t, 0.7, lapaz.Confidence, 1e-9)
	assert.Equal(t, domain.DefaultSatellite, lapaz.Satellite)
	assert.Equal(t, domain.DefaultSourceName, lapaz.SourceName)
	assert.Equal(t, domain.StatusActive, lapaz.Status)

	santaCruz := recs[1]
	assert.InDelta(t, 1.0, santaCruz.Intensity, 1e-9)
	assert.Equal(t, domain.SeverityCritical, santaCruz.Severity)
	assert.InDelta(t, 7.5, santaCruz.AreaHa, 1e-9)
	assert.Equal(t, "Santa Cruz", santaCruz.RegionName())
	assert.Equal(t, "Incendio_Santa Cruz_20240901_0600", santaCruz.Name)

	assert.InDelta(t, 2, testutil.ToFloat64(h.metrics.RecordsReconciled.WithLabelValues("created")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.RunsTotal.WithLabelValues("success")), 0)
}

func TestPipeline_Run_SameBatchTwiceUpdates(t *testing.T) {
	h := newHarness(t, &fakeFeed{body: twoRowPayload})
	ctx := context.Background()

	first, err := h.pipeline.Run(ctx, pipeline.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)
	assert.Equal(t, 0, first.Updated)
	before := h.store.Records()

	h.clock.Advance(3 * time.Hour)

	second, err := h.pipeline.Run(ctx, pipeline.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 2, second.Updated)
	assert.Equal(t, 2, second.TotalInStore)

	after := h.store.Records()
	require.Len(t, after, 2)
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].Name, after[i].Name, "name is not overwritten on update")
		assert.Equal(t, before[i].DetectedAt, after[i].DetectedAt, "detection time is not overwritten on update")
		assert.True(t, after[i].UpdatedAt.After(before[i].UpdatedAt))
	}
}

func TestPipeline_Run_UpdateOverwritesOnlyMetrics(t *testing.T) {
	h := newHarness(t, &fakeFeed{body: twoRowPayload})
	ctx := context.Background()
	_, err := h.pipeline.Run(ctx, pipeline.RunOptions{})
	require.NoError(t, err)
	before := h.store.Records()[0]

	h.feed.body = `latitude,longitude,acq_date,acq_time,brightness,frp,confidence,satellite
-16.508,-68.193,2024-09-01,2210,100,2,10,Aqua
`
	h.clock.Advance(time.Hour)
	summary, err := h.pipeline.Run(ctx, pipeline.RunOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Updated)

	after := h.store.Records()[0]
	assert.InDelta(t, 0.2, after.Intensity, 1e-9)
	assert.Equal(t, domain.SeverityLow, after.Severity)
	assert.InDelta(t, 0.3, after.AreaHa, 1e-9)

	ignore := cmpopts.IgnoreFields(domain.WildfireRecord{}, "Intensity", "Severity", "AreaHa", "UpdatedAt")
	if diff := cmp.Diff(before, after, ignore); diff != "" {
		t.Errorf("unexpected fields changed on update (-before +after):\n%s", diff)
	}
}

func TestPipeline_Run_DifferentDayCreates(t *testing.T) {
	h := newHarness(t, &fakeFeed{body: twoRowPayload})
	ctx := context.Background()
	_, err := h.pipeline.Run(ctx, pipeline.RunOptions{})
	require.NoError(t, err)

	h.feed.body = `latitude,longitude,acq_date,acq_time,brightness,frp
-16.5,-68.2,2024-09-02,0100,450,20
`
	summary, err := h.pipeline.Run(ctx, pipeline.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 3, summary.TotalInStore)
}

func TestPipeline_Run_EmptyFeedStillReportsTotals(t *testing.T) {
	h := newHarness(t, &fakeFeed{body: twoRowPayload})
	ctx := context.Background()
	_, err := h.pipeline.Run(ctx, pipeline.RunOptions{})
	require.NoError(t, err)

	h.feed.body = ""
	summary, err := h.pipeline.Run(ctx, pipeline.RunOptions{})
	require.NoError(t, err)

	want := domain.RunSummary{Created: 0, Updated: 0, TotalInStore: 2, ActiveInStore: 2}
	assert.Equal(t, want, summary)
}

func TestPipeline_Run_ActiveCountExcludesOtherStatuses(t *testing.T) {
	h := newHarness(t, &fakeFeed{})
	ctx := context.Background()
	require.NoError(t, h.store.UpsertRecord(ctx, domain.WildfireRecord{Latitude: -15, Longitude: -65, Status: domain.StatusExtinguished}))

	summary, err := h.pipeline.Run(ctx, pipeline.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalInStore)
	assert.Equal(t, 0, summary.ActiveInStore)
}

func TestPipeline_Run_AuthErrorAborts(t *testing.T) {
	authErr := &domain.AuthError{Err: domain.ErrMissingAPIKey}
	h := newHarness(t, &fakeFeed{err: authErr, noKey: true})

	summary, err := h.pipeline.Run(context.Background(), pipeline.RunOptions{})

	var got *domain.AuthError
	require.True(t, errors.As(err, &got))
	assert.Equal(t, domain.RunSummary{}, summary)
	assert.Empty(t, h.store.Records())
	assert.Error(t, h.pipeline.CheckReadiness(context.Background()))
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.RunsTotal.WithLabelValues("auth_error")), 0)
}

func TestPipeline_Run_SchemaErrorYieldsEmptyRun(t *testing.T) {
	h := newHarness(t, &fakeFeed{body: `latitude,brightness,acq_date,acq_time
-16.5,450,2024-09-01,1300
`})

	summary, err := h.pipeline.Run(context.Background(), pipeline.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.RunSummary{}, summary)
	assert.Empty(t, h.store.Records())
}

func TestPipeline_Run_RowErrorSkipsOnlyThatRow(t *testing.T) {
	mem := memory.New()
	store := &failingStore{Store: mem, failSaveAtLat: -16.5}
	h := newHarnessWithStores(t, &fakeFeed{body: twoRowPayload}, mem, store, store)

	summary, err := h.pipeline.Run(context.Background(), pipeline.RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.TotalInStore)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.RowErrors.WithLabelValues("save")), 0)
}

func TestPipeline_Run_ClassifyErrorSkipsRows(t *testing.T) {
	mem := memory.New()
	store := &failingStore{Store: mem, failRegion: true}
	h := newHarnessWithStores(t, &fakeFeed{body: twoRowPayload}, mem, store, store)

	summary, err := h.pipeline.Run(context.Background(), pipeline.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 0, summary.Created)
	assert.InDelta(t, 2, testutil.ToFloat64(h.metrics.RowErrors.WithLabelValues("classify")), 0)
}

func TestPipeline_Run_CountFailureIsReturned(t *testing.T) {
	mem := memory.New()
	store := &failingStore{Store: mem, failCount: true}
	h := newHarnessWithStores(t, &fakeFeed{body: twoRowPayload}, mem, store, store)

	summary, err := h.pipeline.Run(context.Background(), pipeline.RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count records")
	assert.Equal(t, 2, summary.Created)
}

func TestPipeline_Run_UnclassifiedDetection(t *testing.T) {
	h := newHarness(t, &fakeFeed{body: `latitude,longitude,acq_date,acq_time
-5.0,-60.0,2024-09-01,0915
`})

	summary, err := h.pipeline.Run(context.Background(), pipeline.RunOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Created)

	rec := h.store.Records()[0]
	assert.Nil(t, rec.Region)
	assert.Equal(t, "Incendio_Desconocido_20240901_0915", rec.Name)
	assert.InDelta(t, 0.6, rec.Intensity, 1e-9)
	assert.Equal(t, domain.SeverityHigh, rec.Severity)
	assert.Zero(t, rec.AreaHa)
	assert.Empty(t, h.store.Regions())
}

func TestPipeline_Run_PublishesChanges(t *testing.T) {
	h := newHarness(t, &fakeFeed{body: twoRowPayload})
	ctx := context.Background()

	_, err := h.pipeline.Run(ctx, pipeline.RunOptions{})
	require.NoError(t, err)
	_, err = h.pipeline.Run(ctx, pipeline.RunOptions{})
	require.NoError(t, err)

	require.Len(t, h.loader.batches, 2)
	assert.Equal(t, domain.ActionCreated, h.loader.batches[0][0].Action)
	assert.Equal(t, domain.ActionUpdated, h.loader.batches[1][0].Action)
	assert.Equal(t, h.loader.batches[0][0].Record.ID, h.loader.batches[1][0].Record.ID)
	assert.InDelta(t, 4, testutil.ToFloat64(h.metrics.RecordsPublished), 0)
}

func TestPipeline_Run_PublishFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, &fakeFeed{body: twoRowPayload})
	h.loader.err = errors.New("broker down")

	summary, err := h.pipeline.Run(context.Background(), pipeline.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Created)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.PublishErrors), 0)
}

func TestPipeline_Run_NoChangesSkipsPublish(t *testing.T) {
	h := newHarness(t, &fakeFeed{})

	_, err := h.pipeline.Run(context.Background(), pipeline.RunOptions{})
	require.NoError(t, err)
	assert.Empty(t, h.loader.batches)
}

func TestPipeline_Run_Options(t *testing.T) {
	h := newHarness(t, &fakeFeed{})
	ctx := context.Background()

	_, err := h.pipeline.Run(ctx, pipeline.RunOptions{})
	require.NoError(t, err)
	_, err = h.pipeline.Run(ctx, pipeline.RunOptions{Days: 2, Source: "VIIRS_SNPP_NRT"})
	require.NoError(t, err)

	want := []fetchCall{
		{bbox: domain.BoliviaBBox, days: 7, source: "MODIS_NRT"},
		{bbox: domain.BoliviaBBox, days: 2, source: "VIIRS_SNPP_NRT"},
	}
	if diff := cmp.Diff(want, h.feed.calls, cmp.AllowUnexported(fetchCall{})); diff != "" {
		t.Errorf("fetch calls mismatch (-want +got):\n%s", diff)
	}
}

func TestPipeline_Run_CancelledContext(t *testing.T) {
	h := newHarness(t, &fakeFeed{body: twoRowPayload})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.pipeline.Run(ctx, pipeline.RunOptions{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.store.Records())
}

func TestPipeline_CheckReadiness(t *testing.T) {
	h := newHarness(t, &fakeFeed{})
	ctx := context.Background()

	require.Error(t, h.pipeline.CheckReadiness(ctx))

	_, err := h.pipeline.Run(ctx, pipeline.RunOptions{})
	require.NoError(t, err)
	assert.NoError(t, h.pipeline.CheckReadiness(ctx))
}

func TestPipeline_Status(t *testing.T) {
	h := newHarness(t, &fakeFeed{body: twoRowPayload})
	ctx := context.Background()

	status, err := h.pipeline.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StoreStatus{APIKeyConfigured: true}, status)

	_, err = h.pipeline.Run(ctx, pipeline.RunOptions{})
	require.NoError(t, err)

	status, err = h.pipeline.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Total)
	assert.Equal(t, 2, status.Active)
	require.NotNil(t, status.LastDetection)
	assert.Equal(t, time.Date(2024, 9, 1, 13, 0, 0, 0, time.UTC), *status.LastDetection)
}

func TestPipeline_Status_NoKey(t *testing.T) {
	h := newHarness(t, &fakeFeed{noKey: true})

	status, err := h.pipeline.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, status.APIKeyConfigured)
	assert.Nil(t, status.LastDetection)
}
