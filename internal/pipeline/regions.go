package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/wildfire-etl/internal/domain"
	"github.com/couchcryptid/wildfire-etl/internal/observability"
	lru "github.com/hashicorp/golang-lru/v2"
)

const regionCacheSize = 64

// RegionResolver classifies coordinates against a region table and
// get-or-creates the matching persisted region.
type RegionResolver struct {
	table   domain.RegionTable
	repo    domain.RegionRepository
	cache   *lru.Cache[string, domain.Region]
	metrics *observability.Metrics
}

// NewRegionResolver creates a resolver over an immutable table.
func NewRegionResolver(table domain.RegionTable, repo domain.RegionRepository, metrics *observability.Metrics) *RegionResolver {
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[string, domain.Region](regionCacheSize)
	return &RegionResolver{
		table:   table,
		repo:    repo,
		cache:   cache,
		metrics: metrics,
	}
}

// Classify returns the stored region containing the point, creating it on
// first encounter. A point outside every box yields (nil, nil).
func (r *RegionResolver) Classify(ctx context.Context, lat, lon float64) (*domain.Region, error) {
	bounds, ok := r.table.Locate(lat, lon)
	if !ok {
		return nil, nil
	}

	if region, ok := r.cache.Get(bounds.Name); ok {
		r.metrics.RegionCache.WithLabelValues("hit").Inc()
		return &region, nil
	}
	r.metrics.RegionCache.WithLabelValues("miss").Inc()

	region, found, err := r.repo.FindRegion(ctx, bounds.Name)
	if err != nil {
		return nil, fmt.Errorf("find region %q: %w", bounds.Name, err)
	}
	if !found {
		region, err = r.repo.UpsertRegion(ctx, bounds.NewRegion())
		if err != nil {
			return nil, fmt.Errorf("create region %q: %w", bounds.Name, err)
		}
	}

	r.cache.Add(bounds.Name, region)
	return &region, nil
}
