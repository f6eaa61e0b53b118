// Package memory is an in-process record and region store. Records keep their
// insertion order, which is the order FindMatch scans them in.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/couchcryptid/wildfire-etl/internal/domain"
	"github.com/google/uuid"
)

// Store implements domain.RecordRepository and domain.RegionRepository.
type Store struct {
	mu       sync.RWMutex
	records  []domain.WildfireRecord
	index    map[uuid.UUID]int
	regions  []domain.Region
	byName   map[string]int
	regionID int64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		index:  make(map[uuid.UUID]int),
		byName: make(map[string]int),
	}
}

func (s *Store) FindMatch(_ context.Context, q domain.MatchQuery) (domain.WildfireRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if q.Matches(r) {
			return r, true, nil
		}
	}
	return domain.WildfireRecord{}, false, nil
}

func (s *Store) UpsertRecord(_ context.Context, r domain.WildfireRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[r.ID]; ok {
		s.records[i] = r
		return nil
	}
	s.index[r.ID] = len(s.records)
	s.records = append(s.records, r)
	return nil
}

func (s *Store) CountRecords(_ context.Context, status domain.Status) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if status == "" {
		return len(s.records), nil
	}
	n := 0
	for _, r := range s.records {
		if r.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *Store) LatestDetection(_ context.Context) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest time.Time
	for _, r := range s.records {
		if r.DetectedAt.After(latest) {
			latest = r.DetectedAt
		}
	}
	return latest, len(s.records) > 0, nil
}

func (s *Store) FindRegion(_ context.Context, name string) (domain.Region, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i, ok := s.byName[name]; ok {
		return s.regions[i], true, nil
	}
	return domain.Region{}, false, nil
}

func (s *Store) UpsertRegion(_ context.Context, r domain.Region) (domain.Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.byName[r.Name]; ok {
		return s.regions[i], nil
	}
	s.regionID++
	r.ID = s.regionID
	s.byName[r.Name] = len(s.regions)
	s.regions = append(s.regions, r)
	return r, nil
}

// Records returns a snapshot of all records in insertion order.
func (s *Store) Records() []domain.WildfireRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.WildfireRecord(nil), s.records...)
}

// Regions returns a snapshot of all regions in creation order.
func (s *Store) Regions() []domain.Region {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Region(nil), s.regions...)
}
