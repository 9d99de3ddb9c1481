package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"fmcg-dashboard/internal/models"
	"fmcg-dashboard/internal/schema"
)

var ErrDatasetNotFound = errors.New("dataset not found")

// entry is a stored dataset with its column resolution, computed once at
// upload time.
type entry struct {
	dataset  *models.Dataset
	report   schema.Report
	lastUsed time.Time
}

// Store keeps uploaded datasets in memory. Entries expire after ttl without
// use, and the least recently used entry is evicted when the store is full.
type Store struct {
	mu         sync.Mutex
	entries    map[string]*entry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

func NewStore(maxEntries int, ttl time.Duration) *Store {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &Store{
		entries:    make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Put stores ds under a fresh ID, which is also written to ds.ID.
func (s *Store) Put(ds *models.Dataset) string {
	report := schema.ResolveReport(ds)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)
	for len(s.entries) >= s.maxEntries {
		s.evictOldestLocked()
	}

	ds.ID = uuid.NewString()
	s.entries[ds.ID] = &entry{dataset: ds, report: report, lastUsed: now}
	return ds.ID
}

func (s *Store) get(id string) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	now := s.now()
	if !ok || s.expired(e, now) {
		delete(s.entries, id)
		return nil, ErrDatasetNotFound
	}
	e.lastUsed = now
	return e, nil
}

// Delete removes a dataset and reports whether it was present.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	delete(s.entries, id)
	return ok
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep drops expired entries and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.now())
}

// Run sweeps the store every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.Debug("expired datasets removed", "count", n)
			}
		}
	}
}

func (s *Store) expired(e *entry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.lastUsed) > s.ttl
}

func (s *Store) sweepLocked(now time.Time) int {
	removed := 0
	for id, e := range s.entries {
		if s.expired(e, now) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

func (s *Store) evictOldestLocked() {
	var oldest string
	var at time.Time
	for id, e := range s.entries {
		if oldest == "" || e.lastUsed.Before(at) {
			oldest, at = id, e.lastUsed
		}
	}
	delete(s.entries, oldest)
}
