package store

import (
	"sync"
	"time"

	"github.com/jusunglee/hankyu-go/internal/models"
)

// Store holds the latest completed timetable snapshot
type Store struct {
	mu          sync.RWMutex
	snapshot    *models.Snapshot
	lastUpdate  time.Time
	lastError   error
	lastErrorAt time.Time
}

// NewStore creates a new store instance
func NewStore() *Store {
	return &Store{}
}

// Update replaces the snapshot as a whole and clears any recorded failure
func (s *Store) Update(snap *models.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot = snap
	s.lastUpdate = time.Now()
	s.lastError = nil
	s.lastErrorAt = time.Time{}
}

// RecordFailure remembers a failed load without touching the snapshot
func (s *Store) RecordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = err
	s.lastErrorAt = time.Now()
}

// Snapshot returns the current snapshot, if any load has completed
func (s *Store) Snapshot() (*models.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot, s.snapshot != nil
}

// GetLastUpdate returns the last update time
func (s *Store) GetLastUpdate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdate
}

// LastFailure returns when the most recent load failed and why. Both are zero
// once a later load succeeds.
func (s *Store) LastFailure() (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErrorAt, s.lastError
}
