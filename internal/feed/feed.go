package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jusunglee/hankyu-go/internal/models"
	"github.com/jusunglee/hankyu-go/internal/store"
)

// dayCheckInterval is how often the manager looks for a calendar day change
const dayCheckInterval = time.Minute

// Manager keeps the store populated with the snapshot for the current day
type Manager struct {
	loader         *Loader
	store          *store.Store
	lines          []models.Line
	location       *time.Location
	updateInterval time.Duration
	now            func() time.Time

	loadMu   sync.Mutex
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewManager creates a new feed manager
func NewManager(loader *Loader, store *store.Store, lines []models.Line, location *time.Location, updateInterval time.Duration) *Manager {
	if location == nil {
		location = time.Local
	}
	return &Manager{
		loader:         loader,
		store:          store,
		lines:          lines,
		location:       location,
		updateInterval: updateInterval,
		now:            time.Now,
		stopCh:         make(chan struct{}),
	}
}

// WithClock replaces the wall clock used to pick the calendar date
func (m *Manager) WithClock(now func() time.Time) *Manager {
	if now != nil {
		m.now = now
	}
	return m
}

// Refresh runs one load cycle now. On success the snapshot replaces the one
// in the store; on failure the previous snapshot stays in place.
func (m *Manager) Refresh(ctx context.Context) (*models.Snapshot, error) {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	snap, err := m.loader.Load(ctx, m.now().In(m.location), m.lines)
	if err != nil {
		m.store.RecordFailure(err)
		return nil, err
	}

	m.store.Update(snap)
	return snap, nil
}

// Start begins the feed update loop. The caller is expected to have run the
// initial Refresh already.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.updateLoop()
}

// Stop stops the feed update loop. Later calls are no-ops.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	m.wg.Wait()
}

func (m *Manager) updateLoop() {
	defer m.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-m.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	var refresh <-chan time.Time
	if m.updateInterval > 0 {
		ticker := time.NewTicker(m.updateInterval)
		defer ticker.Stop()
		refresh = ticker.C
	}

	dayCheck := time.NewTicker(dayCheckInterval)
	defer dayCheck.Stop()

	for {
		select {
		case <-refresh:
			if _, err := m.Refresh(ctx); err != nil {
				slog.Error("Timetable refresh failed", "error", err)
			}
		case <-dayCheck.C:
			if !m.dayChanged() {
				continue
			}
			slog.Info("Calendar day changed, reloading timetable")
			if _, err := m.Refresh(ctx); err != nil {
				slog.Error("Timetable reload after day change failed", "error", err)
			}
		case <-m.stopCh:
			return
		}
	}
}

// dayChanged reports whether the stored snapshot was loaded for another
// calendar day than today
func (m *Manager) dayChanged() bool {
	snap, ok := m.store.Snapshot()
	if !ok {
		return true
	}
	y1, m1, d1 := snap.Date.In(m.location).Date()
	y2, m2, d2 := m.now().In(m.location).Date()
	return y1 != y2 || m1 != m2 || d1 != d2
}
