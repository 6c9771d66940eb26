package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jusunglee/hankyu-go/internal/models"
	"github.com/jusunglee/hankyu-go/internal/store"
)

var (
	tuesday  = time.Date(2026, 10, 20, 8, 0, 0, 0, time.UTC)
	saturday = time.Date(2026, 10, 24, 8, 0, 0, 0, time.UTC)
)

func times(deps []models.Departure) []string {
	out := make([]string, 0, len(deps))
	for _, d := range deps {
		out = append(out, d.Time)
	}
	return out
}

func TestResource(t *testing.T) {
	assert.Equal(t, "juso_to_umeda/kyoto_weekday.json", Resource(models.JusoToUmeda, models.Kyoto, models.Weekday))
	assert.Equal(t, "umeda_to_juso/takarazuka_weekend.json", Resource(models.UmedaToJuso, models.Takarazuka, models.Weekend))
}

func TestLoadMergesAndSorts(t *testing.T) {
	loader := NewLoader(NewFSFetcher(CreateSampleTimetable()), models.AllDirections, 0)

	snap, err := loader.Load(context.Background(), tuesday, models.AllLines)
	require.NoError(t, err)

	assert.Equal(t, models.Weekday, snap.Variant)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", snap.ID.String())

	juso := snap.Table(models.JusoToUmeda)
	require.True(t, juso.Supported)
	assert.Equal(t, []string{"08:00", "08:02", "08:05", "08:10", "08:20", "08:30"}, times(juso.Departures))

	umeda := snap.Table(models.UmedaToJuso)
	require.True(t, umeda.Supported)
	assert.Equal(t, []string{"07:50", "07:52", "07:55"}, times(umeda.Departures))

	for _, d := range models.AllDirections {
		deps := snap.Table(d).Departures
		for i := 1; i < len(deps); i++ {
			assert.LessOrEqual(t, deps[i-1].Minutes, deps[i].Minutes, "table %s not ascending at %d", d, i)
		}
	}
}

func TestLoadWeekendVariant(t *testing.T) {
	loader := NewLoader(NewFSFetcher(CreateSampleTimetable()), models.AllDirections, 0)

	snap, err := loader.Load(context.Background(), saturday, models.AllLines)
	require.NoError(t, err)

	assert.Equal(t, models.Weekend, snap.Variant)
	assert.Equal(t, []string{"09:00", "09:02", "09:05"}, times(snap.Table(models.JusoToUmeda).Departures))
}

func TestLoadStableTies(t *testing.T) {
	fsys := CreateMockTimetable(map[models.Direction]map[models.Line]map[models.Variant][]MockDeparture{
		models.JusoToUmeda: {
			models.Kyoto:      {models.Weekday: {{Time: "08:00", Destination: "kyoto-a"}, {Time: "08:10"}}},
			models.Kobe:       {models.Weekday: {{Time: "08:00", Destination: "kobe-a"}}},
			models.Takarazuka: {models.Weekday: {{Time: "8:00", Destination: "takarazuka-a"}}},
		},
	})
	loader := NewLoader(NewFSFetcher(fsys), []models.Direction{models.JusoToUmeda}, 0)

	// Run repeatedly; goroutine scheduling must never change the tie order.
	for i := 0; i < 20; i++ {
		snap, err := loader.Load(context.Background(), tuesday, models.AllLines)
		require.NoError(t, err)

		deps := snap.Table(models.JusoToUmeda).Departures
		require.Len(t, deps, 4)
		assert.Equal(t, "kyoto-a", deps[0].Destination)
		assert.Equal(t, "kobe-a", deps[1].Destination)
		assert.Equal(t, "takarazuka-a", deps[2].Destination)
		assert.Equal(t, "08:10", deps[3].Time)
	}
}

func TestLoadUnsupportedDirection(t *testing.T) {
	loader := NewLoader(NewFSFetcher(CreateSampleTimetable()), []models.Direction{models.JusoToUmeda}, 0)

	snap, err := loader.Load(context.Background(), tuesday, models.AllLines)
	require.NoError(t, err)

	umeda := snap.Table(models.UmedaToJuso)
	assert.False(t, umeda.Supported)
	assert.NotNil(t, umeda.Departures)
	assert.Empty(t, umeda.Departures)
	assert.True(t, snap.Table(models.JusoToUmeda).Supported)
}

func TestLoadSubsetOfLines(t *testing.T) {
	loader := NewLoader(NewFSFetcher(CreateSampleTimetable()), models.AllDirections, 0)

	snap, err := loader.Load(context.Background(), tuesday, []models.Line{models.Kobe})
	require.NoError(t, err)
	assert.Equal(t, []string{"08:05", "08:20"}, times(snap.Table(models.JusoToUmeda).Departures))
}

func TestLoadErrors(t *testing.T) {
	valid := CreateSampleTimetable()

	with := func(resource, body string) fstest.MapFS {
		fsys := fstest.MapFS{}
		for k, v := range valid {
			fsys[k] = v
		}
		fsys[resource] = &fstest.MapFile{Data: []byte(body)}
		return fsys
	}
	without := func(resource string) fstest.MapFS {
		fsys := fstest.MapFS{}
		for k, v := range valid {
			if k != resource {
				fsys[k] = v
			}
		}
		return fsys
	}

	tests := []struct {
		name     string
		fsys     fstest.MapFS
		resource string
		kind     LoadErrorKind
	}{
		{
			name:     "missing file",
			fsys:     without("umeda_to_juso/kobe_weekday.json"),
			resource: "umeda_to_juso/kobe_weekday.json",
			kind:     KindStatus,
		},
		{
			name:     "not json",
			fsys:     with("juso_to_umeda/kyoto_weekday.json", "<html>"),
			resource: "juso_to_umeda/kyoto_weekday.json",
			kind:     KindShape,
		},
		{
			name:     "wrong direction field",
			fsys:     with("juso_to_umeda/kyoto_weekday.json", `{"umeda_to_juso": []}`),
			resource: "juso_to_umeda/kyoto_weekday.json",
			kind:     KindShape,
		},
		{
			name:     "null table",
			fsys:     with("juso_to_umeda/kobe_weekday.json", `{"juso_to_umeda": null}`),
			resource: "juso_to_umeda/kobe_weekday.json",
			kind:     KindShape,
		},
		{
			name:     "malformed time",
			fsys:     with("juso_to_umeda/takarazuka_weekday.json", `{"juso_to_umeda": [{"time": "8時", "line": "takarazuka"}]}`),
			resource: "juso_to_umeda/takarazuka_weekday.json",
			kind:     KindFormat,
		},
		{
			name:     "out of range time",
			fsys:     with("juso_to_umeda/takarazuka_weekday.json", `{"juso_to_umeda": [{"time": "25:10", "line": "takarazuka"}]}`),
			resource: "juso_to_umeda/takarazuka_weekday.json",
			kind:     KindFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := NewLoader(NewFSFetcher(tt.fsys), models.AllDirections, 0)

			snap, err := loader.Load(context.Background(), tuesday, models.AllLines)
			require.Error(t, err)
			assert.Nil(t, snap)

			var le *LoadError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, tt.resource, le.Resource)
			assert.Equal(t, tt.kind, le.Kind, "error: %v", err)
			assert.Contains(t, err.Error(), tt.resource)

			if tt.kind == KindFormat {
				var fe *models.FormatError
				assert.ErrorAs(t, err, &fe)
			}
		})
	}
}

func TestHTTPFetcher(t *testing.T) {
	fsys := CreateSampleTimetable()

	var mu sync.Mutex
	requested := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requested[r.URL.Path]++
		mu.Unlock()

		if strings.Contains(r.URL.Path, "broken") {
			http.Error(w, "gone", http.StatusInternalServerError)
			return
		}
		http.FileServer(http.FS(fsys)).ServeHTTP(w, r)
	}))
	defer srv.Close()

	t.Run("loads all documents", func(t *testing.T) {
		loader := NewLoader(NewHTTPFetcher(srv.URL+"/", srv.Client()), models.AllDirections, 0)

		snap, err := loader.Load(context.Background(), tuesday, models.AllLines)
		require.NoError(t, err)
		assert.Len(t, snap.Table(models.JusoToUmeda).Departures, 6)

		mu.Lock()
		defer mu.Unlock()
		assert.Len(t, requested, 6)
		assert.Equal(t, 1, requested["/juso_to_umeda/kyoto_weekday.json"])
	})

	t.Run("status error", func(t *testing.T) {
		f := NewHTTPFetcher(srv.URL, srv.Client())
		_, err := f.Fetch(context.Background(), "broken/kyoto_weekday.json")

		var se *httpStatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusInternalServerError, se.Code)
		assert.Equal(t, "gone", se.Body)
	})

	t.Run("not found is a status failure", func(t *testing.T) {
		f := NewHTTPFetcher(srv.URL, srv.Client())
		_, err := f.Fetch(context.Background(), "juso_to_umeda/kyoto_holiday.json")
		assert.Equal(t, KindStatus, fetchErrorKind(context.Background(), err))
	})
}

type blockingFetcher struct {
	inner   Fetcher
	blocked string
}

func (f *blockingFetcher) Fetch(ctx context.Context, resource string) ([]byte, error) {
	if resource == f.blocked {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.inner.Fetch(ctx, resource)
}

func TestLoadTimeout(t *testing.T) {
	fetcher := &blockingFetcher{
		inner:   NewFSFetcher(CreateSampleTimetable()),
		blocked: "umeda_to_juso/kyoto_weekday.json",
	}
	loader := NewLoader(fetcher, models.AllDirections, 50*time.Millisecond)

	start := time.Now()
	_, err := loader.Load(context.Background(), tuesday, models.AllLines)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, KindTimeout, le.Kind)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

type countingFetcher struct {
	inner Fetcher
	mu    sync.Mutex
	fail  bool
	calls int
}

func (f *countingFetcher) Fetch(ctx context.Context, resource string) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return nil, errors.New("connection refused")
	}
	return f.inner.Fetch(ctx, resource)
}

func (f *countingFetcher) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func TestManagerRefresh(t *testing.T) {
	fetcher := &countingFetcher{inner: NewFSFetcher(CreateSampleTimetable())}
	s := store.NewStore()
	m := NewManager(NewLoader(fetcher, models.AllDirections, 0), s, models.AllLines, time.UTC, 0)
	m.now = func() time.Time { return tuesday }

	first, err := m.Refresh(context.Background())
	require.NoError(t, err)

	current, ok := s.Snapshot()
	require.True(t, ok)
	assert.Equal(t, first.ID, current.ID)

	fetcher.setFail(true)
	_, err = m.Refresh(context.Background())
	require.Error(t, err)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, KindTransport, le.Kind)

	current, _ = s.Snapshot()
	assert.Equal(t, first.ID, current.ID, "failed refresh must keep the previous snapshot")
	_, lastErr := s.LastFailure()
	assert.Error(t, lastErr)

	fetcher.setFail(false)
	second, err := m.Refresh(context.Background())
	require.NoError(t, err)
	current, _ = s.Snapshot()
	assert.Equal(t, second.ID, current.ID)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestManagerDayChanged(t *testing.T) {
	s := store.NewStore()
	m := NewManager(NewLoader(NewFSFetcher(CreateSampleTimetable()), models.AllDirections, 0), s, models.AllLines, time.UTC, 0)

	now := tuesday
	m.now = func() time.Time { return now }
	assert.True(t, m.dayChanged(), "empty store always needs a load")

	_, err := m.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, m.dayChanged())

	now = tuesday.Add(15 * time.Hour)
	assert.False(t, m.dayChanged())

	now = tuesday.Add(16 * time.Hour)
	assert.True(t, m.dayChanged())
}

func TestManagerStartStop(t *testing.T) {
	fetcher := &countingFetcher{inner: NewFSFetcher(CreateSampleTimetable())}
	s := store.NewStore()
	m := NewManager(NewLoader(fetcher, models.AllDirections, 0), s, models.AllLines, time.UTC, 10*time.Millisecond)

	m.Start()
	require.Eventually(t, func() bool {
		_, ok := s.Snapshot()
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	m.Stop()

	fetcher.mu.Lock()
	calls := fetcher.calls
	fetcher.mu.Unlock()
	assert.GreaterOrEqual(t, calls, 6)
}

func TestManagerStopTwice(t *testing.T) {
	m := NewManager(NewLoader(NewFSFetcher(CreateSampleTimetable()), models.AllDirections, 0), store.NewStore(), models.AllLines, time.UTC, time.Hour)

	m.Start()
	m.Stop()
	assert.NotPanics(t, m.Stop)
}
