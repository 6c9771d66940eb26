package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jusunglee/hankyu-go/internal/models"
)

// LoadErrorKind classifies why a resource could not be loaded
type LoadErrorKind int

const (
	// KindTransport is a network or file system failure
	KindTransport LoadErrorKind = iota
	// KindStatus is a non-success response or a missing file
	KindStatus
	// KindShape is a document that is not the expected JSON object
	KindShape
	// KindFormat is a departure whose time is not HH:MM
	KindFormat
	// KindTimeout means the join did not finish within the load timeout
	KindTimeout
)

func (k LoadErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindShape:
		return "shape"
	case KindFormat:
		return "format"
	case KindTimeout:
		return "timeout"
	}
	return "unknown"
}

// LoadError reports the resource that made a directional load fail
type LoadError struct {
	Direction models.Direction
	Resource  string
	Kind      LoadErrorKind
	Err       error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s (%s): %s: %v", e.Resource, e.Direction, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Loader fetches and merges the per-line tables of every configured direction
type Loader struct {
	fetcher    Fetcher
	directions []models.Direction
	timeout    time.Duration
}

// NewLoader creates a loader for the given directions. Directions outside the
// list come back as empty unsupported tables. A zero timeout waits forever.
func NewLoader(fetcher Fetcher, directions []models.Direction, timeout time.Duration) *Loader {
	return &Loader{
		fetcher:    fetcher,
		directions: directions,
		timeout:    timeout,
	}
}

// Load builds a snapshot for date from one document per line and direction.
// Any failed document fails the whole load; no partial snapshot is returned.
func (l *Loader) Load(ctx context.Context, date time.Time, lines []models.Line) (*models.Snapshot, error) {
	variant := models.Classify(date)

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	results := make([][]models.Departure, len(l.directions))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range l.directions {
		i, d := i, d
		g.Go(func() error {
			deps, err := l.loadDirection(gctx, d, variant, lines)
			if err != nil {
				return err
			}
			results[i] = deps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &models.Snapshot{
		ID:       uuid.New(),
		Date:     date,
		Variant:  variant,
		Tables:   make(map[models.Direction]*models.DirectionalTable, len(models.AllDirections)),
		LoadedAt: time.Now(),
	}
	for _, d := range models.AllDirections {
		snap.Tables[d] = &models.DirectionalTable{
			Direction:  d,
			Departures: []models.Departure{},
		}
	}
	for i, d := range l.directions {
		snap.Tables[d] = &models.DirectionalTable{
			Direction:  d,
			Supported:  true,
			Departures: results[i],
		}
	}

	attrs := []any{"snapshot", snap.ID, "variant", variant}
	for _, d := range models.AllDirections {
		if t := snap.Tables[d]; t.Supported {
			attrs = append(attrs, string(d), len(t.Departures))
		}
	}
	slog.Info("Timetable loaded", attrs...)

	return snap, nil
}

// loadDirection fetches every line concurrently, waits for all of them and
// then merges in line order before a stable sort by time
func (l *Loader) loadDirection(ctx context.Context, d models.Direction, v models.Variant, lines []models.Line) ([]models.Departure, error) {
	perLine := make([][]models.Departure, len(lines))

	g, gctx := errgroup.WithContext(ctx)
	for i, line := range lines {
		i, line := i, line
		g.Go(func() error {
			deps, err := l.loadResource(gctx, ctx, d, Resource(d, line, v))
			if err != nil {
				return err
			}
			perLine[i] = deps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make([]models.Departure, 0)
	for _, deps := range perLine {
		merged = append(merged, deps...)
	}
	sortDepartures(merged)

	return merged, nil
}

// loadResource fetches and decodes one document. parent is the load context,
// used to tell a timeout apart from cancellation caused by a sibling failure.
func (l *Loader) loadResource(ctx, parent context.Context, d models.Direction, resource string) ([]models.Departure, error) {
	body, err := l.fetcher.Fetch(ctx, resource)
	if err != nil {
		return nil, &LoadError{
			Direction: d,
			Resource:  resource,
			Kind:      fetchErrorKind(parent, err),
			Err:       err,
		}
	}

	deps, err := decodeDocument(body, d)
	if err != nil {
		kind := KindShape
		var fe *models.FormatError
		if errors.As(err, &fe) {
			kind = KindFormat
		}
		return nil, &LoadError{
			Direction: d,
			Resource:  resource,
			Kind:      kind,
			Err:       err,
		}
	}

	return deps, nil
}

func fetchErrorKind(parent context.Context, err error) LoadErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(parent.Err(), context.DeadlineExceeded) {
		return KindTimeout
	}
	var se *httpStatusError
	if errors.As(err, &se) || errors.Is(err, fs.ErrNotExist) {
		return KindStatus
	}
	return KindTransport
}

// decodeDocument extracts the departures stored under the direction-named
// field and fills in Minutes
func decodeDocument(body []byte, d models.Direction) ([]models.Departure, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	raw, ok := doc[string(d)]
	if !ok {
		return nil, fmt.Errorf("decode document: missing %q field", d)
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, fmt.Errorf("decode document: %q is null", d)
	}

	var deps []models.Departure
	if err := json.Unmarshal(raw, &deps); err != nil {
		return nil, fmt.Errorf("decode document: %q: %w", d, err)
	}

	for i := range deps {
		minutes, err := models.TimeToMinutes(deps[i].Time)
		if err != nil {
			return nil, fmt.Errorf("departure #%d: %w", i+1, err)
		}
		deps[i].Minutes = minutes
	}

	return deps, nil
}

func sortDepartures(deps []models.Departure) {
	sort.SliceStable(deps, func(i, j int) bool {
		return deps[i].Minutes < deps[j].Minutes
	})
}
