// Package query answers "what leaves next" against a loaded snapshot. It does
// no I/O.
package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jusunglee/hankyu-go/internal/models"
)

var (
	// ErrNoSnapshot means no load has completed yet
	ErrNoSnapshot = errors.New("timetable not loaded")
	// ErrEmptyTime means the time input was left blank
	ErrEmptyTime = errors.New("time is required")
	// ErrBadLimit means a negative result count was requested
	ErrBadLimit = errors.New("limit must not be negative")
)

// NextDepartures returns the first limit departures at or after cutoff, in
// table order. The table must be ascending by Minutes; there is no wraparound
// past midnight, so a late cutoff yields an empty slice.
func NextDepartures(table models.DirectionalTable, cutoff, limit int) []models.Departure {
	out := make([]models.Departure, 0)
	if limit <= 0 {
		return out
	}
	for _, d := range table.Departures {
		if d.Minutes < cutoff {
			continue
		}
		out = append(out, d)
		if len(out) == limit {
			break
		}
	}
	return out
}

// Request is one user query as typed into the widget
type Request struct {
	Station string
	Time    string
	Limit   int
}

// Result is the answer to a Request
type Result struct {
	Station    models.Station     `json:"station"`
	Direction  models.Direction   `json:"direction"`
	Time       string             `json:"time"`
	Cutoff     int                `json:"cutoff"`
	Variant    models.Variant     `json:"variant"`
	SnapshotID uuid.UUID          `json:"snapshot_id"`
	Departures []models.Departure `json:"departures"`
}

// Ended reports whether there are no more departures today
func (r *Result) Ended() bool {
	return len(r.Departures) == 0
}

// Run validates req and queries snap. A zero req.Limit uses defaultLimit.
// Errors are user input problems: ErrNoSnapshot, ErrEmptyTime, ErrBadLimit,
// a bad station, or a *models.FormatError for the time.
func Run(snap *models.Snapshot, req Request, defaultLimit int) (*Result, error) {
	if snap == nil {
		return nil, ErrNoSnapshot
	}

	station, err := models.ParseStation(req.Station)
	if err != nil {
		return nil, err
	}

	input := strings.TrimSpace(req.Time)
	if input == "" {
		return nil, ErrEmptyTime
	}
	cutoff, err := models.TimeToMinutes(input)
	if err != nil {
		return nil, err
	}

	if req.Limit < 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadLimit, req.Limit)
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultLimit
	}

	direction := station.Direction()
	return &Result{
		Station:    station,
		Direction:  direction,
		Time:       models.MinutesToTime(cutoff),
		Cutoff:     cutoff,
		Variant:    snap.Variant,
		SnapshotID: snap.ID,
		Departures: NextDepartures(snap.Table(direction), cutoff, limit),
	}, nil
}
