package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Direction is one of the two travel directions between Juso and Umeda
type Direction string

const (
	JusoToUmeda Direction = "juso_to_umeda"
	UmedaToJuso Direction = "umeda_to_juso"
)

// AllDirections lists every direction in display order
var AllDirections = []Direction{JusoToUmeda, UmedaToJuso}

// ParseDirection validates a direction identifier
func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.TrimSpace(strings.ToLower(s)))
	for _, known := range AllDirections {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// Line identifies one of the rail lines merged into every directional table
type Line string

const (
	Kyoto      Line = "kyoto"
	Kobe       Line = "kobe"
	Takarazuka Line = "takarazuka"
)

// AllLines is the fetch order used by the loader; ties in the merged table
// keep this order.
var AllLines = []Line{Kyoto, Kobe, Takarazuka}

// ParseLine validates a line identifier
func ParseLine(s string) (Line, error) {
	l := Line(strings.TrimSpace(strings.ToLower(s)))
	for _, known := range AllLines {
		if l == known {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown line %q", s)
}

// Station is the departure station picked by the user
type Station string

// ErrUnknownStation is returned for a station outside Juso and Umeda
var ErrUnknownStation = errors.New("unknown station")

const (
	Juso  Station = "juso"
	Umeda Station = "umeda"
)

// ParseStation validates a station selection. An empty value selects Juso.
func ParseStation(s string) (Station, error) {
	switch Station(strings.TrimSpace(strings.ToLower(s))) {
	case "", Juso:
		return Juso, nil
	case Umeda:
		return Umeda, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownStation, s)
}

// Direction returns the table a passenger boarding at s reads from
func (s Station) Direction() Direction {
	if s == Umeda {
		return UmedaToJuso
	}
	return JusoToUmeda
}

// Label is a display-only value that may arrive as a JSON string or number
type Label string

func (l *Label) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*l = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = Label(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("label must be a string or number: %w", err)
	}
	*l = Label(n.String())
	return nil
}

// Departure represents one scheduled train leaving the station
type Departure struct {
	Time        string `json:"time"`
	Line        Line   `json:"line"`
	Platform    Label  `json:"platform"`
	Type        string `json:"type"`
	Destination string `json:"destination"`

	// Minutes is Time as minutes since midnight, filled in by the loader
	Minutes int `json:"-"`
}

// DirectionalTable is every departure for one direction, ascending by Minutes.
// Supported is false when the direction was not requested at all, which is
// different from a table that failed to load.
type DirectionalTable struct {
	Direction  Direction   `json:"direction"`
	Supported  bool        `json:"supported"`
	Departures []Departure `json:"departures"`
}

// Snapshot is the timetable state produced by one load cycle
type Snapshot struct {
	ID       uuid.UUID                       `json:"id"`
	Date     time.Time                       `json:"date"`
	Variant  Variant                         `json:"variant"`
	Tables   map[Direction]*DirectionalTable `json:"tables"`
	LoadedAt time.Time                       `json:"loaded_at"`
}

// Table returns the table for d. Directions missing from the snapshot come
// back as an empty unsupported table.
func (s *Snapshot) Table(d Direction) DirectionalTable {
	if s != nil {
		if t, ok := s.Tables[d]; ok && t != nil {
			return *t
		}
	}
	return DirectionalTable{Direction: d, Departures: []Departure{}}
}

// Counts returns the number of departures per supported direction
func (s *Snapshot) Counts() map[Direction]int {
	counts := make(map[Direction]int, len(s.Tables))
	for d, t := range s.Tables {
		if t.Supported {
			counts[d] = len(t.Departures)
		}
	}
	return counts
}

// TableSummary is the API response format for one directional table
type TableSummary struct {
	Direction Direction `json:"direction"`
	Supported bool      `json:"supported"`
	Count     int       `json:"count"`
	First     string    `json:"first,omitempty"`
	Last      string    `json:"last,omitempty"`
}

// Summarize converts the snapshot tables to response format in display order
func (s *Snapshot) Summarize() []TableSummary {
	out := make([]TableSummary, 0, len(AllDirections))
	for _, d := range AllDirections {
		t := s.Table(d)
		sum := TableSummary{
			Direction: d,
			Supported: t.Supported,
			Count:     len(t.Departures),
		}
		if n := len(t.Departures); n > 0 {
			sum.First = t.Departures[0].Time
			sum.Last = t.Departures[n-1].Time
		}
		out = append(out, sum)
	}
	return out
}
