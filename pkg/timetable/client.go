package timetable

import (
	"context"
	"time"

	"github.com/jusunglee/hankyu-go/internal/feed"
	"github.com/jusunglee/hankyu-go/internal/models"
	"github.com/jusunglee/hankyu-go/internal/query"
)

// Client defines the interface for querying the Juso/Umeda timetable
// Abstracts where the snapshot comes from behind a common interface
type Client interface {
	NextDepartures(req query.Request) (*query.Result, error)

	Snapshot() (*models.Snapshot, error)
	Reload(ctx context.Context) (*models.Snapshot, error)

	GetLastUpdate() time.Time
	GetLastFailure() (time.Time, error)
}

// Config holds configuration for the timetable client
// DataSource is a base URL or a directory laid out as <direction>/<line>_<variant>.json
type Config struct {
	DataSource     string
	Lines          []models.Line
	Directions     []models.Direction
	Location       *time.Location
	ResultLimit    int
	LoadTimeout    time.Duration
	UpdateInterval time.Duration

	// Fetcher overrides DataSource when set
	Fetcher feed.Fetcher
	// Clock overrides time.Now when set
	Clock func() time.Time
}

// DefaultConfig returns default configuration
// Both directions and all three lines, five results, hourly refresh
func DefaultConfig() Config {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		loc = time.FixedZone("JST", 9*60*60)
	}
	return Config{
		DataSource:     "./data",
		Lines:          models.AllLines,
		Directions:     models.AllDirections,
		Location:       loc,
		ResultLimit:    5,
		LoadTimeout:    10 * time.Second,
		UpdateInterval: time.Hour,
	}
}
