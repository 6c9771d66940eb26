package timetable

import (
	"context"
	"fmt"
	"time"

	"github.com/jusunglee/hankyu-go/internal/feed"
	"github.com/jusunglee/hankyu-go/internal/models"
	"github.com/jusunglee/hankyu-go/internal/query"
	"github.com/jusunglee/hankyu-go/internal/store"
)

// LocalClient implements the Client interface for local usage
// Holds the snapshot in memory and refreshes it in the background
type LocalClient struct {
	store       *store.Store
	feedManager *feed.Manager
	resultLimit int
	watching    bool
}

// NewLocal creates a new local timetable client
// The first load runs before returning; a failure aborts construction.
// A positive UpdateInterval starts the background refresh loop.
func NewLocal(ctx context.Context, config Config) (*LocalClient, error) {
	fetcher := config.Fetcher
	if fetcher == nil {
		var err error
		fetcher, err = feed.NewFetcher(config.DataSource)
		if err != nil {
			return nil, err
		}
	}

	s := store.NewStore()
	loader := feed.NewLoader(fetcher, config.Directions, config.LoadTimeout)
	fm := feed.NewManager(loader, s, config.Lines, config.Location, config.UpdateInterval).WithClock(config.Clock)

	if _, err := fm.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("initial timetable load: %w", err)
	}

	c := &LocalClient{
		store:       s,
		feedManager: fm,
		resultLimit: config.ResultLimit,
	}
	if config.UpdateInterval > 0 {
		fm.Start()
		c.watching = true
	}
	return c, nil
}

// Close gracefully shuts down the local client
// Must be called to stop background goroutines and prevent leaks
func (c *LocalClient) Close() {
	if c.watching {
		c.feedManager.Stop()
		c.watching = false
	}
}

func (c *LocalClient) NextDepartures(req query.Request) (*query.Result, error) {
	snap, _ := c.store.Snapshot()
	return query.Run(snap, req, c.resultLimit)
}

func (c *LocalClient) Snapshot() (*models.Snapshot, error) {
	snap, ok := c.store.Snapshot()
	if !ok {
		return nil, query.ErrNoSnapshot
	}
	return snap, nil
}

func (c *LocalClient) Reload(ctx context.Context) (*models.Snapshot, error) {
	return c.feedManager.Refresh(ctx)
}

func (c *LocalClient) GetLastUpdate() time.Time {
	return c.store.GetLastUpdate()
}

func (c *LocalClient) GetLastFailure() (time.Time, error) {
	return c.store.LastFailure()
}
