package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jusunglee/hankyu-go/internal/auth"
	"github.com/jusunglee/hankyu-go/internal/config"
	"github.com/jusunglee/hankyu-go/internal/feed"
	"github.com/jusunglee/hankyu-go/internal/kv"
	"github.com/jusunglee/hankyu-go/internal/models"
	"github.com/jusunglee/hankyu-go/internal/query"
	"github.com/jusunglee/hankyu-go/internal/render"
	"github.com/jusunglee/hankyu-go/pkg/timetable"
)

func main() {
	var (
		station = flag.String("station", "juso", "Departure station (juso or umeda)")
		at      = flag.String("time", "", "Departure time HH:MM (default: now)")
		limit   = flag.Int("limit", 0, "Number of departures (default: RESULT_LIMIT)")
		data    = flag.String("data", "", "Timetable directory or base URL (overrides DATA_URL)")
		demo    = flag.Bool("demo", false, "Use the built-in sample timetable and skip the password gate")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if *data != "" {
		cfg.DataSource = *data
	}

	ctx := context.Background()

	if !*demo {
		sessions, err := kv.Open(ctx, cfg.KVBackend, cfg.KVDSN)
		if err != nil {
			slog.Error("Failed to open session store", "backend", cfg.KVBackend, "error", err)
			os.Exit(1)
		}
		newAuth := func() (auth.Authenticator, error) {
			return auth.NewRemoteAuthenticator(cfg.AuthURL, cfg.AuthTimeout)
		}
		err = unlock(ctx, sessions, cfg.SessionWindow, newAuth, os.Stdin, os.Stdout)
		sessions.Close()
		if err != nil {
			fmt.Fprintln(os.Stderr, render.MessageFor(err))
			slog.Error("Locked", "error", err)
			os.Exit(1)
		}
	}

	tc := timetable.Config{
		DataSource:  cfg.DataSource,
		Lines:       cfg.Lines,
		Directions:  cfg.Directions,
		Location:    cfg.Location,
		ResultLimit: cfg.ResultLimit,
		LoadTimeout: cfg.LoadTimeout,
	}
	if *demo {
		tc.Fetcher = feed.NewFSFetcher(feed.CreateSampleTimetable())
	}

	client, err := timetable.NewLocal(ctx, tc)
	if err != nil {
		fmt.Fprintln(os.Stderr, render.MessageFor(err))
		slog.Error("Failed to load timetable", "source", cfg.DataSource, "error", err)
		os.Exit(1)
	}
	defer client.Close()

	req := query.Request{Station: *station, Time: *at, Limit: *limit}
	if req.Time == "" {
		req.Time = models.MinutesToTime(models.ClockMinutes(time.Now().In(cfg.Location)))
	}

	res, err := client.NextDepartures(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, render.MessageFor(err))
		os.Exit(2)
	}

	if err := render.WriteText(os.Stdout, res); err != nil {
		slog.Error("Failed to write result", "error", err)
		os.Exit(1)
	}
}

// unlock checks the stored session and, when locked, prompts until the
// password is accepted or input ends. newAuth runs only when a prompt is
// needed, so a stored session works without AUTH_URL.
func unlock(ctx context.Context, sessions kv.Store, window time.Duration, newAuth func() (auth.Authenticator, error), in io.Reader, out io.Writer) error {
	state, err := auth.NewGate(sessions, nil, window).Check(ctx, auth.SessionKey)
	if err != nil {
		return err
	}
	if state == auth.Unlocked {
		return nil
	}

	authenticator, err := newAuth()
	if err != nil {
		return err
	}
	gate := auth.NewGate(sessions, authenticator, window)

	reader := bufio.NewReader(in)
	for {
		fmt.Fprint(out, "パスワード: ")
		line, readErr := reader.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return readErr
		}
		password := strings.TrimSpace(line)

		if password != "" {
			fmt.Fprintln(out, render.MsgAuthInProgress)
		}
		err := gate.Unlock(ctx, auth.SessionKey, password)
		if err == nil {
			return nil
		}
		if !errors.Is(err, auth.ErrWrongPassword) && !errors.Is(err, auth.ErrEmptyPassword) {
			return err
		}
		if readErr == io.EOF {
			return err
		}
		fmt.Fprintln(out, render.MessageFor(err))
	}
}
