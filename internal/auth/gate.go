// Package auth implements the password gate in front of the timetable: a
// remote password check and a timestamp session kept in a kv.Store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jusunglee/hankyu-go/internal/kv"
)

// State of the gate for one session key
type State int

const (
	Locked State = iota
	Unlocked
)

func (s State) String() string {
	if s == Unlocked {
		return "unlocked"
	}
	return "locked"
}

var (
	// ErrEmptyPassword is returned before any remote call when no password is given
	ErrEmptyPassword = errors.New("password is required")
	// ErrWrongPassword means the endpoint answered and rejected the password
	ErrWrongPassword = errors.New("wrong password")
)

// AuthError means the password could not be checked at all
type AuthError struct {
	Status int
	Err    error
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("auth request failed (HTTP %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("auth request failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Authenticator checks a password. A rejected password is (false, nil); an
// error means no answer was obtained.
type Authenticator interface {
	Verify(ctx context.Context, password string) (bool, error)
}

// Gate decides between Locked and Unlocked from the stored timestamp
type Gate struct {
	store  kv.Store
	auth   Authenticator
	window time.Duration
	now    func() time.Time
}

// NewGate creates a gate. A non-positive window uses DefaultWindow.
func NewGate(store kv.Store, auth Authenticator, window time.Duration) *Gate {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Gate{
		store:  store,
		auth:   auth,
		window: window,
		now:    time.Now,
	}
}

// Check returns the state for key. Expired or unreadable timestamps are
// removed from the store.
func (g *Gate) Check(ctx context.Context, key string) (State, error) {
	v, err := g.store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return Locked, nil
	}
	if err != nil {
		return Locked, fmt.Errorf("check session: %w", err)
	}

	issued, err := ParseTimestamp(v)
	if err == nil && Valid(issued, g.now(), g.window) {
		return Unlocked, nil
	}
	if err != nil {
		slog.Warn("Discarding unreadable session timestamp", "key", key, "error", err)
	}

	if err := g.store.Delete(ctx, key); err != nil {
		return Locked, fmt.Errorf("clear expired session: %w", err)
	}
	return Locked, nil
}

// Unlock verifies password and, when accepted, records the session for key
func (g *Gate) Unlock(ctx context.Context, key, password string) error {
	if password == "" {
		return ErrEmptyPassword
	}

	ok, err := g.auth.Verify(ctx, password)
	if err != nil {
		return err
	}
	if !ok {
		return ErrWrongPassword
	}

	if err := g.store.Set(ctx, key, FormatTimestamp(g.now())); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Window returns how long an unlock lasts
func (g *Gate) Window() time.Duration {
	return g.window
}
