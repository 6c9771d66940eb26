package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jusunglee/hankyu-go/internal/kv"
)

type fakeAuthenticator struct {
	password string
	err      error
	calls    int
}

func (f *fakeAuthenticator) Verify(ctx context.Context, password string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return password == f.password, nil
}

func newTestGate(t *testing.T, now *time.Time) (*Gate, *kv.Memory, *fakeAuthenticator) {
	t.Helper()
	store := kv.NewMemory()
	fa := &fakeAuthenticator{password: "umeda"}
	g := NewGate(store, fa, 0)
	g.now = func() time.Time { return *now }
	return g, store, fa
}

func TestGateUnlockAndExpiry(t *testing.T) {
	ctx := context.Background()
	issued := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	now := issued
	g, store, _ := newTestGate(t, &now)

	state, err := g.Check(ctx, SessionKey)
	require.NoError(t, err)
	assert.Equal(t, Locked, state)

	require.NoError(t, g.Unlock(ctx, SessionKey, "umeda"))

	stored, err := store.Get(ctx, SessionKey)
	require.NoError(t, err)
	assert.Equal(t, FormatTimestamp(issued), stored)

	tests := []struct {
		name     string
		elapsed  time.Duration
		expected State
	}{
		{"immediately", 0, Unlocked},
		{"six days 23h59m", 6*24*time.Hour + 23*time.Hour + 59*time.Minute, Unlocked},
		{"one millisecond before seven days", 7*24*time.Hour - time.Millisecond, Unlocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now = issued.Add(tt.elapsed)
			state, err := g.Check(ctx, SessionKey)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, state)
		})
	}

	t.Run("seven days and one second", func(t *testing.T) {
		now = issued.Add(7*24*time.Hour + time.Second)
		state, err := g.Check(ctx, SessionKey)
		require.NoError(t, err)
		assert.Equal(t, Locked, state)

		_, err = store.Get(ctx, SessionKey)
		assert.ErrorIs(t, err, kv.ErrNotFound, "expired session must be cleared")
	})
}

func TestGateExactlySevenDaysIsExpired(t *testing.T) {
	ctx := context.Background()
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := issued
	g, _, _ := newTestGate(t, &now)

	require.NoError(t, g.Unlock(ctx, SessionKey, "umeda"))
	now = issued.Add(DefaultWindow)

	state, err := g.Check(ctx, SessionKey)
	require.NoError(t, err)
	assert.Equal(t, Locked, state)
}

func TestGateUnlockErrors(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	g, store, fa := newTestGate(t, &now)

	err := g.Unlock(ctx, SessionKey, "")
	assert.ErrorIs(t, err, ErrEmptyPassword)
	assert.Equal(t, 0, fa.calls, "empty password must not reach the endpoint")

	err = g.Unlock(ctx, SessionKey, "juso")
	assert.ErrorIs(t, err, ErrWrongPassword)

	fa.err = &AuthError{Err: errors.New("dial tcp: connection refused")}
	err = g.Unlock(ctx, SessionKey, "umeda")
	var ae *AuthError
	assert.ErrorAs(t, err, &ae)
	assert.NotErrorIs(t, err, ErrWrongPassword)

	_, err = store.Get(ctx, SessionKey)
	assert.ErrorIs(t, err, kv.ErrNotFound, "failed unlocks must not store a session")

	// The user may retry after any failure.
	fa.err = nil
	require.NoError(t, g.Unlock(ctx, SessionKey, "umeda"))
	state, err := g.Check(ctx, SessionKey)
	require.NoError(t, err)
	assert.Equal(t, Unlocked, state)
}

func TestGateUnreadableTimestamp(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	g, store, _ := newTestGate(t, &now)

	require.NoError(t, store.Set(ctx, SessionKey, "not-a-number"))

	state, err := g.Check(ctx, SessionKey)
	require.NoError(t, err)
	assert.Equal(t, Locked, state)

	_, err = store.Get(ctx, SessionKey)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestGateClientKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	g, _, _ := newTestGate(t, &now)

	alice := ClientKey("6f1d7a52-7f4e-4c0e-9d0c-2a8f5b1c9e11")
	bob := ClientKey("0b5a2c7e-3d4f-4a1b-8c9d-1e2f3a4b5c6d")

	require.NoError(t, g.Unlock(ctx, alice, "umeda"))

	state, err := g.Check(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, Unlocked, state)

	state, err = g.Check(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, Locked, state)

	assert.Equal(t, SessionKey, ClientKey(""))
}

func TestTimestampRoundTrip(t *testing.T) {
	ts := time.UnixMilli(1760866200123)
	assert.Equal(t, "1760866200123", FormatTimestamp(ts))

	parsed, err := ParseTimestamp(" 1760866200123 ")
	require.NoError(t, err)
	assert.True(t, parsed.Equal(ts))

	_, err = ParseTimestamp("NaN")
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "locked", Locked.String())
	assert.Equal(t, "unlocked", Unlocked.String())
}
