package auth

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// SessionKey is the store key holding the unlock timestamp
	SessionKey = "authTimestamp"
	// DefaultWindow is how long an unlock lasts
	DefaultWindow = 7 * 24 * time.Hour
)

// ClientKey scopes the session key to one client of a shared server
func ClientKey(clientID string) string {
	if clientID == "" {
		return SessionKey
	}
	return SessionKey + ":" + clientID
}

// FormatTimestamp encodes t as decimal milliseconds since the epoch
func FormatTimestamp(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// ParseTimestamp decodes a value written by FormatTimestamp
func ParseTimestamp(v string) (time.Time, error) {
	ms, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse session timestamp %q: %w", v, err)
	}
	return time.UnixMilli(ms), nil
}

// Valid reports whether a session issued at issued is still inside window
func Valid(issued, now time.Time, window time.Duration) bool {
	return now.Sub(issued) < window
}
