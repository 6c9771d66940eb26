// Package kv provides the durable key-value stores that hold the auth
// session timestamp.
package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when the key has no value
var ErrNotFound = errors.New("kv: key not found")

// Store is a string key-value store
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open creates a store for backend: memory, sqlite, postgres or redis. dsn is
// a file path for sqlite, a connection string for postgres and a redis:// URL
// for redis.
func Open(ctx context.Context, backend, dsn string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(ctx, dsn)
	case "postgres", "postgresql":
		return NewPostgres(ctx, dsn)
	case "redis":
		return NewRedis(ctx, dsn)
	}
	return nil, fmt.Errorf("kv: unknown backend %q", backend)
}
