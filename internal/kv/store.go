// Package kv holds the key-value operations the migration engine needs from
// the live store, a Redis implementation of them, and the cursor scanner used
// to enumerate a key prefix.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("kv: key not found")

// Store is the abstract set of operations the migration uses.
// Implementations are not required to be safe for concurrent use.
type Store interface {
	// Scan returns one page of keys matching the glob pattern and the cursor
	// for the next page. A returned cursor of 0 means enumeration is complete.
	Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error)

	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	Exists(ctx context.Context, key string) (bool, error)
	Type(ctx context.Context, key string) (string, error)
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	SAdd(ctx context.Context, key, member string) error
	SIsMember(ctx context.Context, key, member string) (bool, error)
	Delete(ctx context.Context, key string) error

	// AcquireLock sets key to token only if it does not exist, expiring after ttl.
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	// ReleaseLock deletes key only if it still holds token.
	ReleaseLock(ctx context.Context, key, token string) (bool, error)

	Close() error
}
