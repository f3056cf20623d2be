package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/acnlabs/agentmigrate/internal/kv"
)

// ErrLockHeld is returned when another runner holds the migration lock.
var ErrLockHeld = errors.New("migration lock is held by another run")

// Lock is an advisory lock on a single store key.
type Lock struct {
	store kv.Store
	key   string
	token string
}

// AcquireLock takes the lock at key for ttl. The ttl bounds how long a
// crashed runner keeps others out.
func AcquireLock(ctx context.Context, store kv.Store, key string, ttl time.Duration) (*Lock, error) {
	token := uuid.NewString()
	ok, err := store.AcquireLock(ctx, key, token, ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (%s)", ErrLockHeld, key)
	}
	return &Lock{store: store, key: key, token: token}, nil
}

// Token returns the owner token stored in the lock key.
func (l *Lock) Token() string { return l.token }

// Release drops the lock if it is still ours. Releasing an expired or
// stolen lock is not an error.
func (l *Lock) Release(ctx context.Context) error {
	if _, err := l.store.ReleaseLock(ctx, l.key, l.token); err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	return nil
}
