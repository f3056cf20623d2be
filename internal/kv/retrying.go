package kv

import (
	"context"
	"time"

	"github.com/acnlabs/agentmigrate/internal/retry"
)

// Retrying decorates a Store so that per-key operations are retried on
// transient failures. Scan and lock calls pass straight through: a failed
// page request is fatal for the run.
type Retrying struct {
	Store
	cfg *retry.Config
}

// WithRetry wraps store with the given retry policy (nil means the default).
func WithRetry(store Store, cfg *retry.Config) *Retrying {
	if cfg == nil {
		cfg = retry.DefaultRetryConfig()
	}
	return &Retrying{Store: store, cfg: cfg}
}

func (r *Retrying) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return retry.Value(ctx, r.cfg, func() (map[string]string, error) { return r.Store.HGetAll(ctx, key) })
}

func (r *Retrying) HSet(ctx context.Context, key string, fields map[string]string) error {
	return retry.WithRetry(ctx, r.cfg, func() error { return r.Store.HSet(ctx, key, fields) })
}

func (r *Retrying) Exists(ctx context.Context, key string) (bool, error) {
	return retry.Value(ctx, r.cfg, func() (bool, error) { return r.Store.Exists(ctx, key) })
}

func (r *Retrying) Type(ctx context.Context, key string) (string, error) {
	return retry.Value(ctx, r.cfg, func() (string, error) { return r.Store.Type(ctx, key) })
}

func (r *Retrying) Get(ctx context.Context, key string) (string, error) {
	return retry.Value(ctx, r.cfg, func() (string, error) { return r.Store.Get(ctx, key) })
}

func (r *Retrying) Set(ctx context.Context, key, value string) error {
	return retry.WithRetry(ctx, r.cfg, func() error { return r.Store.Set(ctx, key, value) })
}

func (r *Retrying) SAdd(ctx context.Context, key, member string) error {
	return retry.WithRetry(ctx, r.cfg, func() error { return r.Store.SAdd(ctx, key, member) })
}

func (r *Retrying) SIsMember(ctx context.Context, key, member string) (bool, error) {
	return retry.Value(ctx, r.cfg, func() (bool, error) { return r.Store.SIsMember(ctx, key, member) })
}

func (r *Retrying) Delete(ctx context.Context, key string) error {
	return retry.WithRetry(ctx, r.cfg, func() error { return r.Store.Delete(ctx, key) })
}

// AcquireLock is not retried; a second SET NX after an ambiguous failure
// could observe our own lock.
func (r *Retrying) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return r.Store.AcquireLock(ctx, key, token, ttl)
}
