package migration

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/acnlabs/agentmigrate/internal/common"
	"github.com/acnlabs/agentmigrate/internal/kv"
	"github.com/acnlabs/agentmigrate/internal/retry"
)

func newTestStore(t *testing.T) (*miniredis.Miniredis, *kv.RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	st := kv.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = st.Close() })
	return mr, st
}

func seedAgent(t *testing.T, mr *miniredis.Miniredis, id string, fv ...string) {
	t.Helper()
	mr.HSet("onboarded_agent:"+id, append([]string{"agent_id", id}, fv...)...)
}

func seedAPIKey(t *testing.T, mr *miniredis.Miniredis, key, id string) {
	t.Helper()
	require.NoError(t, mr.Set("onboarded_api_key:"+key, id))
}

func newTestMigrator(st kv.Store, mutate func(*Options)) *Migrator {
	opts := DefaultOptions()
	opts.Retry = retry.NoRetry()
	if mutate != nil {
		mutate(&opts)
	}
	return &Migrator{Store: st, Options: opts, Logger: common.NewDiscardLogger(), Now: func() time.Time { return fixedNow }}
}

// keysWithPrefix lists keys in mr that start with prefix, sorted.
func keysWithPrefix(mr *miniredis.Miniredis, prefix string) []string {
	var out []string
	for _, k := range mr.Keys() {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// snapshot captures every hash and string under prefix.
func snapshot(t *testing.T, mr *miniredis.Miniredis, prefix string) map[string]any {
	t.Helper()
	out := map[string]any{}
	for _, k := range keysWithPrefix(mr, prefix) {
		switch mr.Type(k) {
		case "hash":
			fields, err := mr.HKeys(k)
			require.NoError(t, err)
			h := map[string]string{}
			for _, f := range fields {
				h[f] = mr.HGet(k, f)
			}
			out[k] = h
		case "string":
			v, err := mr.Get(k)
			require.NoError(t, err)
			out[k] = v
		case "set":
			m, err := mr.Members(k)
			require.NoError(t, err)
			out[k] = m
		}
	}
	return out
}

var errBoom = errors.New("WRONGTYPE simulated write failure")

// failingStore fails HSet for one key.
type failingStore struct {
	kv.Store
	failKey string
}

func (f *failingStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if key == f.failKey {
		return errBoom
	}
	return f.Store.HSet(ctx, key, fields)
}
