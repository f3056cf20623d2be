package migration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveAPIKeys(t *testing.T) {
	mr, st := newTestStore(t)
	seedAPIKey(t, mr, "k1", "a1")
	seedAPIKey(t, mr, "k2", "a2")
	seedAPIKey(t, mr, "empty", "")
	require.NoError(t, mr.Set("acn:agents:by_api_key:new", "a9"))

	got, err := ResolveAPIKeys(context.Background(), st, 10)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"a1": "k1", "a2": "k2"}, got)
}

func TestResolveAPIKeys_LastWriteWins(t *testing.T) {
	mr, st := newTestStore(t)
	seedAPIKey(t, mr, "first", "a1")
	seedAPIKey(t, mr, "second", "a1")

	got, err := ResolveAPIKeys(context.Background(), st, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Contains(t, []string{"first", "second"}, got["a1"])
}

func TestResolveAPIKeys_WrongTypeIsFatal(t *testing.T) {
	mr, st := newTestStore(t)
	mr.HSet("onboarded_api_key:weird", "f", "v")

	_, err := ResolveAPIKeys(context.Background(), st, 10)
	require.Error(t, err)
}
