package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/acnlabs/agentmigrate/internal/constants"
	"github.com/acnlabs/agentmigrate/internal/kv"
)

// ResolveAPIKeys scans the legacy API-key index and returns agent id -> API key.
// When several keys point at the same agent the last one scanned wins.
// Entries that vanish mid-scan or hold an empty value are ignored.
func ResolveAPIKeys(ctx context.Context, store kv.Store, batch int64) (map[string]string, error) {
	byAgent := map[string]string{}
	sc := kv.NewScanner(store, constants.LegacyAPIKeyPrefix, batch)
	for sc.Next(ctx) {
		agentID, err := store.Get(ctx, sc.Key())
		if errors.Is(err, kv.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read api key index %s: %w", sc.Key(), err)
		}
		if agentID == "" {
			continue
		}
		byAgent[agentID] = sc.Suffix()
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return byAgent, nil
}
