package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/acnlabs/agentmigrate/internal/agent"
	"github.com/acnlabs/agentmigrate/internal/constants"
	"github.com/acnlabs/agentmigrate/internal/kv"
)

// Index names a secondary index of a unified record.
type Index string

const (
	IndexAPIKey    Index = "api_key"
	IndexOwner     Index = "owner"
	IndexUnclaimed Index = "unclaimed"
	IndexSubnet    Index = "subnet"
)

// AlreadyMigrated reports whether a unified record exists for id.
func AlreadyMigrated(ctx context.Context, store kv.Store, id string) (bool, error) {
	return store.Exists(ctx, agent.Key(id))
}

// IsOurs reports whether a unified record hash carries this migration's
// provenance marker in its metadata.
func IsOurs(fields map[string]string) bool {
	meta := fields[agent.FieldMetadata]
	if !gjson.Valid(meta) {
		return false
	}
	return gjson.Get(meta, "migrated_from").String() == constants.MigratedFromTag
}

// MissingIndexes checks the indexes implied by an existing unified record and
// returns the ones that are absent. An API-key index pointing at another agent
// is left alone and not reported.
func MissingIndexes(ctx context.Context, store kv.Store, id string, fields map[string]string) ([]Index, error) {
	var missing []Index

	if key := fields[agent.FieldAPIKey]; key != "" {
		_, err := store.Get(ctx, agent.APIKeyIndexKey(key))
		switch {
		case errors.Is(err, kv.ErrNotFound):
			missing = append(missing, IndexAPIKey)
		case err != nil:
			return nil, fmt.Errorf("check api key index: %w", err)
		}
	}
	if owner := fields[agent.FieldOwner]; owner != "" {
		ok, err := store.SIsMember(ctx, agent.OwnerIndexKey(owner), id)
		if err != nil {
			return nil, fmt.Errorf("check owner index: %w", err)
		}
		if !ok {
			missing = append(missing, IndexOwner)
		}
	}
	if fields[agent.FieldClaimStatus] == string(agent.Unclaimed) {
		ok, err := store.SIsMember(ctx, constants.UnclaimedSet, id)
		if err != nil {
			return nil, fmt.Errorf("check unclaimed set: %w", err)
		}
		if !ok {
			missing = append(missing, IndexUnclaimed)
		}
	}
	ok, err := store.SIsMember(ctx, constants.PublicSubnetAgents, id)
	if err != nil {
		return nil, fmt.Errorf("check subnet membership: %w", err)
	}
	if !ok {
		missing = append(missing, IndexSubnet)
	}
	return missing, nil
}

// RepairIndexes recreates the given indexes from the record's own fields.
func RepairIndexes(ctx context.Context, store kv.Store, id string, fields map[string]string, missing []Index) error {
	for _, idx := range missing {
		var err error
		switch idx {
		case IndexAPIKey:
			err = store.Set(ctx, agent.APIKeyIndexKey(fields[agent.FieldAPIKey]), id)
		case IndexOwner:
			err = store.SAdd(ctx, agent.OwnerIndexKey(fields[agent.FieldOwner]), id)
		case IndexUnclaimed:
			err = store.SAdd(ctx, constants.UnclaimedSet, id)
		case IndexSubnet:
			err = store.SAdd(ctx, constants.PublicSubnetAgents, id)
		default:
			err = fmt.Errorf("unknown index %q", idx)
		}
		if err != nil {
			return fmt.Errorf("repair %s index: %w", idx, err)
		}
	}
	return nil
}
