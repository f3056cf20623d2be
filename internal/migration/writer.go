package migration

import (
	"context"
	"fmt"

	"github.com/acnlabs/agentmigrate/internal/agent"
	"github.com/acnlabs/agentmigrate/internal/constants"
	"github.com/acnlabs/agentmigrate/internal/kv"
)

// Writer persists a unified record and its secondary indexes. The steps are
// separate store calls; a failure part-way leaves the earlier ones applied,
// which the index repair pass fixes on the next run.
type Writer struct {
	Store kv.Store
}

// Write performs, in order: the record hash, the API-key index, the owner
// set, the unclaimed set, and the default subnet set.
func (w *Writer) Write(ctx context.Context, rec agent.Record) error {
	h, err := rec.Hash()
	if err != nil {
		return err
	}
	if err := w.Store.HSet(ctx, agent.Key(rec.AgentID), h); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if rec.APIKey != "" {
		if err := w.Store.Set(ctx, agent.APIKeyIndexKey(rec.APIKey), rec.AgentID); err != nil {
			return fmt.Errorf("write api key index: %w", err)
		}
	}
	if rec.Owner != "" {
		if err := w.Store.SAdd(ctx, agent.OwnerIndexKey(rec.Owner), rec.AgentID); err != nil {
			return fmt.Errorf("write owner index: %w", err)
		}
	}
	if rec.ClaimStatus == agent.Unclaimed {
		if err := w.Store.SAdd(ctx, constants.UnclaimedSet, rec.AgentID); err != nil {
			return fmt.Errorf("write unclaimed set: %w", err)
		}
	}
	if err := w.Store.SAdd(ctx, constants.PublicSubnetAgents, rec.AgentID); err != nil {
		return fmt.Errorf("write subnet membership: %w", err)
	}
	return nil
}
