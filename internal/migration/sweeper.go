package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/acnlabs/agentmigrate/internal/agent"
	"github.com/acnlabs/agentmigrate/internal/common"
	"github.com/acnlabs/agentmigrate/internal/constants"
	"github.com/acnlabs/agentmigrate/internal/kv"
	"github.com/acnlabs/agentmigrate/internal/legacy"
)

// Sweeper deletes the legacy keyspace after a migration run.
type Sweeper struct {
	Store kv.Store
	Batch int64
	// Verify keeps legacy keys whose agent has no unified record. When false
	// every key under the legacy prefixes is deleted.
	Verify bool
	Logger *common.Logger
}

// SweepStats counts what a sweep did.
type SweepStats struct {
	Deleted int
	Kept    int
}

// Sweep runs one pass over the legacy agent prefix and one over the legacy
// API-key prefix. Errors are fatal.
func (s *Sweeper) Sweep(ctx context.Context) (SweepStats, error) {
	var stats SweepStats
	log := s.logger()
	if !s.Verify {
		log.Warn("deleting legacy keys without checking each was migrated")
	}

	err := kv.Each(ctx, s.Store, constants.LegacyAgentPrefix, s.Batch, func(key string) error {
		if s.Verify {
			ok, err := AlreadyMigrated(ctx, s.Store, legacy.IDFromKey(key))
			if err != nil {
				return fmt.Errorf("verify %s: %w", key, err)
			}
			if !ok {
				stats.Kept++
				log.Warn("keeping legacy agent with no unified record", "key", key)
				return nil
			}
		}
		if err := s.Store.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		stats.Deleted++
		return nil
	})
	if err != nil {
		return stats, err
	}

	err = kv.Each(ctx, s.Store, constants.LegacyAPIKeyPrefix, s.Batch, func(key string) error {
		if s.Verify {
			keep, err := s.keepAPIKey(ctx, key)
			if err != nil {
				return err
			}
			if keep {
				stats.Kept++
				return nil
			}
		}
		if err := s.Store.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		stats.Deleted++
		return nil
	})
	return stats, err
}

// keepAPIKey reports whether a legacy API-key entry points at an agent that
// was not migrated.
func (s *Sweeper) keepAPIKey(ctx context.Context, key string) (bool, error) {
	id, err := s.Store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("verify %s: %w", key, err)
	}
	if id == "" {
		return false, nil
	}
	ok, err := s.Store.Exists(ctx, agent.Key(id))
	if err != nil {
		return false, fmt.Errorf("verify %s: %w", key, err)
	}
	return !ok, nil
}

func (s *Sweeper) logger() *common.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return common.GetLogger().WithComponent("sweeper")
}
