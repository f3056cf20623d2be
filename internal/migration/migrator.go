// Package migration moves onboarded agents from the legacy keyspace into
// acn:agents records with their secondary indexes.
package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/acnlabs/agentmigrate/internal/agent"
	"github.com/acnlabs/agentmigrate/internal/common"
	"github.com/acnlabs/agentmigrate/internal/constants"
	"github.com/acnlabs/agentmigrate/internal/kv"
	"github.com/acnlabs/agentmigrate/internal/legacy"
	"github.com/acnlabs/agentmigrate/internal/retry"
)

// Options controls one migration run.
type Options struct {
	// DryRun computes and reports the migration without writing anything.
	DryRun bool
	// DeleteOld sweeps the legacy keyspace after a run that migrated at least one agent.
	DeleteOld bool
	// VerifyBeforeDelete keeps legacy keys whose agent has no unified record.
	VerifyBeforeDelete bool
	// RepairIndexes recreates missing indexes of agents migrated by an earlier run.
	RepairIndexes bool
	// BatchSize is the SCAN COUNT hint.
	BatchSize int64
	// LockTTL is the lifetime of the advisory lock taken by non-dry runs.
	LockTTL time.Duration
	// Retry applies to per-record reads and writes. Nil uses the default policy.
	Retry *retry.Config
}

// DefaultOptions returns the options of a plain invocation: a dry run.
func DefaultOptions() Options {
	return Options{
		DryRun:        true,
		RepairIndexes: true,
		BatchSize:     constants.DefaultBatchSize,
		LockTTL:       constants.DefaultLockTTL,
	}
}

type Migrator struct {
	Store   kv.Store
	Options Options
	Logger  *common.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Run executes the migration. Per-record failures are collected in the
// result; a returned error is fatal (scan page, connection, lock) and comes
// with the partial result gathered so far.
func (m *Migrator) Run(ctx context.Context) (*Result, error) {
	opts := m.Options
	if opts.BatchSize <= 0 {
		opts.BatchSize = constants.DefaultBatchSize
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = constants.DefaultLockTTL
	}

	res := &Result{RunID: uuid.NewString(), DryRun: opts.DryRun, StartedAt: m.now()}
	log := m.logger().WithRun(res.RunID, opts.DryRun)
	defer func() { res.FinishedAt = m.now() }()

	store := kv.WithRetry(m.Store, opts.Retry)

	if !opts.DryRun {
		lock, err := AcquireLock(ctx, store, constants.LockKey, opts.LockTTL)
		if err != nil {
			return res, err
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("failed to release migration lock", "error", err)
			}
		}()
	}

	log.Info("building api key mapping")
	apiKeys, err := ResolveAPIKeys(ctx, store, opts.BatchSize)
	if err != nil {
		return res, fmt.Errorf("resolve api keys: %w", err)
	}
	res.APIKeys = len(apiKeys)
	log.Info("api key mapping built", "count", len(apiKeys))

	sc := kv.NewScanner(store, constants.LegacyAgentPrefix, opts.BatchSize)
	for sc.Next(ctx) {
		if err := m.migrateOne(ctx, store, opts, sc.Key(), apiKeys, res, log); err != nil {
			return res, err
		}
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("scan legacy agents: %w", err)
	}
	log.Info("migration pass finished",
		"pages", sc.Pages(),
		"migrated", res.Migrated, "skipped", res.Skipped, "errors", res.Errored, "repaired", res.Repaired)

	switch {
	case opts.DeleteOld && !opts.DryRun && res.Migrated > 0:
		sw := &Sweeper{Store: store, Batch: opts.BatchSize, Verify: opts.VerifyBeforeDelete, Logger: log.WithComponent("sweeper")}
		stats, err := sw.Sweep(ctx)
		res.Deleted, res.Kept = stats.Deleted, stats.Kept
		if err != nil {
			return res, fmt.Errorf("delete legacy data: %w", err)
		}
		res.Sweep = SweepDone
		log.Info("legacy data deleted", "deleted", stats.Deleted, "kept", stats.Kept)
	case opts.DeleteOld:
		res.Sweep = SweepGated
	default:
		res.Sweep = SweepNotRequested
	}
	return res, nil
}

// migrateOne handles a single legacy key. Only context errors are returned;
// everything else is recorded against the record.
func (m *Migrator) migrateOne(ctx context.Context, store kv.Store, opts Options, key string, apiKeys map[string]string, res *Result, log *common.Logger) error {
	id := legacy.IDFromKey(key)
	rlog := log.WithRecord(id)

	fail := func(stage string, err error) error {
		if isContextErr(err) {
			return err
		}
		rlog.Error("ERROR", "stage", stage, "error", err)
		res.addError(id, stage, err)
		return nil
	}

	fields, err := store.HGetAll(ctx, key)
	if err != nil {
		return fail(StageRead, err)
	}
	rec, err := legacy.Decode(key, fields)
	if errors.Is(err, legacy.ErrEmptyRecord) {
		rlog.Debug("legacy record vanished before read")
		return nil
	}
	if err != nil {
		return fail(StageRead, err)
	}

	exists, err := AlreadyMigrated(ctx, store, id)
	if err != nil {
		return fail(StageGuard, err)
	}
	if exists {
		res.Skipped++
		rlog.Info("SKIP", "reason", "already exists in new format")
		if opts.RepairIndexes {
			if err := m.repair(ctx, store, opts.DryRun, id, res, rlog); err != nil {
				return fail(StageRepair, err)
			}
		}
		return nil
	}

	out, err := Transform(rec, apiKeys[id], m.now())
	if err != nil {
		return fail(StageTransform, err)
	}
	owner := out.Owner
	if owner == "" {
		owner = "None"
	}
	rlog.Info("MIGRATE", "name", out.Name, "owner", owner, "claim", string(out.ClaimStatus))

	if !opts.DryRun {
		w := &Writer{Store: store}
		if err := w.Write(ctx, out); err != nil {
			return fail(StageWrite, err)
		}
	}
	res.Migrated++
	res.MigratedIDs = append(res.MigratedIDs, id)
	return nil
}

// repair recreates missing indexes for a record this migration wrote earlier.
func (m *Migrator) repair(ctx context.Context, store kv.Store, dryRun bool, id string, res *Result, log *common.Logger) error {
	dest, err := store.HGetAll(ctx, agent.Key(id))
	if err != nil {
		return err
	}
	if !IsOurs(dest) {
		return nil
	}
	missing, err := MissingIndexes(ctx, store, id, dest)
	if err != nil || len(missing) == 0 {
		return err
	}
	if dryRun {
		log.Info("REPAIR (dry run)", "indexes", missing)
		res.Repaired += len(missing)
		return nil
	}
	if err := RepairIndexes(ctx, store, id, dest, missing); err != nil {
		return err
	}
	log.Info("REPAIR", "indexes", missing)
	res.Repaired += len(missing)
	return nil
}

func (m *Migrator) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Migrator) logger() *common.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return common.GetLogger().WithComponent("migration")
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
