// Package journal keeps a history of migration runs in SQLite or PostgreSQL.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/acnlabs/agentmigrate/internal/common"
	"github.com/acnlabs/agentmigrate/internal/migration"
)

// Run is one recorded migration run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	DeleteOld  bool
	APIKeys    int
	Migrated   int
	Skipped    int
	Errored    int
	Deleted    int
	Repaired   int
	// Fatal is the error that aborted the run, empty when it completed.
	Fatal  string
	Errors []RunError
}

// RunError is a per-record failure of a run.
type RunError struct {
	AgentID string
	Stage   string
	Message string
}

// FromResult converts an engine result (and the fatal error, if the run
// aborted) into a journal entry.
func FromResult(res *migration.Result, deleteOld bool, fatal error) Run {
	run := Run{
		ID:         res.RunID,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		DeleteOld:  deleteOld,
		APIKeys:    res.APIKeys,
		Migrated:   res.Migrated,
		Skipped:    res.Skipped,
		Errored:    res.Errored,
		Deleted:    res.Deleted,
		Repaired:   res.Repaired,
	}
	if fatal != nil {
		run.Fatal = fatal.Error()
	}
	for _, e := range res.Errors {
		run.Errors = append(run.Errors, RunError{AgentID: e.ID, Stage: e.Stage, Message: e.Err.Error()})
	}
	return run
}

// Store writes and reads the run journal.
type Store struct {
	db      *sql.DB
	dialect dialect
	tables  TableNames
}

// Open connects to the configured backend and creates the tables. dir is the
// default location of the SQLite file.
func Open(cfg Config, dir string) (*Store, error) {
	tables, err := cfg.Tables.normalize()
	if err != nil {
		return nil, err
	}
	var (
		d   dialect
		dsn string
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", TypeSQLite, "sqlite3":
		d, dsn = sqliteDialect{}, cfg.SQLite.DSN(dir)
	case TypePostgres, "postgresql", "pg":
		d = postgresDialect{}
		if dsn, err = cfg.Postgres.BuildDSN(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported journal type: %s", cfg.Type)
	}

	db, err := d.Connect(dsn)
	if err != nil {
		return nil, err
	}
	s := newStore(db, d, tables)
	if err := s.Ensure(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	common.GetLogger().WithStore(d.Name()).Info("journal database ready")
	return s, nil
}

func newStore(db *sql.DB, d dialect, tables TableNames) *Store {
	return &Store{db: db, dialect: d, tables: tables}
}

// Ensure creates the journal tables when missing.
func (s *Store) Ensure(ctx context.Context) error {
	for _, q := range s.dialect.EnsureStatements(s.tables) {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure journal schema: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = s.dialect.Placeholder(i + 1)
	}
	return strings.Join(ph, ",")
}

// Record stores a run and its per-record errors in one transaction.
func (s *Store) Record(ctx context.Context, run Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin journal tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var fatal any
	if run.Fatal != "" {
		fatal = run.Fatal
	}
	// #nosec G201 -- only the validated table name is interpolated; values are bind parameters
	q := fmt.Sprintf("INSERT INTO %s(id, started_at, finished_at, delete_old, api_keys, migrated, skipped, errored, deleted, repaired, fatal) VALUES(%s)",
		s.tables.Runs, s.placeholders(11))
	if _, err := tx.ExecContext(ctx, q, run.ID,
		s.dialect.TimeToStorage(run.StartedAt), s.dialect.TimeToStorage(run.FinishedAt),
		s.dialect.BoolToStorage(run.DeleteOld), run.APIKeys,
		run.Migrated, run.Skipped, run.Errored, run.Deleted, run.Repaired, fatal); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	// #nosec G201 -- validated table name only
	eq := fmt.Sprintf("INSERT INTO %s(run_id, agent_id, stage, message) VALUES(%s)", s.tables.RunErrors, s.placeholders(4))
	for _, e := range run.Errors {
		if _, err := tx.ExecContext(ctx, eq, run.ID, e.AgentID, e.Stage, e.Message); err != nil {
			return fmt.Errorf("insert run error for %s: %w", e.AgentID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit journal tx: %w", err)
	}
	return nil
}

// List returns the most recent runs, newest first. limit <= 0 means all.
// Per-record errors are not loaded; use Errors.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	// #nosec G201 -- validated table name only
	q := fmt.Sprintf("SELECT id, started_at, finished_at, delete_old, api_keys, migrated, skipped, errored, deleted, repaired, fatal FROM %s ORDER BY started_at DESC", s.tables.Runs)
	var args []any
	if limit > 0 {
		q += " LIMIT " + s.dialect.Placeholder(1)
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished any
			fatal             sql.NullString
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.DeleteOld, &r.APIKeys,
			&r.Migrated, &r.Skipped, &r.Errored, &r.Deleted, &r.Repaired, &fatal); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = s.dialect.TimeFromStorage(started); err != nil {
			return nil, fmt.Errorf("run %s started_at: %w", r.ID, err)
		}
		if r.FinishedAt, err = s.dialect.TimeFromStorage(finished); err != nil {
			return nil, fmt.Errorf("run %s finished_at: %w", r.ID, err)
		}
		r.Fatal = fatal.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// Errors returns the per-record errors recorded for runID.
func (s *Store) Errors(ctx context.Context, runID string) ([]RunError, error) {
	// #nosec G201 -- validated table name only
	q := fmt.Sprintf("SELECT agent_id, stage, message FROM %s WHERE run_id = %s ORDER BY id ASC", s.tables.RunErrors, s.dialect.Placeholder(1))
	rows, err := s.db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("list run errors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []RunError
	for rows.Next() {
		var e RunError
		if err := rows.Scan(&e.AgentID, &e.Stage, &e.Message); err != nil {
			return nil, fmt.Errorf("scan run error: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
