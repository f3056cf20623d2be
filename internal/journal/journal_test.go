package journal

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/acnlabs/agentmigrate/internal/migration"
)

var t0 = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

func sampleRun(id string, started time.Time) Run {
	return Run{
		ID:         id,
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
		DeleteOld:  true,
		APIKeys:    4,
		Migrated:   3,
		Skipped:    1,
		Errored:    1,
		Deleted:    7,
		Errors:     []RunError{{AgentID: "bad", Stage: "transform", Message: "legacy record has no agent_id"}},
	}
}

func TestStore_RecordWithSQLMock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	tables, _ := TableNames{}.normalize()
	s := newStore(db, postgresDialect{}, tables)
	run := sampleRun("run-1", t0)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO migration_runs(id, started_at, finished_at, delete_old, api_keys, migrated, skipped, errored, deleted, repaired, fatal) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)")).
		WithArgs("run-1", t0, t0.Add(2*time.Second), true, 4, 3, 1, 1, 7, 0, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO migration_run_errors(run_id, agent_id, stage, message) VALUES($1,$2,$3,$4)")).
		WithArgs("run-1", "bad", "transform", "legacy record has no agent_id").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := s.Record(context.Background(), run); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStore_RecordRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	tables, _ := TableNames{}.normalize()
	s := newStore(db, sqliteDialect{}, tables)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO migration_runs").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	if err := s.Record(context.Background(), sampleRun("run-1", t0)); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStore_EnsureWithSQLMock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	tables, _ := TableNames{Runs: "runs", RunErrors: "run_errors"}.normalize()
	s := newStore(db, sqliteDialect{}, tables)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS runs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS run_errors").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.Ensure(context.Background()); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(Config{Type: "sqlite"}, dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	older := sampleRun("run-old", t0)
	newer := sampleRun("run-new", t0.Add(time.Hour))
	newer.Errors = nil
	newer.Fatal = "scan legacy agents: connection reset"
	for _, r := range []Run{older, newer} {
		if err := s.Record(ctx, r); err != nil {
			t.Fatalf("Record %s: %v", r.ID, err)
		}
	}

	runs, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-new" || runs[1].ID != "run-old" {
		t.Fatalf("unexpected order: %+v", runs)
	}
	if !runs[1].StartedAt.Equal(t0) || !runs[1].DeleteOld || runs[1].Migrated != 3 {
		t.Fatalf("unexpected run: %+v", runs[1])
	}
	if runs[0].Fatal != newer.Fatal || runs[1].Fatal != "" {
		t.Fatalf("fatal = %q / %q", runs[0].Fatal, runs[1].Fatal)
	}

	limited, err := s.List(ctx, 1)
	if err != nil || len(limited) != 1 || limited[0].ID != "run-new" {
		t.Fatalf("List(1) = %+v, %v", limited, err)
	}

	errs, err := s.Errors(ctx, "run-old")
	if err != nil {
		t.Fatalf("Errors: %v", err)
	}
	if len(errs) != 1 || errs[0] != older.Errors[0] {
		t.Fatalf("errors = %+v", errs)
	}

	if err := s.Record(ctx, older); err == nil {
		t.Fatalf("duplicate run id should fail")
	}
}

func TestOpen_UnsupportedType(t *testing.T) {
	if _, err := Open(Config{Type: "mysql"}, t.TempDir()); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
}

func TestFromResult(t *testing.T) {
	res := &migration.Result{
		RunID:      "r",
		StartedAt:  t0,
		FinishedAt: t0.Add(time.Second),
		Migrated:   2,
		Repaired:   1,
		Errored:    1,
		Errors:     []migration.RecordError{{ID: "x", Stage: migration.StageWrite, Err: errors.New("boom")}},
	}
	run := FromResult(res, false, errors.New("scan failed"))
	if run.ID != "r" || run.Migrated != 2 || run.Repaired != 1 || run.Fatal != "scan failed" {
		t.Fatalf("unexpected run: %+v", run)
	}
	if len(run.Errors) != 1 || run.Errors[0] != (RunError{AgentID: "x", Stage: "write", Message: "boom"}) {
		t.Fatalf("errors = %+v", run.Errors)
	}
}
