package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/acnlabs/agentmigrate/internal/constants"
)

// dialect hides the SQL differences between the journal backends.
type dialect interface {
	Name() string
	Placeholder(index int) string
	Connect(dsn string) (*sql.DB, error)
	EnsureStatements(t TableNames) []string
	BoolToStorage(b bool) any
	TimeToStorage(t time.Time) any
	TimeFromStorage(v any) (time.Time, error)
}

// sqliteTimeLayout is fixed width so that text ordering is chronological.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return TypeSQLite }

func (sqliteDialect) Placeholder(int) string { return "?" }

func (sqliteDialect) Connect(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	db.SetMaxOpenConns(constants.DefaultSQLiteMaxConnections)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(constants.DefaultMaxConnLifetime)
	return db, nil
}

func (sqliteDialect) EnsureStatements(t TableNames) []string {
	return []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, started_at TEXT NOT NULL, finished_at TEXT NOT NULL, delete_old INTEGER NOT NULL DEFAULT 0, api_keys INTEGER NOT NULL, migrated INTEGER NOT NULL, skipped INTEGER NOT NULL, errored INTEGER NOT NULL, deleted INTEGER NOT NULL, repaired INTEGER NOT NULL, fatal TEXT NULL)", t.Runs),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY AUTOINCREMENT, run_id TEXT NOT NULL REFERENCES %s(id) ON DELETE CASCADE, agent_id TEXT NOT NULL, stage TEXT NOT NULL, message TEXT NOT NULL)", t.RunErrors, t.Runs),
	}
}

func (sqliteDialect) BoolToStorage(b bool) any {
	if b {
		return 1
	}
	return 0
}

func (sqliteDialect) TimeToStorage(t time.Time) any { return t.UTC().Format(sqliteTimeLayout) }

func (sqliteDialect) TimeFromStorage(v any) (time.Time, error) {
	switch x := v.(type) {
	case string:
		return time.Parse(time.RFC3339Nano, x)
	case []byte:
		return time.Parse(time.RFC3339Nano, string(x))
	case time.Time:
		return x.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unexpected time value %T", v)
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return TypePostgres }

func (postgresDialect) Placeholder(index int) string { return fmt.Sprintf("$%d", index) }

func (postgresDialect) Connect(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}
	db.SetMaxOpenConns(constants.DefaultPostgresMaxConnections)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(constants.DefaultMaxConnLifetime)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL database: %w", err)
	}
	return db, nil
}

func (postgresDialect) EnsureStatements(t TableNames) []string {
	return []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, started_at TIMESTAMPTZ NOT NULL, finished_at TIMESTAMPTZ NOT NULL, delete_old BOOLEAN NOT NULL DEFAULT FALSE, api_keys INTEGER NOT NULL, migrated INTEGER NOT NULL, skipped INTEGER NOT NULL, errored INTEGER NOT NULL, deleted INTEGER NOT NULL, repaired INTEGER NOT NULL, fatal TEXT NULL)", t.Runs),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id SERIAL PRIMARY KEY, run_id TEXT NOT NULL REFERENCES %s(id) ON DELETE CASCADE, agent_id TEXT NOT NULL, stage TEXT NOT NULL, message TEXT NOT NULL)", t.RunErrors, t.Runs),
	}
}

func (postgresDialect) BoolToStorage(b bool) any { return b }

func (postgresDialect) TimeToStorage(t time.Time) any { return t.UTC() }

func (postgresDialect) TimeFromStorage(v any) (time.Time, error) {
	if t, ok := v.(time.Time); ok {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unexpected time value %T", v)
}
