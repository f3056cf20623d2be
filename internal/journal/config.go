package journal

import (
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/acnlabs/agentmigrate/internal/constants"
	"github.com/acnlabs/agentmigrate/internal/util"
)

// Backend types
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// SQLite configuration constants
const (
	busyTimeoutMS    = 5000
	foreignKeysParam = "_fk=1"
)

// Config selects the journal backend.
type Config struct {
	Type     string         `mapstructure:"type" yaml:"type"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite" yaml:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
	Tables   TableNames     `mapstructure:"tables" yaml:"tables"`
}

// SQLiteConfig locates the journal database file.
type SQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// DSN returns the modernc sqlite DSN for the configured path, defaulting to
// agentmigrate.db in dir.
func (c SQLiteConfig) DSN(dir string) string {
	path := util.TrimWithDefault(c.Path, filepath.Join(dir, constants.DefaultJournalFileName))
	return fmt.Sprintf("file:%s?_busy_timeout=%d&%s", path, busyTimeoutMS, foreignKeysParam)
}

// PostgresConfig is either a full DSN or its components.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn" yaml:"dsn"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	DBName   string `mapstructure:"dbname" yaml:"dbname"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

// BuildDSN prefers an explicit DSN; otherwise it assembles one from the
// components when a host is set.
func (p PostgresConfig) BuildDSN() (string, error) {
	if dsn, ok := util.TrimEmptyCheck(p.DSN); ok {
		return dsn, nil
	}
	host, ok := util.TrimEmptyCheck(p.Host)
	if !ok {
		return "", fmt.Errorf("postgres journal needs dsn or host")
	}
	port := p.Port
	if port == 0 {
		port = constants.DefaultPostgresPort
	}
	ssl := util.TrimWithDefault(p.SSLMode, constants.DefaultPostgresSSLMode)
	fields := util.TrimSpaceFields(p.User, p.Password, p.DBName)
	user, password, dbname := fields[0], fields[1], fields[2]
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		user, password, host, port, dbname, ssl,
	), nil
}

// TableNames overrides the journal table names.
type TableNames struct {
	Runs      string `mapstructure:"runs" yaml:"runs"`
	RunErrors string `mapstructure:"run_errors" yaml:"run_errors"`
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// normalize applies defaults and rejects names that are not plain SQL identifiers.
func (t TableNames) normalize() (TableNames, error) {
	out := TableNames{
		Runs:      util.TrimWithDefault(t.Runs, constants.DefaultRunsTable),
		RunErrors: util.TrimWithDefault(t.RunErrors, constants.DefaultRunErrorsTable),
	}
	for _, n := range []string{out.Runs, out.RunErrors} {
		if !identRe.MatchString(n) {
			return TableNames{}, fmt.Errorf("invalid table name %q", n)
		}
	}
	return out, nil
}
