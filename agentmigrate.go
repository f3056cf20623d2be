package agentmigrate

import (
	"context"
	"io"

	"github.com/acnlabs/agentmigrate/internal/common"
	"github.com/acnlabs/agentmigrate/internal/constants"
	"github.com/acnlabs/agentmigrate/internal/journal"
	"github.com/acnlabs/agentmigrate/internal/kv"
	"github.com/acnlabs/agentmigrate/internal/migration"
)

// Re-export commonly used types for public API

// Migrator runs the onboarded_agent -> acn:agents migration against a Store.
type Migrator = migration.Migrator

// Options controls one migration run.
type Options = migration.Options

// Result is the outcome of a run.
type Result = migration.Result

// RecordError is a per-record failure inside a Result.
type RecordError = migration.RecordError

// Verifier checks migrated records against their indexes.
type Verifier = migration.Verifier

// Report is the outcome of a verification pass.
type Report = migration.Report

// Store is the key-value interface the migration uses.
type Store = kv.Store

// Journal is the run history.
type Journal = journal.Store

// JournalConfig selects the journal backend.
type JournalConfig = journal.Config

// JournalRun is one run read back from the journal.
type JournalRun = journal.Run

// Sentinel errors
var (
	ErrMissingID = migration.ErrMissingID
	ErrLockHeld  = migration.ErrLockHeld
)

// DefaultRedisURL is the store address used when none is given.
const DefaultRedisURL = constants.DefaultRedisURL

// DefaultOptions returns the options of a plain invocation (a dry run).
func DefaultOptions() Options { return migration.DefaultOptions() }

// OpenRedis connects to the Redis server at url.
func OpenRedis(ctx context.Context, url string) (Store, error) {
	st, err := kv.OpenRedis(ctx, url)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// OpenJournal opens the run journal; dir is the default SQLite location.
func OpenJournal(cfg JournalConfig, dir string) (*Journal, error) { return journal.Open(cfg, dir) }

// RecordRun stores a finished run in the journal.
func RecordRun(ctx context.Context, j *Journal, res *Result, deleteOld bool, fatal error) error {
	return j.Record(ctx, journal.FromResult(res, deleteOld, fatal))
}

// Render writes the text summary of a run.
func Render(w io.Writer, res *Result) error { return migration.Render(w, res) }

// RenderAborted writes the partial summary of a run stopped by cause.
func RenderAborted(w io.Writer, res *Result, cause error) error {
	return migration.RenderAborted(w, res, cause)
}

// RenderReport writes the text summary of a verification.
func RenderReport(w io.Writer, rep *Report) error { return migration.RenderReport(w, rep) }

// Logger re-exports
type Logger = common.Logger

type LogLevel = common.LogLevel

const (
	LogLevelError = common.LogLevelError
	LogLevelWarn  = common.LogLevelWarn
	LogLevelInfo  = common.LogLevelInfo
	LogLevelDebug = common.LogLevelDebug
)

func NewLogger(level LogLevel) *Logger { return common.NewLogger(level) }
func NewJSONLogger(level LogLevel) *Logger { return common.NewJSONLogger(level) }
func NewColorLogger(level LogLevel) *Logger { return common.NewColorLogger(level) }
func SetDefaultLogger(l *Logger) { common.SetDefaultLogger(l) }
func GetLogger() *Logger { return common.GetLogger() }
func ParseLogLevel(s string) (LogLevel, bool) { return common.ParseLogLevel(s) }
func EnableMasking(enabled bool) { common.EnableMasking(enabled) }
func MaskSensitiveData(input string) string { return common.MaskSensitiveData(input) }
