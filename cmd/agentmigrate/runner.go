package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"

	"github.com/acnlabs/agentmigrate"
	"github.com/acnlabs/agentmigrate/internal/metrics"
)

// RunConfig holds every setting resolved for one invocation.
type RunConfig struct {
	ConfigPath      string
	RedisURL        string
	Options         agentmigrate.Options
	Journal         JournalConfig
	JournalDir      string
	MetricsTextfile string
	Logger          *agentmigrate.Logger
}

// MigrationRunner drives one migration from the command line.
type MigrationRunner struct {
	config *RunConfig
	ctx    context.Context
	v      *viper.Viper
	out    io.Writer
	doc    ConfigDoc
}

func NewMigrationRunner(ctx context.Context, v *viper.Viper, out io.Writer) *MigrationRunner {
	return &MigrationRunner{
		ctx:    ctx,
		v:      v,
		out:    out,
		config: &RunConfig{Options: agentmigrate.DefaultOptions()},
	}
}

// InitializeFromViper reads the config path and installs a basic logger.
func (r *MigrationRunner) InitializeFromViper() error {
	r.config.ConfigPath = strings.TrimSpace(r.v.GetString("config"))

	logger := agentmigrate.NewLogger(agentmigrate.LogLevelInfo)
	agentmigrate.SetDefaultLogger(logger)
	r.config.Logger = logger

	logger.Debug("starting agentmigrate", "config_path", r.config.ConfigPath)
	return nil
}

// LoadConfiguration loads the optional config file, applies logging settings
// and resolves the run settings.
func (r *MigrationRunner) LoadConfiguration() error {
	doc, err := loadConfigDoc(r.v)
	if err != nil {
		return err
	}
	r.doc = *doc
	r.config.Logger = agentmigrate.GetLogger().WithComponent("main")
	return r.processConfigDoc()
}

// loadConfigDoc reads the document named by --config (if any) and sets up
// logging from it, with --log-level and --log-format taking precedence.
func loadConfigDoc(v *viper.Viper) (*ConfigDoc, error) {
	var doc ConfigDoc
	path := strings.TrimSpace(v.GetString("config"))
	if path != "" {
		if err := doc.Load(path); err != nil {
			return nil, fmt.Errorf("failed to load configuration file '%s': %w\nPlease check if the file exists and has valid YAML syntax", path, err)
		}
	}
	if v.IsSet("log_level") {
		doc.Logging.Level = v.GetString("log_level")
	}
	if v.IsSet("log_format") {
		doc.Logging.Format = v.GetString("log_format")
	}
	if err := doc.SetupLogging(); err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	return &doc, nil
}

// processConfigDoc merges flags, environment and the document. An explicitly
// set flag or variable wins over the document, which wins over the default.
func (r *MigrationRunner) processConfigDoc() error {
	v, doc, cfg := r.v, &r.doc, r.config
	opts := agentmigrate.DefaultOptions()

	cfg.RedisURL = stringSetting(v, "redis_url", doc.Redis.URL, agentmigrate.DefaultRedisURL)
	// --no-dry-run is the only way to write; --dry-run cannot switch it off.
	opts.DryRun = !v.GetBool("no_dry_run")
	opts.DeleteOld = v.GetBool("delete_old")
	opts.VerifyBeforeDelete = boolSetting(v, "verify_before_delete", doc.Migration.VerifyBeforeDelete, false)
	opts.RepairIndexes = boolSetting(v, "repair_indexes", doc.Migration.RepairIndexes, opts.RepairIndexes)
	opts.BatchSize = int64Setting(v, "batch_size", doc.Migration.BatchSize, opts.BatchSize)
	opts.LockTTL = durationSetting(v, "lock_ttl", doc.Migration.LockTTL, opts.LockTTL)
	if opts.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", opts.BatchSize)
	}
	if opts.LockTTL <= 0 {
		return fmt.Errorf("lock ttl must be positive, got %s", opts.LockTTL)
	}
	cfg.Options = opts

	cfg.Journal = doc.Journal
	if v.GetBool("no_journal") {
		cfg.Journal.Disabled = true
	}
	cfg.JournalDir = journalDir(cfg.ConfigPath)
	cfg.MetricsTextfile = stringSetting(v, "metrics_textfile", doc.Metrics.Textfile, "")

	cfg.Logger.Debug("configuration resolved",
		"redis_url", cfg.RedisURL,
		"dry_run", opts.DryRun,
		"delete_old", opts.DeleteOld,
		"verify_before_delete", opts.VerifyBeforeDelete,
		"batch_size", opts.BatchSize,
		"journal_disabled", cfg.Journal.Disabled)
	return nil
}

// Execute runs the migration, prints the summary and records the run.
func (r *MigrationRunner) Execute() error {
	cfg := r.config
	r.printHeader()

	store, err := agentmigrate.OpenRedis(r.ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w\nCheck --redis-url or AGENTMIGRATE_REDIS_URL", err)
	}
	defer func() { _ = store.Close() }()

	m := &agentmigrate.Migrator{Store: store, Options: cfg.Options, Logger: cfg.Logger.WithComponent("migration")}
	res, runErr := m.Run(r.ctx)
	if runErr == nil {
		if err := agentmigrate.Render(r.out, res); err != nil {
			return err
		}
	} else {
		_ = agentmigrate.RenderAborted(r.out, res, runErr)
	}

	if !res.DryRun {
		r.recordJournal(res, runErr)
	}
	if cfg.MetricsTextfile != "" {
		r.writeMetrics(res, runErr)
	}

	if runErr != nil {
		cfg.Logger.Error("migration aborted", "error", runErr, "migrated", res.Migrated)
		return fmt.Errorf("migration aborted: %w", runErr)
	}
	return nil
}

func (r *MigrationRunner) printHeader() {
	rule := strings.Repeat("=", 60)
	_, _ = fmt.Fprintln(r.out, rule)
	_, _ = fmt.Fprintln(r.out, "Agent Migration: onboarded_agent -> acn:agents")
	_, _ = fmt.Fprintln(r.out, rule)
	_, _ = fmt.Fprintf(r.out, "Connecting to Redis: %s\n", agentmigrate.MaskSensitiveData(r.config.RedisURL))
}

// recordJournal stores the run; a journal failure does not fail the migration.
func (r *MigrationRunner) recordJournal(res *agentmigrate.Result, runErr error) {
	cfg := r.config
	if cfg.Journal.Disabled {
		return
	}
	j, err := agentmigrate.OpenJournal(cfg.Journal.JournalConfig, cfg.JournalDir)
	if err != nil {
		cfg.Logger.Warn("failed to open journal", "error", err)
		return
	}
	defer func() { _ = j.Close() }()

	if err := agentmigrate.RecordRun(r.ctx, j, res, cfg.Options.DeleteOld, runErr); err != nil {
		cfg.Logger.Warn("failed to record run in journal", "run_id", res.RunID, "error", err)
		return
	}
	cfg.Logger.Debug("run recorded in journal", "run_id", res.RunID)
}

func (r *MigrationRunner) writeMetrics(res *agentmigrate.Result, runErr error) {
	cfg := r.config
	rec, err := metrics.NewRecorder(prometheus.NewRegistry())
	if err != nil {
		cfg.Logger.Warn("failed to create metrics recorder", "error", err)
		return
	}
	rec.Observe(res, runErr)
	if err := rec.WriteTextfile(cfg.MetricsTextfile); err != nil {
		cfg.Logger.Warn("failed to write metrics textfile", "path", cfg.MetricsTextfile, "error", err)
	}
}

// Run executes the complete migration process
func (r *MigrationRunner) Run() error {
	if err := r.InitializeFromViper(); err != nil {
		return err
	}
	if err := r.LoadConfiguration(); err != nil {
		return err
	}
	return r.Execute()
}

// journalDir is where the default SQLite journal lives: next to the config
// file, or the working directory.
func journalDir(configPath string) string {
	if configPath == "" {
		return "."
	}
	return filepath.Dir(configPath)
}

func stringSetting(v *viper.Viper, key, fromDoc, def string) string {
	if v.IsSet(key) {
		return strings.TrimSpace(v.GetString(key))
	}
	if s := strings.TrimSpace(fromDoc); s != "" {
		return s
	}
	return def
}

func boolSetting(v *viper.Viper, key string, fromDoc *bool, def bool) bool {
	if v.IsSet(key) {
		return v.GetBool(key)
	}
	if fromDoc != nil {
		return *fromDoc
	}
	return def
}

func int64Setting(v *viper.Viper, key string, fromDoc, def int64) int64 {
	if v.IsSet(key) {
		return v.GetInt64(key)
	}
	if fromDoc != 0 {
		return fromDoc
	}
	return def
}

func durationSetting(v *viper.Viper, key string, fromDoc, def time.Duration) time.Duration {
	if v.IsSet(key) {
		return v.GetDuration(key)
	}
	if fromDoc != 0 {
		return fromDoc
	}
	return def
}
