package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/acnlabs/agentmigrate"
)

var rootCmd = &cobra.Command{
	Use:   "agentmigrate",
	Short: "Migrate onboarded agents into the unified acn:agents keyspace",
	Long: `agentmigrate copies every onboarded_agent:* record into acn:agents:* and
builds the api key, owner, unclaimed and public subnet indexes.

Runs are dry by default; pass --no-dry-run to write.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		r := NewMigrationRunner(context.Background(), viper.GetViper(), cmd.OutOrStdout())
		return r.Run()
	},
}

func init() {
	v := viper.GetViper()

	// Environment variables support: AGENTMIGRATE_REDIS_URL, AGENTMIGRATE_DELETE_OLD, ...
	v.SetEnvPrefix("AGENTMIGRATE")
	v.AutomaticEnv()
	defaults := agentmigrate.DefaultOptions()

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "path to a config yaml")
	pf.String("redis-url", agentmigrate.DefaultRedisURL, "Redis connection URL")
	pf.Int64("batch-size", defaults.BatchSize, "SCAN COUNT hint")
	pf.String("log-level", "", "log level: error, warn, info, debug")
	pf.String("log-format", "", "log format: text, json, color")

	f := rootCmd.Flags()
	f.Bool("dry-run", defaults.DryRun, "report what would be migrated without writing (always on unless --no-dry-run)")
	f.Bool("no-dry-run", false, "actually perform the migration")
	f.Bool("delete-old", false, "delete onboarded_agent:* and onboarded_api_key:* after migrating")
	f.Bool("verify-before-delete", false, "with --delete-old, keep legacy keys whose agent has no unified record")
	f.Bool("repair-indexes", defaults.RepairIndexes, "recreate missing indexes of agents migrated by an earlier run")
	f.Duration("lock-ttl", defaults.LockTTL, "lifetime of the migration lock")
	f.Bool("no-journal", false, "do not record the run in the journal")
	f.String("metrics-textfile", "", "write Prometheus metrics of the run to this file")

	for key, name := range map[string]string{
		"config":     "config",
		"redis_url":  "redis-url",
		"batch_size": "batch-size",
		"log_level":  "log-level",
		"log_format": "log-format",
	} {
		_ = v.BindPFlag(key, pf.Lookup(name))
	}
	for key, name := range map[string]string{
		"dry_run":              "dry-run",
		"no_dry_run":           "no-dry-run",
		"delete_old":           "delete-old",
		"verify_before_delete": "verify-before-delete",
		"repair_indexes":       "repair-indexes",
		"lock_ttl":             "lock-ttl",
		"no_journal":           "no-journal",
		"metrics_textfile":     "metrics-textfile",
	} {
		_ = v.BindPFlag(key, f.Lookup(name))
	}

	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		exitHandler.LogFatalError(err, "command execution failed")
	}
}
