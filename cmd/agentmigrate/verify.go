package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/acnlabs/agentmigrate"
)

var verifyAll bool

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check migrated agents against their indexes without writing",
	RunE: func(cmd *cobra.Command, args []string) error {
		v := viper.GetViper()
		doc, err := loadConfigDoc(v)
		if err != nil {
			return err
		}
		url := stringSetting(v, "redis_url", doc.Redis.URL, agentmigrate.DefaultRedisURL)
		batch := int64Setting(v, "batch_size", doc.Migration.BatchSize, agentmigrate.DefaultOptions().BatchSize)

		ctx := context.Background()
		store, err := agentmigrate.OpenRedis(ctx, url)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer func() { _ = store.Close() }()

		verifier := &agentmigrate.Verifier{Store: store, Batch: batch, All: verifyAll}
		rep, err := verifier.Verify(ctx)
		if err != nil {
			return err
		}
		if err := agentmigrate.RenderReport(cmd.OutOrStdout(), rep); err != nil {
			return err
		}
		if !rep.OK() {
			return fmt.Errorf("verification found %d issues", len(rep.Issues))
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().BoolVar(&verifyAll, "all", false, "also check agents not written by this migration")
}
