package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/acnlabs/agentmigrate"
)

var (
	historyLimit  int
	historyErrors bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded migration runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		v := viper.GetViper()
		doc, err := loadConfigDoc(v)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if doc.Journal.Disabled {
			_, _ = fmt.Fprintln(out, "Journal is disabled - no run history available")
			return nil
		}

		j, err := agentmigrate.OpenJournal(doc.Journal.JournalConfig, journalDir(strings.TrimSpace(v.GetString("config"))))
		if err != nil {
			return err
		}
		defer func() { _ = j.Close() }()

		ctx := context.Background()
		runs, err := j.List(ctx, historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			_, _ = fmt.Fprintln(out, "No runs recorded")
			return nil
		}
		if err := writeHistory(out, runs); err != nil {
			return err
		}
		if !historyErrors {
			return nil
		}
		for _, run := range runs {
			if run.Errored == 0 {
				continue
			}
			errs, err := j.Errors(ctx, run.ID)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "\nRun %s:\n", run.ID)
			for _, e := range errs {
				_, _ = fmt.Fprintf(out, "   ERROR: %s - %s: %s\n", e.AgentID, e.Stage, e.Message)
			}
		}
		return nil
	},
}

func writeHistory(w io.Writer, runs []agentmigrate.JournalRun) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RUN ID\tSTARTED\tDURATION\tMIGRATED\tSKIPPED\tERRORS\tREPAIRED\tDELETED\tSTATUS")
	for _, r := range runs {
		status := "ok"
		if r.Fatal != "" {
			status = "aborted: " + r.Fatal
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.UTC().Format(time.RFC3339), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
			r.Migrated, r.Skipped, r.Errored, r.Repaired, r.Deleted, status)
	}
	return tw.Flush()
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "show up to N latest runs (0 = all)")
	historyCmd.Flags().BoolVar(&historyErrors, "errors", false, "also list per-record errors of each run")
}
