package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/acnlabs/agentmigrate"
)

// setGlobal sets keys on the global viper used by the subcommands and
// blanks them again when the test ends.
func setGlobal(t *testing.T, kv map[string]any) {
	t.Helper()
	v := viper.GetViper()
	for k, val := range kv {
		v.Set(k, val)
	}
	t.Cleanup(func() {
		for k := range kv {
			v.Set(k, nil)
		}
	})
}

func TestVerifyCmd(t *testing.T) {
	mr, url := newTestRedis(t)
	seedLegacy(mr, "a1", "name", "Alpha", "api_key", "k1")
	if err := mr.Set("onboarded_api_key:k1", "a1"); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	v.Set("redis_url", url)
	v.Set("no_dry_run", true)
	v.Set("no_journal", true)
	r, _ := newTestRunner(t, v)
	if err := r.Run(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	setGlobal(t, map[string]any{"redis_url": url})
	var out bytes.Buffer
	verifyCmd.SetOut(&out)
	if err := verifyCmd.RunE(verifyCmd, nil); err != nil {
		t.Fatalf("verify clean store: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "No issues found") {
		t.Fatalf("verify output:\n%s", out.String())
	}

	mr.Del("acn:agents:by_api_key:k1")
	out.Reset()
	err := verifyCmd.RunE(verifyCmd, nil)
	if err == nil || !strings.Contains(err.Error(), "1 issues") {
		t.Fatalf("expected one issue, got %v\n%s", err, out.String())
	}
}

func TestHistoryCmd(t *testing.T) {
	tdir := t.TempDir()
	cfgPath := writeFile(t, tdir, "config.yaml", "logging:\n  level: warn\n")

	res := &agentmigrate.Result{
		RunID:    "run-1",
		Migrated: 3,
		Skipped:  1,
		Errored:  1,
		Errors: []agentmigrate.RecordError{
			{ID: "bad", Stage: "transform", Err: agentmigrate.ErrMissingID},
		},
	}
	j, err := agentmigrate.OpenJournal(agentmigrate.JournalConfig{}, tdir)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	if err := agentmigrate.RecordRun(context.Background(), j, res, false, nil); err != nil {
		t.Fatalf("record run: %v", err)
	}
	_ = j.Close()

	setGlobal(t, map[string]any{"config": cfgPath})
	historyErrors = true
	t.Cleanup(func() { historyErrors = false })

	var out bytes.Buffer
	historyCmd.SetOut(&out)
	if err := historyCmd.RunE(historyCmd, nil); err != nil {
		t.Fatalf("history: %v", err)
	}
	got := out.String()
	for _, want := range []string{"RUN ID", "run-1", "ok", "ERROR: bad - transform"} {
		if !strings.Contains(got, want) {
			t.Fatalf("history output missing %q:\n%s", want, got)
		}
	}
}

func TestHistoryCmd_JournalDisabled(t *testing.T) {
	cfgPath := writeFile(t, t.TempDir(), "config.yaml", "journal:\n  disabled: true\n")
	setGlobal(t, map[string]any{"config": cfgPath})

	var out bytes.Buffer
	historyCmd.SetOut(&out)
	if err := historyCmd.RunE(historyCmd, nil); err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out.String(), "Journal is disabled") {
		t.Fatalf("output:\n%s", out.String())
	}
}
