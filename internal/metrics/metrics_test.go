package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acnlabs/agentmigrate/internal/migration"
)

func sampleResult(dry bool) *migration.Result {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &migration.Result{
		DryRun:     dry,
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Second),
		Migrated:   5,
		Skipped:    2,
		Errored:    1,
		Deleted:    10,
		Repaired:   3,
	}
}

func TestRecorder_Observe(t *testing.T) {
	registry := prometheus.NewRegistry()
	r, err := NewRecorder(registry)
	require.NoError(t, err)

	r.Observe(sampleResult(false), nil)

	assert.Equal(t, float64(5), testutil.ToFloat64(r.recordsTotal.WithLabelValues(OutcomeMigrated, "false")))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.recordsTotal.WithLabelValues(OutcomeSkipped, "false")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.recordsTotal.WithLabelValues(OutcomeErrored, "false")))
	assert.Equal(t, float64(10), testutil.ToFloat64(r.recordsTotal.WithLabelValues(OutcomeDeleted, "false")))
	assert.Equal(t, float64(3), testutil.ToFloat64(r.recordsTotal.WithLabelValues(OutcomeRepaired, "false")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.runsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(3), testutil.ToFloat64(r.runDuration))
}

func TestRecorder_ObserveFailedDryRun(t *testing.T) {
	registry := prometheus.NewRegistry()
	r, err := NewRecorder(registry)
	require.NoError(t, err)

	r.Observe(sampleResult(true), errors.New("scan failed"))

	assert.Equal(t, float64(5), testutil.ToFloat64(r.recordsTotal.WithLabelValues(OutcomeMigrated, "true")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.runsTotal.WithLabelValues("failed")))
}

func TestRecorder_DuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewRecorder(registry)
	require.NoError(t, err)
	_, err = NewRecorder(registry)
	assert.Error(t, err)
}

func TestRecorder_WriteTextfile(t *testing.T) {
	registry := prometheus.NewRegistry()
	r, err := NewRecorder(registry)
	require.NoError(t, err)
	r.Observe(sampleResult(false), nil)

	path := filepath.Join(t.TempDir(), "agentmigrate.prom")
	require.NoError(t, r.WriteTextfile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)
	assert.True(t, strings.Contains(out, `agentmigrate_records_total{dry_run="false",outcome="migrated"} 5`), out)
	assert.Contains(t, out, "agentmigrate_run_duration_seconds 3")
}
