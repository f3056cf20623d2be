// Package metrics exposes migration run counters in Prometheus format,
// written as a node-exporter textfile since the tool is not a long-lived server.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/acnlabs/agentmigrate/internal/migration"
)

// Record outcomes
const (
	OutcomeMigrated = "migrated"
	OutcomeSkipped  = "skipped"
	OutcomeErrored  = "errored"
	OutcomeDeleted  = "deleted"
	OutcomeRepaired = "repaired"
)

// Recorder holds the metrics of one process run.
type Recorder struct {
	registry *prometheus.Registry

	recordsTotal     *prometheus.CounterVec
	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Gauge
	lastRunTimestamp prometheus.Gauge
}

// NewRecorder creates the metrics and registers them on registry.
func NewRecorder(registry *prometheus.Registry) (*Recorder, error) {
	r := &Recorder{
		registry: registry,
		recordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentmigrate",
			Name:      "records_total",
			Help:      "Legacy agent records by migration outcome",
		}, []string{"outcome", "dry_run"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentmigrate",
			Name:      "runs_total",
			Help:      "Migration runs by result",
		}, []string{"result"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agentmigrate",
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last migration run",
		}),
		lastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agentmigrate",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last migration run finished",
		}),
	}
	for _, c := range []prometheus.Collector{r.recordsTotal, r.runsTotal, r.runDuration, r.lastRunTimestamp} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return r, nil
}

// Observe records a finished run. fatal is the error Run returned, if any.
func (r *Recorder) Observe(res *migration.Result, fatal error) {
	dry := "false"
	if res.DryRun {
		dry = "true"
	}
	r.recordsTotal.WithLabelValues(OutcomeMigrated, dry).Add(float64(res.Migrated))
	r.recordsTotal.WithLabelValues(OutcomeSkipped, dry).Add(float64(res.Skipped))
	r.recordsTotal.WithLabelValues(OutcomeErrored, dry).Add(float64(res.Errored))
	r.recordsTotal.WithLabelValues(OutcomeDeleted, dry).Add(float64(res.Deleted))
	r.recordsTotal.WithLabelValues(OutcomeRepaired, dry).Add(float64(res.Repaired))

	result := "success"
	if fatal != nil {
		result = "failed"
	}
	r.runsTotal.WithLabelValues(result).Inc()
	r.runDuration.Set(res.Duration().Seconds())
	finished := res.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	r.lastRunTimestamp.Set(float64(finished.Unix()))
}

// WriteTextfile writes all registered metrics to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}
