package migration

import (
	"fmt"
	"io"
	"time"
)

// Stage names where a per-record failure happened.
const (
	StageRead      = "read"
	StageGuard     = "guard"
	StageTransform = "transform"
	StageWrite     = "write"
	StageRepair    = "repair"
)

// RecordError is a recoverable failure isolated to one legacy record.
type RecordError struct {
	ID    string
	Stage string
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.ID, e.Stage, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// SweepOutcome describes what happened to the legacy keyspace.
type SweepOutcome int

const (
	// SweepNotRequested means old data was kept because deletion was not asked for.
	SweepNotRequested SweepOutcome = iota
	// SweepGated means deletion was asked for but the run was a dry run or migrated nothing.
	SweepGated
	// SweepDone means the sweep ran.
	SweepDone
)

// Result is the outcome of one migration run.
type Result struct {
	RunID  string
	DryRun bool

	StartedAt  time.Time
	FinishedAt time.Time

	APIKeys  int
	Migrated int
	Skipped  int
	Errored  int
	Deleted  int
	Kept     int
	// Repaired counts index entries recreated for already-migrated records
	// (or that would be, in a dry run).
	Repaired int

	MigratedIDs []string
	Errors      []RecordError
	Sweep       SweepOutcome
}

// Duration returns the wall time of the run.
func (r *Result) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Result) addError(id, stage string, err error) {
	r.Errored++
	r.Errors = append(r.Errors, RecordError{ID: id, Stage: stage, Err: err})
}

// Render writes the human-readable run summary.
func Render(w io.Writer, r *Result) error {
	p := &printer{w: w}
	renderCounts(p, r)

	switch r.Sweep {
	case SweepDone:
		p.printf("\nDeleted %d old keys\n", r.Deleted)
		if r.Kept > 0 {
			p.printf("Kept %d old keys with no migrated agent\n", r.Kept)
		}
	case SweepGated:
		p.printf("\nSkipping deletion (dry run or no migrations)\n")
	default:
		p.printf("\nOld data preserved (use --delete-old to remove)\n")
	}
	p.printf("\nMigration complete in %s\n", r.Duration().Round(time.Millisecond))
	return p.err
}

// RenderAborted writes the counts gathered before a fatal error stopped the run.
func RenderAborted(w io.Writer, r *Result, cause error) error {
	p := &printer{w: w}
	renderCounts(p, r)
	if r.Deleted > 0 {
		p.printf("\nDeleted %d old keys before the abort\n", r.Deleted)
	}
	p.printf("\nMigration aborted after %s: %v\n", r.Duration().Round(time.Millisecond), cause)
	return p.err
}

func renderCounts(p *printer, r *Result) {
	p.printf("API keys found: %d\n", r.APIKeys)
	p.printf("\nMigration Summary:\n")
	p.printf("   Migrated: %d\n", r.Migrated)
	p.printf("   Skipped:  %d\n", r.Skipped)
	p.printf("   Errors:   %d\n", r.Errored)
	if r.Repaired > 0 {
		p.printf("   Repaired: %d index entries\n", r.Repaired)
	}
	for _, e := range r.Errors {
		p.printf("   ERROR: %s (%s) - %v\n", e.ID, e.Stage, e.Err)
	}

	if r.DryRun {
		p.printf("\n   DRY RUN - No changes made\n")
		p.printf("   Run with --no-dry-run to apply changes\n")
	}
}

// printer keeps the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
