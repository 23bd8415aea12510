package orchestrator

import (
	"time"

	"volume-backup/src/restic"
)

// Status is the outcome of processing one project.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// ProjectResult records one project's outcome. Written exactly once, at the
// end of that project's processing.
type ProjectResult struct {
	Project  string
	Status   Status
	Paths    []string
	Stats    restic.BackupStats
	Err      error
	Duration time.Duration
}

// Summary is the in-memory record of one run. It is never persisted; the
// exit code and the final liveness ping are derived from it.
type Summary struct {
	Host    string
	Started time.Time
	Results []ProjectResult
}

// Failed reports whether any project failed. Skipped projects never count
// against the run.
func (s Summary) Failed() bool {
	for _, r := range s.Results {
		if r.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Counts folds the results into ok/failed/skipped totals.
func (s Summary) Counts() (ok, failed, skipped int) {
	for _, r := range s.Results {
		switch r.Status {
		case StatusOK:
			ok++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return ok, failed, skipped
}
