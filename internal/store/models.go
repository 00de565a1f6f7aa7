package store

import (
	"time"

	"panelcast/internal/fingerprint"
	"panelcast/internal/manifest"
	"panelcast/internal/stage"
)

// Job is one processing run for a fingerprint.
type Job struct {
	ID          string
	Fingerprint string
	Title       string
	SourcePath  string
	Pages       fingerprint.PageRange
	Normalize   bool
	Forced      bool
	// Plan is the stage list fixed at creation.
	Plan []stage.Name
	// Stage is the stage currently running, or a terminal state.
	Stage stage.Name
	// Committed counts plan entries whose results are persisted.
	Committed   int
	ProgressPct int
	Error       string
	Manifest    *manifest.Comic
	CreatedAt   time.Time
	UpdatedAt   time.Time
	FinishedAt  *time.Time
}

// NextStage returns the first plan entry not yet committed.
func (j *Job) NextStage() (stage.Name, bool) {
	if j == nil || j.Committed >= len(j.Plan) {
		return "", false
	}
	return j.Plan[j.Committed], true
}

// Terminal reports whether the job reached done or failed.
func (j *Job) Terminal() bool {
	return j != nil && j.Stage.Terminal()
}

// Progress converts committed stages into a whole percentage.
func Progress(committed, total int) int {
	if total <= 0 || committed <= 0 {
		return 0
	}
	if committed >= total {
		return 100
	}
	return 100 * committed / total
}

// CacheEntry is the finished result recorded for a fingerprint.
type CacheEntry struct {
	Fingerprint string
	JobID       string
	Stage       stage.Name
	Manifest    *manifest.Comic
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
