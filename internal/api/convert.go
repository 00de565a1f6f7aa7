package api

import (
	"time"

	"panelcast/internal/services"
	"panelcast/internal/stage"
	"panelcast/internal/store"
	"panelcast/internal/workflow"
)

// FromJob converts a job record to its API representation.
func FromJob(job *store.Job) Job {
	if job == nil {
		return Job{}
	}
	dto := Job{
		JobID:       job.ID,
		Fingerprint: job.Fingerprint,
		Title:       job.Title,
		Stage:       string(job.Stage),
		StageLabel:  job.Stage.Label(),
		ProgressPct: job.ProgressPct,
		Committed:   job.Committed,
		Plan:        make([]string, 0, len(job.Plan)),
		Pages:       job.Pages.String(),
		Normalize:   job.Normalize,
		Forced:      job.Forced,
		Error:       job.Error,
		CreatedAt:   formatTime(job.CreatedAt),
		UpdatedAt:   formatTime(job.UpdatedAt),
	}
	for _, name := range job.Plan {
		dto.Plan = append(dto.Plan, string(name))
	}
	if job.FinishedAt != nil {
		dto.FinishedAt = formatTime(*job.FinishedAt)
	}
	if job.Manifest != nil && job.Committed > 0 {
		counts := job.Manifest.Counts()
		dto.Counts = &counts
	}
	return dto
}

// FromJobs converts a slice of job records.
func FromJobs(jobs []*store.Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		out = append(out, FromJob(job))
	}
	return out
}

// FromSubmitResult converts a workflow submission result.
func FromSubmitResult(res workflow.SubmitResult) SubmitResponse {
	return SubmitResponse{
		JobID:       res.JobID,
		Fingerprint: res.Fingerprint,
		Stage:       string(res.Stage),
		ProgressPct: res.ProgressPct,
		Cached:      res.Cached,
		Joined:      res.Joined,
	}
}

// FromStatusSummary converts the workflow summary. Every lifecycle state is
// present in StageCounts, including zero counts.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	counts := make(map[string]int, len(stage.All()))
	for _, name := range stage.All() {
		counts[string(name)] = summary.StageCounts[name]
	}
	active := summary.ActiveJobs
	if active == nil {
		active = []string{}
	}
	return WorkflowStatus{
		Running:      summary.Running,
		ActiveJobs:   active,
		StageCounts:  counts,
		CacheEntries: summary.CacheEntries,
		LastError:    summary.LastError,
		StageHealth:  StageHealthSlice(summary.StageHealth),
	}
}

// StageHealthSlice converts stage health records, preserving order.
func StageHealthSlice(health []stage.Health) []StageHealth {
	out := make([]StageHealth, 0, len(health))
	for _, h := range health {
		out = append(out, StageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// FromError builds the error body for err.
func FromError(err error) ErrorResponse {
	if err == nil {
		return ErrorResponse{}
	}
	return ErrorResponse{Error: err.Error(), Kind: string(services.KindOf(err))}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
