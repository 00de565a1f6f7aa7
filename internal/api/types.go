package api

import "panelcast/internal/manifest"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a processing job in a transport-friendly format.
type Job struct {
	JobID       string           `json:"job_id"`
	Fingerprint string           `json:"fingerprint"`
	Title       string           `json:"title,omitempty"`
	Stage       string           `json:"stage"`
	StageLabel  string           `json:"stage_label"`
	ProgressPct int              `json:"progress_pct"`
	Committed   int              `json:"committed"`
	Plan        []string         `json:"plan"`
	Pages       string           `json:"pages"`
	Normalize   bool             `json:"normalization"`
	Forced      bool             `json:"force_reprocess,omitempty"`
	Error       string           `json:"error,omitempty"`
	Counts      *manifest.Counts `json:"counts,omitempty"`
	CreatedAt   string           `json:"created_at,omitempty"`
	UpdatedAt   string           `json:"updated_at,omitempty"`
	FinishedAt  string           `json:"finished_at,omitempty"`
}

// SubmitResponse is returned for uploads and reprocess requests.
type SubmitResponse struct {
	JobID       string `json:"job_id"`
	Fingerprint string `json:"fingerprint"`
	Stage       string `json:"stage"`
	ProgressPct int    `json:"progress_pct"`
	Cached      bool   `json:"cached"`
	Joined      bool   `json:"joined,omitempty"`
}

// ShareLink carries a playback token.
type ShareLink struct {
	Token       string `json:"token"`
	PlaybackURL string `json:"playback_url"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running      bool           `json:"running"`
	ActiveJobs   []string       `json:"active_jobs"`
	StageCounts  map[string]int `json:"stage_counts"`
	CacheEntries int            `json:"cache_entries"`
	LastError    string         `json:"last_error,omitempty"`
	StageHealth  []StageHealth  `json:"stage_health"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	DatabasePath string             `json:"database_path"`
	LockFilePath string             `json:"lock_path"`
	LogPath      string             `json:"log_path,omitempty"`
	SocketPath   string             `json:"socket_path"`
	APIAddress   string             `json:"api_address,omitempty"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}
