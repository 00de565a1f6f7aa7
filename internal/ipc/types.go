package ipc

import (
	"panelcast/internal/api"
	"panelcast/internal/manifest"
	"panelcast/internal/share"
)

// StartRequest asks the daemon to begin processing.
type StartRequest struct{}

// StartResponse reports whether the daemon started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest asks the daemon to stop processing.
type StopRequest struct{}

// StopResponse confirms stop.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest asks for the daemon status.
type StatusRequest struct{}

// StatusResponse mirrors the HTTP status payload.
type StatusResponse = api.DaemonStatus

// Job is the wire form of a job.
type Job = api.Job

// SubmitRequest names a PDF on the daemon host and the submission options.
type SubmitRequest struct {
	Path      string `json:"path"`
	PageStart int    `json:"page_start"`
	PageEnd   int    `json:"page_end"`
	Normalize bool   `json:"normalization"`
	Force     bool   `json:"force_reprocess"`
	Title     string `json:"title"`
}

// SubmitResponse is the accepted, joined or cached job.
type SubmitResponse = api.SubmitResponse

// JobListRequest filters jobs by stage name.
type JobListRequest struct {
	Stages []string `json:"stages"`
}

// JobListResponse returns jobs newest first.
type JobListResponse = api.JobListResponse

// JobRequest addresses a single job.
type JobRequest struct {
	JobID string `json:"job_id"`
}

// JobResponse returns a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// ManifestResponse carries the finished manifest.
type ManifestResponse struct {
	Manifest *manifest.Comic `json:"manifest"`
}

// ReprocessRequest addresses a job id or fingerprint.
type ReprocessRequest struct {
	Ref string `json:"ref"`
}

// ShareResponse returns a share token and its playback URL.
type ShareResponse = api.ShareLink

// ResolveRequest looks up a share token.
type ResolveRequest struct {
	Token string `json:"token"`
}

// ResolveResponse carries the public view of a shared manifest.
type ResolveResponse struct {
	Manifest *share.PublicManifest `json:"manifest"`
}

// CancelResponse confirms cancellation.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// LogTailRequest reads daemon log lines.
type LogTailRequest struct {
	Offset     int64  `json:"offset"`
	Limit      int    `json:"limit"`
	Follow     bool   `json:"follow"`
	WaitMillis int    `json:"wait_ms"`
	JobID      string `json:"job_id"`
}

// LogTailResponse returns lines and the offset to resume from.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// TestNotificationRequest triggers a test notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification status.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
