// Package api defines wire-format types and converters shared by the HTTP
// API and the IPC layer. It translates workflow and store models into
// transport-friendly DTOs so clients never couple to internal types.
//
// # Key Types
//
// Job: a job's stage, progress, plan, error and manifest counts.
//
// SubmitResponse: the result of an upload, including the cached flag.
//
// WorkflowStatus: running state, per-stage counts, cache size and stage health.
//
// ShareLink: a playback token and its public URL.
//
// # Design Notes
//
// DTOs use snake_case JSON tags to match the manifest document and the
// playback view. Timestamps use RFC3339 with milliseconds.
package api
