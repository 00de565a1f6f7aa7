// Package workflow drives jobs through the comic pipeline.
//
// The Manager accepts submissions, short-circuits them against the
// fingerprint cache, and runs one goroutine per active job. Each job walks the
// stage plan fixed at creation: mark the stage running, fan the stage out with
// stagerunner, then commit the resulting manifest and progress in one store
// transaction. A job that stops between those two steps reruns the stage on
// resume.
//
// Finished manifests are written to the cache entry under the per-fingerprint
// lock. Status sinks (Redis mirror, Kafka events) observe every persisted
// transition; ntfy notifications fire on completion and failure.
package workflow
