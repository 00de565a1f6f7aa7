// Package services defines shared utilities consumed by the pipeline stages,
// the orchestrator, and the transport layers.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, fingerprints, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper, and the Kind mapping that
//     lets the HTTP and IPC surfaces report input errors, missing records, and
//     not-yet-finished jobs consistently.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability) stays uniform across the pipeline.
package services
