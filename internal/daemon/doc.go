// Package daemon coordinates the long-running panelcast process.
//
// It wires configuration, the manifest store, the workflow manager and the
// HTTP API into a single lifecycle with flock-based locking so only one
// orchestrator owns a cache directory. Individual pipeline steps live in
// their own packages; the daemon focuses on startup, shutdown and request
// routing.
package daemon
