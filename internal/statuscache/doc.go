// Package statuscache mirrors job status snapshots into Redis so pollers
// can read progress without touching the SQLite store.
//
// The cache is write-through and best effort: the manifest store stays the
// source of truth and every entry expires after the configured TTL.
package statuscache
