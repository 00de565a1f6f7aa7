// Package config loads, normalizes, and validates panelcast configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PANELCAST_API_TOKEN. The Config type centralizes every knob the daemon and
// CLI need, from the cache directory that anchors the manifest store to the
// collaborator endpoints each pipeline stage calls.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
