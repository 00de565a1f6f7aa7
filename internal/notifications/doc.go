// Package notifications delivers job lifecycle events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Completion and
// failure events can be switched off individually.
//
// All workflow code depends only on the Service interface.
package notifications
