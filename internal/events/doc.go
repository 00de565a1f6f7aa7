// Package events publishes job lifecycle events to Kafka. Each status
// transition becomes one JSON message keyed by job id, so a consumer sees a
// single job's events in order.
package events
