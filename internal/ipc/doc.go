// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the CLI.
//
// Request and response DTOs reuse the api package types so the socket and
// HTTP surfaces render jobs identically. Errors cross the socket as a kind
// plus message and are rebuilt on the client, so callers can still branch
// with errors.Is on the services markers.
package ipc
