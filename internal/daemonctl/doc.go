// Package daemonctl launches, stops and inspects panelcastd on behalf of the
// CLI. Everything here talks to the daemon through its IPC socket; the pid
// file is only consulted when a graceful stop fails.
package daemonctl
