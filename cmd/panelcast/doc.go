// Package main hosts the panelcast CLI.
//
// Commands translate terminal invocations into JSON-RPC calls against the
// daemon socket: submitting PDFs, following jobs, fetching manifests and
// minting share links. Daemon lifecycle commands launch or stop the
// background process, and config commands scaffold and check the TOML file.
package main
