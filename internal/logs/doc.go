// Package logs tails the daemon log file for the CLI.
//
// Negative offsets mean "the last N lines"; follow mode polls until new lines
// arrive or the wait expires. A job filter keeps only lines that mention the
// job id, which covers both the console and JSON log formats.
package logs
