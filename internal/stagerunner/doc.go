// Package stagerunner executes one pipeline stage over a manifest, fanning
// sub-items out with bounded concurrency and folding the results back in
// reading order.
//
// A stage either returns a complete new document or an error; the input
// document is never modified. Any sub-item failure fails the stage. The
// first failure is reported, later ones are counted and logged, and every
// in-flight item is cancelled and awaited before Run returns.
package stagerunner
