// Package manifest defines the comic document produced by the pipeline:
// pages, panels and bubbles in reading order plus the artifact references
// each stage fills in.
//
// Reference fields hold an empty string until the stage that produces them
// commits. An empty reference is a valid state meaning nothing was produced,
// never an error. Bounding boxes are always in the pixel space of the
// un-normalized source image.
package manifest
