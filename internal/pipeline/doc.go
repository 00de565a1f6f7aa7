// Package pipeline implements the concrete processing stages: page
// rendering, panel detection, bubble OCR, speaker attribution, voice
// assignment, speech synthesis, ambient sound and panel normalization.
//
// Every stage works on one sub-item at a time and writes its artifacts under
// the job's workspace directory. Paths recorded in the manifest are relative
// to that directory.
package pipeline
