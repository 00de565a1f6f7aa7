// Package language normalizes the language codes that arrive from
// configuration and from OCR collaborators to two-letter ISO 639-1 codes.
package language
