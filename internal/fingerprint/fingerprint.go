// Package fingerprint derives the content-addressed cache key for a source
// document and its processing options.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strconv"
)

// Domain separator; bump the suffix when the framing changes.
const domain = "panelcast/fingerprint/v1"

// Compute hashes the source bytes together with the page range and the
// normalization flag. Equal inputs always yield the same 64-char hex digest.
func Compute(source []byte, pages PageRange, normalize bool) string {
	h := sha256.New()
	writeHeader(h, int64(len(source)))
	h.Write(source)
	writeOptions(h, pages, normalize)
	return hex.EncodeToString(h.Sum(nil))
}

// ComputeReader is the streaming form of Compute. size must be the exact
// number of bytes r yields; a mismatch is reported as an error.
func ComputeReader(r io.Reader, size int64, pages PageRange, normalize bool) (string, error) {
	h := sha256.New()
	writeHeader(h, size)
	n, err := io.Copy(h, r)
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}
	if n != size {
		return "", fmt.Errorf("read source: got %d bytes, expected %d", n, size)
	}
	writeOptions(h, pages, normalize)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Valid reports whether s looks like a fingerprint produced by Compute.
func Valid(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func writeHeader(h hash.Hash, size int64) {
	h.Write([]byte(domain))
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(size))
	h.Write(buf[:])
}

// The source is length-prefixed so option bytes can never be confused with
// trailing source bytes.
func writeOptions(h hash.Hash, pages PageRange, normalize bool) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(int64(pages.Start)))
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(int64(pages.End)))
	h.Write(buf[:])
	h.Write([]byte(strconv.FormatBool(normalize)))
}
