// Package fileutil holds small filesystem helpers shared by artifact writers.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to path via a temp file in the same directory
// and renames it into place, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	_, err := WriteAtomic(path, bytes.NewReader(data), mode)
	return err
}

// WriteAtomic streams r into path atomically and returns the SHA-256 of the
// bytes written.
func WriteAtomic(path string, r io.Reader, mode os.FileMode) ([]byte, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hasher), r); err != nil {
		cleanup()
		return nil, err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return nil, err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		_ = os.Remove(tmpName)
		return nil, err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return nil, err
	}
	return hasher.Sum(nil), nil
}

// VerifyFile checks that path holds exactly size bytes hashing to sum.
func VerifyFile(path string, size int64, sum []byte) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	hasher := sha256.New()
	written, err := io.Copy(hasher, in)
	if err != nil {
		return err
	}
	if written != size {
		return fmt.Errorf("size mismatch: expected %d bytes, found %d", size, written)
	}
	if !bytes.Equal(hasher.Sum(nil), sum) {
		return fmt.Errorf("hash mismatch: %s is corrupted", filepath.Base(path))
	}
	return nil
}
