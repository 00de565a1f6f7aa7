package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// PDFHeader starts every fixture document so it passes the upload
// signature check.
const PDFHeader = "%PDF-1.7\n"

// WritePDF writes a fixture PDF at path padded to size bytes. The body
// starts with tag so distinct tags fingerprint differently.
func WritePDF(t testing.TB, path, tag string, size int64) {
	t.Helper()
	data := []byte(PDFHeader + tag + "\n")
	if pad := size - int64(len(data)); pad > 0 {
		data = append(data, bytes.Repeat([]byte{'B'}, int(pad))...)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create fixture dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", path, err)
	}
}

// PDFBytes returns an in-memory fixture document for tag.
func PDFBytes(tag string) []byte {
	return []byte(PDFHeader + tag + "\n%%EOF\n")
}
