// Package artifacts lays out the per-job directory that holds the source
// document and every generated file. Manifests store paths relative to that
// directory so a job's files never collide with another job's.
package artifacts

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"panelcast/internal/fileutil"
)

const (
	sourceName       = "source.pdf"
	pagesDir         = "pages"
	panelsDir        = "panels"
	normalizedDir    = "panels/normalized"
	voiceDir         = "audio/voice"
	sfxDir           = "audio/sfx"
	artifactFileMode = 0o644
)

// Workspace resolves artifact locations under Root.
type Workspace struct {
	Root string
}

// New returns a workspace rooted at root.
func New(root string) Workspace {
	return Workspace{Root: root}
}

// Dir is the directory owned by a single job.
func (w Workspace) Dir(jobID string) string {
	return filepath.Join(w.Root, jobID)
}

// SourcePath is where the uploaded PDF is stored.
func (w Workspace) SourcePath(jobID string) string {
	return filepath.Join(w.Dir(jobID), sourceName)
}

// StoreSource writes the uploaded bytes and verifies them on disk.
func (w Workspace) StoreSource(jobID string, source []byte) (string, error) {
	path := w.SourcePath(jobID)
	sum, err := fileutil.WriteAtomic(path, bytes.NewReader(source), artifactFileMode)
	if err != nil {
		return "", fmt.Errorf("store source: %w", err)
	}
	if err := fileutil.VerifyFile(path, int64(len(source)), sum); err != nil {
		return "", fmt.Errorf("verify source: %w", err)
	}
	return path, nil
}

// PageImage is the relative path of a rendered page.
func PageImage(pageNumber int) string {
	return filepath.ToSlash(filepath.Join(pagesDir, fmt.Sprintf("page_%04d.png", pageNumber)))
}

// PanelImage is the relative path of a cropped panel.
func PanelImage(panelID string) string {
	return filepath.ToSlash(filepath.Join(panelsDir, panelID+".png"))
}

// NormalizedImage is the relative path of a letterboxed panel.
func NormalizedImage(panelID string) string {
	return filepath.ToSlash(filepath.Join(normalizedDir, panelID+".png"))
}

// VoiceClip is the relative path of a bubble's speech clip.
func VoiceClip(bubbleID, ext string) string {
	return filepath.ToSlash(filepath.Join(voiceDir, bubbleID+"."+normalizeExt(ext)))
}

// SFXClip is the relative path of a panel's ambient audio.
func SFXClip(panelID, ext string) string {
	return filepath.ToSlash(filepath.Join(sfxDir, panelID+"."+normalizeExt(ext)))
}

// Abs resolves a manifest-relative path for jobID, refusing paths that would
// escape the job directory.
func (w Workspace) Abs(jobID, rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	if rel == "" {
		return "", errors.New("empty artifact path")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("artifact path %q must be relative", rel)
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("artifact path %q escapes the job directory", rel)
	}
	return filepath.Join(w.Dir(jobID), clean), nil
}

// Write stores data at the manifest-relative path rel.
func (w Workspace) Write(jobID, rel string, data []byte) error {
	path, err := w.Abs(jobID, rel)
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, data, artifactFileMode)
}

// Read loads the artifact at rel.
func (w Workspace) Read(jobID, rel string) ([]byte, error) {
	path, err := w.Abs(jobID, rel)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// Remove deletes a job's directory.
func (w Workspace) Remove(jobID string) error {
	if strings.TrimSpace(jobID) == "" {
		return errors.New("empty job id")
	}
	return os.RemoveAll(w.Dir(jobID))
}

func normalizeExt(ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	if ext == "" {
		return "bin"
	}
	return ext
}
