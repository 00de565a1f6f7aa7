package artifacts

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"panelcast/internal/logging"
)

// SweepResult lists job directories removed by Sweep and the ones that could
// not be removed.
type SweepResult struct {
	Removed []string
	Failed  map[string]error
}

// Sweep removes job directories that no known job owns. Directories modified
// within grace are kept so a submission racing the sweep keeps its files.
func (w Workspace) Sweep(ctx context.Context, known func(jobID string) bool, grace time.Duration, logger *slog.Logger) SweepResult {
	result := SweepResult{}
	entries, err := os.ReadDir(w.Root)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Failed = map[string]error{w.Root: err}
		}
		return result
	}
	cutoff := time.Now().Add(-grace)
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if !entry.IsDir() || known(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		dir := filepath.Join(w.Root, entry.Name())
		if err := os.RemoveAll(dir); err != nil {
			if result.Failed == nil {
				result.Failed = make(map[string]error)
			}
			result.Failed[dir] = err
			if logger != nil {
				logging.WarnWithContext(logger, "failed to remove orphaned job workspace",
					"workspace_sweep_failed",
					logging.String("path", dir),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check cache_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
			}
			continue
		}
		result.Removed = append(result.Removed, dir)
		if logger != nil {
			logger.Info("removed orphaned job workspace",
				logging.String("path", dir),
				logging.Duration("age", time.Since(info.ModTime())),
				logging.String(logging.FieldEventType, "workspace_swept"),
			)
		}
	}
	return result
}
