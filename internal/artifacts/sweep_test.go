package artifacts_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"panelcast/internal/artifacts"
	"panelcast/internal/logging"
)

func TestSweepRemovesOnlyOldOrphans(t *testing.T) {
	ws := artifacts.New(t.TempDir())
	for _, id := range []string{"known", "orphan", "fresh-orphan"} {
		if err := ws.Write(id, artifacts.PageImage(1), []byte("png")); err != nil {
			t.Fatalf("Write %s: %v", id, err)
		}
	}
	old := time.Now().Add(-2 * time.Hour)
	for _, id := range []string{"known", "orphan"} {
		if err := os.Chtimes(ws.Dir(id), old, old); err != nil {
			t.Fatalf("Chtimes: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(ws.Root, "stray.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write stray file: %v", err)
	}

	result := ws.Sweep(context.Background(), func(id string) bool { return id == "known" }, time.Hour, logging.NewNop())
	if len(result.Removed) != 1 || result.Removed[0] != ws.Dir("orphan") {
		t.Fatalf("unexpected removals %v", result.Removed)
	}
	if len(result.Failed) != 0 {
		t.Fatalf("unexpected failures %v", result.Failed)
	}
	for _, keep := range []string{ws.Dir("known"), ws.Dir("fresh-orphan"), filepath.Join(ws.Root, "stray.txt")} {
		if _, err := os.Stat(keep); err != nil {
			t.Fatalf("expected %s to survive: %v", keep, err)
		}
	}
}

func TestSweepMissingRoot(t *testing.T) {
	ws := artifacts.New(filepath.Join(t.TempDir(), "absent"))
	result := ws.Sweep(context.Background(), func(string) bool { return false }, 0, nil)
	if len(result.Removed) != 0 || len(result.Failed) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}
