package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"panelcast/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "panelcastd.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestTailLastLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	if len(result.Lines) != 2 || result.Lines[0] != "b" || result.Lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", result.Lines)
	}
	if result.Offset != 6 {
		t.Fatalf("expected offset at end of file, got %d", result.Offset)
	}
}

func TestTailFiltersByJob(t *testing.T) {
	jobID := "0f3c9a1e-7b2d-4c55-9e61-2a4b8c0d1e2f"
	path := writeLog(t, ""+
		"2026-10-15 10:00:00 INFO [workflow] Job 0f3c9a1e (bubble_ocr) - stage started\n"+
		"2026-10-15 10:00:01 INFO [workflow] Job 99999999 (bubble_ocr) - stage started\n"+
		`{"level":"INFO","msg":"stage committed","job_id":"`+jobID+`"}`+"\n"+
		"2026-10-15 10:00:02 INFO [api-server] - api request\n")

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 10, JobID: jobID})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(result.Lines) != 2 {
		t.Fatalf("expected console and json lines for the job, got %#v", result.Lines)
	}
}

func TestTailKeepsPartialLineForNextRead(t *testing.T) {
	path := writeLog(t, "done\npart")

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: 0})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(result.Lines) != 1 || result.Offset != 5 {
		t.Fatalf("expected only the complete line, got %#v at %d", result.Lines, result.Offset)
	}
}

func TestTailMissingFile(t *testing.T) {
	result, err := logs.Tail(context.Background(), filepath.Join(t.TempDir(), "none.log"), logs.TailOptions{Offset: -1, Limit: 5})
	if err != nil || len(result.Lines) != 0 || result.Offset != 0 {
		t.Fatalf("expected empty result, got %+v err=%v", result, err)
	}
}

func TestTailFollowWaits(t *testing.T) {
	path := writeLog(t, "start\n")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	result, err := logs.Tail(ctx, path, logs.TailOptions{Offset: -1, Limit: 1})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}

	done := make(chan struct{})
	go func(offset int64) {
		defer close(done)
		res, err := logs.Tail(ctx, path, logs.TailOptions{Offset: offset, Follow: true, Wait: 5 * time.Second})
		if err != nil {
			t.Errorf("follow tail error: %v", err)
		}
		if len(res.Lines) != 1 || res.Lines[0] != "later" {
			t.Errorf("unexpected follow lines: %#v", res.Lines)
		}
	}(result.Offset)

	time.Sleep(200 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("tail follow did not return")
	}
}
