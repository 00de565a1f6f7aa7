package services_test

import (
	"context"
	"testing"

	"panelcast/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobID(ctx, "job-42")
	ctx = services.WithStage(ctx, "bubble_ocr")
	ctx = services.WithFingerprint(ctx, "abc123")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.JobIDFromContext(ctx); !ok || id != "job-42" {
		t.Fatalf("unexpected job id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "bubble_ocr" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if fp, ok := services.FingerprintFromContext(ctx); !ok || fp != "abc123" {
		t.Fatalf("unexpected fingerprint: %v %v", fp, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
}
