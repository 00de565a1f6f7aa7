package logging

import (
	"context"
	"log/slog"
)

// floorHandler drops records below floor before they reach next. The wrapped
// handler keeps the global level, so a floor can only make a logger quieter.
type floorHandler struct {
	next  slog.Handler
	floor slog.Level
}

func (h floorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.floor && h.next.Enabled(ctx, level)
}

func (h floorHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.floor {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h floorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return floorHandler{next: h.next.WithAttrs(attrs), floor: h.floor}
}

func (h floorHandler) WithGroup(name string) slog.Handler {
	return floorHandler{next: h.next.WithGroup(name), floor: h.floor}
}

// WithLevelOverride returns logger with a minimum level of floor. Applying it
// twice replaces the earlier floor instead of stacking.
func WithLevelOverride(logger *slog.Logger, floor slog.Level) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	next := logger.Handler()
	if existing, ok := next.(floorHandler); ok {
		next = existing.next
	}
	return slog.New(floorHandler{next: next, floor: floor})
}

// ForStage scopes logger to a stage, applying a configured per-stage level
// when one exists. Overrides map lowercase stage names to level names.
func ForStage(logger *slog.Logger, stage string, overrides map[string]string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	scoped := logger.With(String(FieldStage, stage))
	if level, ok := overrides[stage]; ok {
		return WithLevelOverride(scoped, ParseLevel(level))
	}
	return scoped
}
