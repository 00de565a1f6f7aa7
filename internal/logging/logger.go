package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

// Options configures New.
type Options struct {
	Level  string
	Format string // json, console or auto
	// Console receives every line; nil means os.Stdout.
	Console io.Writer
	// File, when set, is opened for append and receives the same lines.
	File        string
	Development bool
}

// New builds the process logger. "auto" picks the console layout when
// Console is a terminal and JSON otherwise; a log file always gets the same
// layout as the console so tailing it looks the same.
func New(opts Options) (*slog.Logger, error) {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	out := console
	if path := strings.TrimSpace(opts.File); path != "" {
		file, err := openAppend(path)
		if err != nil {
			return nil, err
		}
		out = io.MultiWriter(console, file)
	}

	level := new(slog.LevelVar)
	level.Set(ParseLevel(opts.Level))
	addSource := opts.Development || level.Level() <= slog.LevelDebug

	switch format := strings.ToLower(strings.TrimSpace(opts.Format)); format {
	case "", "auto":
		if isTerminal(console) {
			return slog.New(newPrettyHandler(out, level, addSource)), nil
		}
		return slog.New(newJSONHandler(out, level, addSource)), nil
	case "console":
		return slog.New(newPrettyHandler(out, level, addSource)), nil
	case "json":
		return slog.New(newJSONHandler(out, level, addSource)), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
}

// ParseLevel maps a configured level name onto slog levels, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "fatal":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return file, nil
}

// newJSONHandler writes one object per line with a UTC "ts", lowercase
// levels and file:line sources.
func newJSONHandler(w io.Writer, level slog.Leveler, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: addSource,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				if attr.Value.Kind() == slog.KindTime {
					return slog.String("ts", attr.Value.Time().UTC().Format(time.RFC3339))
				}
			case slog.LevelKey:
				return slog.String(slog.LevelKey, strings.ToLower(attr.Value.String()))
			case slog.SourceKey:
				if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
					return slog.String(slog.SourceKey, fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
				}
			}
			return attr
		},
	})
}
