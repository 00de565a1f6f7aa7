package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	consoleTimeLayout = "2006-01-02 15:04:05"
	// consoleFieldBudget caps the detail lines under an INFO-or-louder header.
	consoleFieldBudget = 6
)

// consolePriority lists the keys that win a slot under the field budget, in
// order. Remaining slots go to other fields in record order.
var consolePriority = []string{
	FieldAlert,
	FieldEventType,
	FieldProgressPercent,
	"error",
	FieldErrorHint,
	FieldImpact,
	"items",
	"failed_items",
	"duration",
	"cached",
	"token",
}

// prettyHandler renders one header line per record,
//
//	2026-01-02 15:04:05 INFO [workflow] Job 0f6d5c2a (bubble_ocr) - message
//
// followed by indented key: value lines. Component, job and stage go into the
// header instead of the field list. Debug records show every field.
type prettyHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Leveler
	addSource bool
	preset    []field
	groups    []string
}

type field struct {
	key   string
	value slog.Value
}

func newPrettyHandler(w io.Writer, level slog.Leveler, addSource bool) slog.Handler {
	return &prettyHandler{mu: &sync.Mutex{}, w: w, level: level, addSource: addSource}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.preset = slices.Clone(h.preset)
	for _, a := range attrs {
		next.preset = appendFlat(next.preset, h.groups, a)
	}
	return &next
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.groups = append(slices.Clone(h.groups), name)
	return &next
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	if !h.Enabled(context.Background(), r.Level) {
		return nil
	}
	fields := slices.Clone(h.preset)
	r.Attrs(func(a slog.Attr) bool {
		fields = appendFlat(fields, h.groups, a)
		return true
	})
	fields = lastWins(fields)

	var component, jobID, stage string
	details := fields[:0:0]
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			component = plain(f.value)
		case FieldJobID:
			jobID = plain(f.value)
		case FieldStage:
			stage = plain(f.value)
		default:
			details = append(details, f)
		}
	}

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	msg := strings.TrimSpace(r.Message)
	if msg == "" {
		msg = "(no message)"
	}

	var b bytes.Buffer
	b.WriteString(ts.Local().Format(consoleTimeLayout))
	b.WriteByte(' ')
	b.WriteString(levelName(r.Level))
	if component != "" {
		fmt.Fprintf(&b, " [%s]", component)
	}
	if s := subject(jobID, stage); s != "" {
		b.WriteByte(' ')
		b.WriteString(s)
	}
	b.WriteString(" - ")
	b.WriteString(msg)
	if h.addSource {
		if src := r.Source(); src != nil {
			fmt.Fprintf(&b, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	b.WriteByte('\n')

	if r.Level < slog.LevelInfo {
		for _, f := range details {
			fmt.Fprintf(&b, "    %s: %s\n", f.key, render(f.value))
		}
	} else {
		shown := budgeted(details)
		for _, f := range shown {
			fmt.Fprintf(&b, "    - %s: %s\n", f.key, render(f.value))
		}
		if hidden := len(details) - len(shown); hidden > 0 {
			fmt.Fprintf(&b, "    + %d more field(s) hidden\n", hidden)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(b.Bytes())
	return err
}

// budgeted picks at most consoleFieldBudget fields, priority keys first.
func budgeted(fields []field) []field {
	if len(fields) <= consoleFieldBudget {
		return fields
	}
	out := make([]field, 0, consoleFieldBudget)
	taken := make([]bool, len(fields))
	for _, key := range consolePriority {
		for i, f := range fields {
			if f.key == key && len(out) < consoleFieldBudget {
				out = append(out, f)
				taken[i] = true
			}
		}
	}
	for i, f := range fields {
		if len(out) == consoleFieldBudget {
			break
		}
		if !taken[i] {
			out = append(out, f)
		}
	}
	return out
}

func subject(jobID, stage string) string {
	jobID = strings.TrimSpace(jobID)
	stage = strings.TrimSpace(stage)
	if len(jobID) > 8 {
		jobID = jobID[:8]
	}
	switch {
	case jobID == "":
		return stage
	case stage == "":
		return "Job " + jobID
	default:
		return "Job " + jobID + " (" + stage + ")"
	}
}

// lastWins drops earlier duplicates of a key, keeping the first position and
// the last value.
func lastWins(fields []field) []field {
	index := make(map[string]int, len(fields))
	out := fields[:0:0]
	for _, f := range fields {
		if f.key == "" {
			continue
		}
		if i, ok := index[f.key]; ok {
			out[i].value = f.value
			continue
		}
		index[f.key] = len(out)
		out = append(out, f)
	}
	return out
}

// appendFlat resolves a and flattens groups into dotted keys.
func appendFlat(dst []field, groups []string, a slog.Attr) []field {
	if a.Equal(slog.Attr{}) {
		return dst
	}
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		if a.Key != "" {
			groups = append(slices.Clone(groups), a.Key)
		}
		for _, child := range v.Group() {
			dst = appendFlat(dst, groups, child)
		}
		return dst
	}
	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}
	return append(dst, field{key: key, value: v})
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

// plain renders v without quoting, for header parts.
func plain(v slog.Value) string {
	if v.Kind() == slog.KindAny {
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	}
	if v.Kind() == slog.KindString {
		return v.String()
	}
	return render(v)
}

// render formats a field value, quoting strings that are empty or contain
// quotes or control characters.
func render(v slog.Value) string {
	switch v.Kind() {
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindTime:
		return v.Time().Local().Format(consoleTimeLayout)
	}
	s := plain(v)
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r < ' ' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}
