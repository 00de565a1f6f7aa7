package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type tone int

const (
	toneInfo tone = iota
	toneOK
	toneWarn
	toneError
)

const (
	ansiReset = "\x1b[0m"
	labelPad  = 20
)

var toneStyles = map[tone]struct {
	label string
	color string
}{
	toneInfo:  {"INFO", "\x1b[34m"},
	toneOK:    {"OK", "\x1b[32m"},
	toneWarn:  {"WARN", "\x1b[33m"},
	toneError: {"ERROR", "\x1b[31m"},
}

// report accumulates the sectioned output of `panelcast status`.
type report struct {
	colorize bool
	lines    []string
}

func (r *report) section(title string) {
	if len(r.lines) > 0 {
		r.lines = append(r.lines, "")
	}
	heading := "== " + strings.TrimSpace(title) + " =="
	rule := strings.Repeat("-", len(heading))
	r.lines = append(r.lines, r.paint(toneStyles[toneInfo].color, heading), r.paint(toneStyles[toneInfo].color, rule))
}

func (r *report) item(label string, t tone, message string) {
	style := toneStyles[t]
	tag := "[" + style.label + "]"
	if message != "" {
		tag += " " + message
	}
	r.lines = append(r.lines, r.paint(style.color, fmt.Sprintf("  %-*s %s", labelPad, label+":", tag)))
}

func (r *report) text(line string) {
	r.lines = append(r.lines, line)
}

func (r *report) paint(color, s string) string {
	if !r.colorize || color == "" {
		return s
	}
	return color + s + ansiReset
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
