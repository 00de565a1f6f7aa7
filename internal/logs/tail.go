package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"
)

const pollInterval = 250 * time.Millisecond

// TailOptions controls a single tail request.
type TailOptions struct {
	// Offset is a byte offset from a previous result; negative reads the
	// last Limit lines.
	Offset int64
	Limit  int
	// Follow with a positive Wait blocks up to Wait for new lines when none
	// are available yet.
	Follow bool
	Wait   time.Duration
	// JobID keeps only lines mentioning the job. Console lines carry an
	// eight character prefix of the id, so both forms match.
	JobID string
}

// TailResult holds matched lines and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads complete lines from path. A missing file yields no lines and
// offset zero; an offset past the end of the file (after rotation or
// truncation) restarts from the beginning.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	t := tailer{path: path, keep: matcher(opts.JobID)}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return TailResult{}, nil
	case err != nil:
		return TailResult{Offset: opts.Offset}, fmt.Errorf("stat log file: %w", err)
	case info.IsDir():
		return TailResult{Offset: opts.Offset}, fmt.Errorf("log path %q is a directory", path)
	}

	var res TailResult
	if opts.Offset < 0 {
		res, err = t.last(opts.Limit)
	} else {
		offset := opts.Offset
		if offset > info.Size() {
			offset = 0
		}
		res, err = t.from(offset)
	}
	if err != nil || len(res.Lines) > 0 || !opts.Follow || opts.Wait <= 0 {
		return res, err
	}
	return t.await(ctx, res.Offset, opts.Wait)
}

type tailer struct {
	path string
	keep func(string) bool
}

func matcher(jobID string) func(string) bool {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return func(string) bool { return true }
	}
	header := "Job " + jobID[:min(len(jobID), 8)]
	return func(line string) bool {
		return strings.Contains(line, jobID) || strings.Contains(line, header)
	}
}

// last returns up to limit matching lines from the end of the file.
func (t tailer) last(limit int) (TailResult, error) {
	var window []string
	end, err := t.scan(0, func(line string) {
		if limit <= 0 {
			return
		}
		if len(window) == limit {
			window = window[1:]
		}
		window = append(window, line)
	})
	return TailResult{Lines: window, Offset: end}, err
}

func (t tailer) from(offset int64) (TailResult, error) {
	var lines []string
	end, err := t.scan(offset, func(line string) { lines = append(lines, line) })
	return TailResult{Lines: lines, Offset: end}, err
}

// await polls from offset until a matching line appears, wait passes or ctx
// ends.
func (t tailer) await(ctx context.Context, offset int64, wait time.Duration) (TailResult, error) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	res := TailResult{Offset: offset}
	for {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-deadline.C:
			return res, nil
		case <-ticker.C:
		}
		next, err := t.from(res.Offset)
		if err != nil {
			return res, err
		}
		if len(next.Lines) > 0 {
			return next, nil
		}
		res.Offset = next.Offset
	}
}

// scan feeds matching complete lines after offset to fn and returns the
// offset just past the last newline, so a partially written line is read
// again next time.
func (t tailer) scan(offset int64, fn func(string)) (int64, error) {
	file, err := os.Open(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}
	reader := bufio.NewReaderSize(file, 64*1024)
	for {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			return offset, nil
		}
		if err != nil {
			return offset, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(line))
		if line = strings.TrimRight(line, "\r\n"); t.keep(line) {
			fn(line)
		}
	}
}
