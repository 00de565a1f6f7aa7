// Package pdfrender rasterizes PDF pages with the poppler command line tools.
package pdfrender

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"panelcast/internal/deps"
	"panelcast/internal/services"
)

const defaultDPI = 150

// Renderer shells out to pdfinfo and pdftoppm.
type Renderer struct {
	PDFToPPM string
	PDFInfo  string
	DPI      int
}

// New builds a renderer, defaulting binary names and DPI.
func New(pdftoppm, pdfinfo string, dpi int) *Renderer {
	if strings.TrimSpace(pdftoppm) == "" {
		pdftoppm = "pdftoppm"
	}
	if strings.TrimSpace(pdfinfo) == "" {
		pdfinfo = "pdfinfo"
	}
	if dpi <= 0 {
		dpi = defaultDPI
	}
	return &Renderer{PDFToPPM: pdftoppm, PDFInfo: pdfinfo, DPI: dpi}
}

// Check reports the first missing binary.
func (r *Renderer) Check() error {
	statuses := deps.CheckBinaries([]deps.Requirement{
		{Name: "pdftoppm", Command: r.PDFToPPM},
		{Name: "pdfinfo", Command: r.PDFInfo},
	})
	if missing := deps.Missing(statuses); len(missing) > 0 {
		return fmt.Errorf("%w: %s", services.ErrExternalTool, missing[0].Detail)
	}
	return nil
}

// PageCount returns the number of pages pdfinfo reports for pdfPath.
func (r *Renderer) PageCount(ctx context.Context, pdfPath string) (int, error) {
	output, err := r.run(ctx, r.PDFInfo, pdfPath)
	if err != nil {
		return 0, err
	}
	return parsePageCount(output)
}

// RenderPage rasterizes the 1-based page to PNG and returns the encoded image.
func (r *Renderer) RenderPage(ctx context.Context, pdfPath string, page int) ([]byte, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page %d out of range", services.ErrInput, page)
	}
	workDir, err := os.MkdirTemp("", "panelcast-render-")
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", page, err)
	}
	defer os.RemoveAll(workDir)

	prefix := filepath.Join(workDir, "page")
	dpi := r.DPI
	if dpi <= 0 {
		dpi = defaultDPI
	}
	args := []string{
		"-png",
		"-r", strconv.Itoa(dpi),
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		"-singlefile",
		pdfPath,
		prefix,
	}
	if _, err := r.run(ctx, r.PDFToPPM, args...); err != nil {
		return nil, fmt.Errorf("render page %d: %w", page, err)
	}
	path, err := findRenderedImage(prefix, page)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", services.ErrExternalTool, err)
	}
	return os.ReadFile(path)
}

func (r *Renderer) run(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return nil, fmt.Errorf("%w: %s: %s", services.ErrExternalTool, filepath.Base(binary), detail)
	}
	return output, nil
}

func parsePageCount(output []byte) (int, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) >= 2 {
			if total, err := strconv.Atoi(parts[1]); err == nil {
				return total, nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("%w: pdfinfo output has no page count", services.ErrExternalTool)
}

// findRenderedImage accepts both the -singlefile name and the zero-padded
// names older poppler builds emit.
func findRenderedImage(prefix string, page int) (string, error) {
	candidates := []string{prefix + ".png"}
	for _, width := range []int{1, 2, 3, 4, 5, 6} {
		candidates = append(candidates, fmt.Sprintf("%s-%0*d.png", prefix, width, page))
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("rendered image not found for page %d", page)
}
