package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"panelcast/internal/config"
)

// ConfigOption adjusts a test config. It receives the test and the temp
// root so it can create files next to the cache.
type ConfigOption func(t testing.TB, root string, cfg *config.Config)

// NewConfig returns defaults rooted in a fresh temp dir: cache/ and logs/
// under it, an ephemeral API port, resume disabled and short item timeouts.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.CacheDir = filepath.Join(root, "cache")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Paths.PublicBaseURL = "http://panelcast.test"
	cfg.Pipeline.MaxConcurrency = 4
	cfg.Pipeline.ItemTimeoutSeconds = 5
	cfg.Pipeline.ResumeOnStart = false
	cfg.Collaborators.BaseURL = "http://collaborators.test"
	for _, opt := range opts {
		opt(t, root, &cfg)
	}
	return &cfg
}

// WithAPIToken requires bearer auth on the HTTP API.
func WithAPIToken(token string) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) { cfg.Paths.APIToken = token }
}

// WithStubbedBinaries installs /bin/sh stubs running script (default
// "exit 0") for names, pdftoppm and pdfinfo when none are given, and puts
// them first on PATH for the rest of the test.
func WithStubbedBinaries(script string, names ...string) ConfigOption {
	return func(t testing.TB, root string, _ *config.Config) {
		if len(names) == 0 {
			names = []string{"pdftoppm", "pdfinfo"}
		}
		if script == "" {
			script = "exit 0\n"
		}
		bin := filepath.Join(root, "bin")
		if err := os.MkdirAll(bin, 0o755); err != nil {
			t.Fatalf("create stub dir: %v", err)
		}
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(bin, name), []byte("#!/bin/sh\n"+script), 0o755); err != nil {
				t.Fatalf("write %s stub: %v", name, err)
			}
		}
		t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir is the temp root NewConfig created for cfg.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.CacheDir)
}
