package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// projectConfigName is picked up from the working directory when no config
// exists at the default location.
const projectConfigName = "panelcast.toml"

// DefaultConfigPath is the absolute form of ~/.config/panelcast/config.toml.
func DefaultConfigPath() (string, error) {
	return ExpandPath(defaultConfigPath)
}

// Load reads the config at path, or the first of the default location and
// ./panelcast.toml that exists when path is empty. Defaults fill anything the
// file leaves out; the result is normalized and validated. It also returns
// the path it settled on and whether that file existed.
func Load(path string) (*Config, string, bool, error) {
	resolved, exists, err := locate(path)
	if err != nil {
		return nil, "", false, err
	}
	cfg := Default()
	if exists {
		if err := decodeFile(resolved, &cfg); err != nil {
			return nil, "", false, err
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

// decodeFile rejects unknown keys so a misspelt setting fails loudly instead
// of silently keeping its default.
func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	err = dec.Decode(cfg)
	var strict *toml.StrictMissingError
	var syntax *toml.DecodeError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &strict):
		keys := make([]string, 0, len(strict.Errors))
		for _, e := range strict.Errors {
			keys = append(keys, strings.Join(e.Key(), "."))
		}
		return fmt.Errorf("parse config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	case errors.As(err, &syntax):
		row, col := syntax.Position()
		return fmt.Errorf("parse config %s:%d:%d: %w", path, row, col, err)
	default:
		return fmt.Errorf("parse config %s: %w", path, err)
	}
}

func locate(path string) (string, bool, error) {
	if path = strings.TrimSpace(path); path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		exists, err := isFile(expanded)
		return expanded, exists, err
	}
	home, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	project, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{home, project} {
		if ok, _ := isFile(candidate); ok {
			return candidate, true, nil
		}
	}
	return home, false, nil
}

func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat config: %w", err)
	case info.IsDir():
		return false, fmt.Errorf("config path %s is a directory", path)
	}
	return true, nil
}

// ExpandPath resolves a leading ~ or ~/ against the home directory and makes
// the result absolute. An empty path stays empty.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	return abs, nil
}

// CreateSample writes the commented sample configuration to path, creating
// parent directories.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
