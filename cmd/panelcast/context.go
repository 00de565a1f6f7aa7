package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"panelcast/internal/config"
	"panelcast/internal/ipc"
)

// offlineAnnotation marks commands that must work before a valid config
// exists; the root pre-run skips loading for them and their children.
const offlineAnnotation = "panelcast/offline"

var offline = map[string]string{offlineAnnotation: "true"}

// commandContext carries the persistent flags and the lazily loaded config
// shared by every subcommand.
type commandContext struct {
	socket string
	cfgArg string
	json   bool

	loadConfig func() (*config.Config, error)
}

func newCommandContext() *commandContext {
	c := &commandContext{}
	c.loadConfig = sync.OnceValues(func() (*config.Config, error) {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			return nil, err
		}
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, err
		}
		return cfg, nil
	})
	return c
}

func (c *commandContext) bindFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&c.socket, "socket", "", "Path to the panelcast daemon socket")
	flags.StringVarP(&c.cfgArg, "config", "c", "", "Configuration file path")
	flags.BoolVar(&c.json, "json", false, "Print machine-readable JSON")
}

func (c *commandContext) configPath() string { return strings.TrimSpace(c.cfgArg) }

func (c *commandContext) jsonOutput() bool { return c.json }

func (c *commandContext) ensureConfig() (*config.Config, error) { return c.loadConfig() }

// configValue is the loaded config, or nil when it failed to load. Offline
// commands use it to fall back to defaults.
func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.loadConfig()
	return cfg
}

func (c *commandContext) socketPath() string {
	if socket := strings.TrimSpace(c.socket); socket != "" {
		return socket
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.SocketPath()
	}
	return filepath.Join(os.TempDir(), "panelcast.sock")
}

func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		return explainDialError(err, socket)
	}
	defer client.Close()
	return fn(client)
}

func explainDialError(err error, socket string) error {
	if errors.Is(err, syscall.ENOENT) || errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("panelcastd is not running (no socket at %s); start it with `panelcast start`", socket)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("panelcastd refused the connection on %s; it may have exited, try `panelcast start`", socket)
	}
	return fmt.Errorf("connect to panelcastd: %w", err)
}

func isOffline(cmd *cobra.Command) bool {
	for ; cmd != nil; cmd = cmd.Parent() {
		if cmd.Annotations[offlineAnnotation] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
