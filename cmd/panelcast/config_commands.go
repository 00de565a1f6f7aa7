package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"panelcast/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Create, check or print the configuration",
		Annotations: offline,
	}
	cmd.AddCommand(newConfigInitCommand(), newConfigValidateCommand(ctx), newConfigShowCommand(ctx))
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		target    string
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented sample configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := initTarget(target)
			if err != nil {
				return err
			}
			_, statErr := os.Stat(path)
			switch {
			case statErr == nil && !overwrite:
				return fmt.Errorf("%s already exists; pass --overwrite to replace it", path)
			case statErr != nil && !errors.Is(statErr, fs.ErrNotExist):
				return fmt.Errorf("check %s: %w", path, statErr)
			}
			if err := config.CreateSample(path); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", path)
			fmt.Fprintln(out, "Point collaborators.base_url at your generation services (key via PANELCAST_COLLABORATOR_KEY) before submitting.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&target, "path", "p", "", "Where to write the file (default: the standard config location)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func initTarget(flag string) (string, error) {
	if flag = strings.TrimSpace(flag); flag != "" {
		return config.ExpandPath(flag)
	}
	path, err := config.DefaultConfigPath()
	if err != nil {
		return "", fmt.Errorf("locate default config: %w", err)
	}
	return path, nil
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and report the first problem",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, exists, err := loadValidConfig(ctx.configPath())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if exists {
				fmt.Fprintf(out, "Config path: %s\n", path)
			} else {
				fmt.Fprintf(out, "Config path: %s (missing, defaults in effect)\n", path)
			}
			fmt.Fprintf(out, "Cache dir:   %s\n", cfg.Paths.CacheDir)
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

// newConfigShowCommand prints the effective configuration after defaults,
// environment overrides and normalization.
func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, _, err := loadValidConfig(ctx.configPath())
			if err != nil {
				return err
			}
			shown := *cfg
			if !reveal {
				redact(&shown.Paths.APIToken)
				redact(&shown.Collaborators.APIKey)
				redact(&shown.StatusCache.Password)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, shown)
			}
			data, err := toml.Marshal(shown)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal-secrets", false, "Print tokens and passwords instead of masking them")
	return cmd
}

func loadValidConfig(path string) (*config.Config, string, bool, error) {
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		return nil, resolved, exists, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, resolved, exists, fmt.Errorf("invalid config %s: %w", resolved, err)
	}
	return cfg, resolved, exists, nil
}

func redact(secret *string) {
	if *secret != "" {
		*secret = "********"
	}
}
