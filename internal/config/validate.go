package config

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateStatusCache(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.CacheDir == "" {
		return errors.New("paths.cache_dir must be set")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind: %w", err)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if err := ensurePositiveMap(map[string]int{
		"pipeline.max_concurrency":              c.Pipeline.MaxConcurrency,
		"pipeline.item_timeout_seconds":         c.Pipeline.ItemTimeoutSeconds,
		"pipeline.render_dpi":                   c.Pipeline.RenderDPI,
		"pipeline.panel_target_width":           c.Pipeline.PanelTargetWidth,
		"pipeline.panel_target_height":          c.Pipeline.PanelTargetHeight,
		"pipeline.max_upload_mb":                c.Pipeline.MaxUploadMB,
		"collaborators.request_timeout_seconds": c.Collaborators.RequestTimeoutSeconds,
		"notifications.request_timeout":         c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStatusCache() error {
	if !c.StatusCache.Enabled {
		return nil
	}
	if c.StatusCache.Addr == "" {
		return errors.New("status_cache.addr must be set when status_cache.enabled is true")
	}
	if c.StatusCache.TTLSeconds <= 0 {
		return errors.New("status_cache.ttl_seconds must be positive")
	}
	return nil
}

func (c *Config) validateEvents() error {
	if !c.Events.Enabled {
		return nil
	}
	if len(c.Events.Brokers) == 0 {
		return errors.New("events.brokers must include at least one broker when events.enabled is true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	for stage, level := range c.Logging.StageOverrides {
		switch level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("logging.stage_overrides.%s: unsupported level %q", stage, level)
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", strings.TrimSpace(key))
		}
	}
	return nil
}
