package config

import (
	"fmt"
	"os"
	"strings"

	"panelcast/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePipeline()
	c.normalizeCollaborators()
	c.normalizeStatusCache()
	c.normalizeEvents()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = ExpandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("PANELCAST_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	c.Paths.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Paths.PublicBaseURL), "/")
	return nil
}

func (c *Config) normalizePipeline() {
	c.Pipeline.SourceLanguage = language.Or(c.Pipeline.SourceLanguage, defaultSourceLanguage)
}

func (c *Config) normalizeCollaborators() {
	c.Collaborators.BaseURL = strings.TrimRight(strings.TrimSpace(c.Collaborators.BaseURL), "/")
	if c.Collaborators.APIKey == "" {
		if value, ok := os.LookupEnv("PANELCAST_COLLABORATOR_KEY"); ok {
			c.Collaborators.APIKey = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Collaborators.PDFToPPMBinary) == "" {
		c.Collaborators.PDFToPPMBinary = defaultPDFToPPMBinary
	}
	if strings.TrimSpace(c.Collaborators.PDFInfoBinary) == "" {
		c.Collaborators.PDFInfoBinary = defaultPDFInfoBinary
	}
}

func (c *Config) normalizeStatusCache() {
	c.StatusCache.Addr = strings.TrimSpace(c.StatusCache.Addr)
	if c.StatusCache.KeyPrefix == "" {
		c.StatusCache.KeyPrefix = defaultStatusCacheKeyPrefix
	}
}

func (c *Config) normalizeEvents() {
	brokers := c.Events.Brokers[:0]
	for _, broker := range c.Events.Brokers {
		if trimmed := strings.TrimSpace(broker); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	c.Events.Brokers = brokers
	c.Events.Topic = strings.TrimSpace(c.Events.Topic)
	if c.Events.Topic == "" {
		c.Events.Topic = defaultEventsTopic
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "auto":
		c.Logging.Format = "auto"
	case "text":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if len(c.Logging.StageOverrides) > 0 {
		overrides := make(map[string]string, len(c.Logging.StageOverrides))
		for stage, level := range c.Logging.StageOverrides {
			key := strings.ToLower(strings.TrimSpace(stage))
			if key == "" {
				continue
			}
			overrides[key] = strings.ToLower(strings.TrimSpace(level))
		}
		c.Logging.StageOverrides = overrides
	}
}
