package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Paths contains directory and bind address configuration.
type Paths struct {
	CacheDir      string `toml:"cache_dir"`
	LogDir        string `toml:"log_dir"`
	APIBind       string `toml:"api_bind"`
	APIToken      string `toml:"api_token"`
	PublicBaseURL string `toml:"public_base_url"`
}

// Pipeline contains the knobs shared by every processing stage.
type Pipeline struct {
	MaxConcurrency     int    `toml:"max_concurrency"`
	ItemTimeoutSeconds int    `toml:"item_timeout_seconds"`
	RenderDPI          int    `toml:"render_dpi"`
	PanelTargetWidth   int    `toml:"panel_target_width"`
	PanelTargetHeight  int    `toml:"panel_target_height"`
	MaxUploadMB        int    `toml:"max_upload_mb"`
	ResumeOnStart      bool   `toml:"resume_on_start"`
	SourceLanguage     string `toml:"source_language"`
}

// Collaborators locates the external generation services. Endpoints are
// joined onto BaseURL; an empty endpoint leaves the stage unavailable.
type Collaborators struct {
	BaseURL               string `toml:"base_url"`
	APIKey                string `toml:"api_key"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	PanelDetection        string `toml:"panel_detection"`
	BubbleOCR             string `toml:"bubble_ocr"`
	SpeakerAttribution    string `toml:"speaker_attribution"`
	EmotionTagging        string `toml:"emotion_tagging"`
	SpeechSynthesis       string `toml:"speech_synthesis"`
	SoundDirection        string `toml:"sound_direction"`
	SoundGeneration       string `toml:"sound_generation"`
	PDFToPPMBinary        string `toml:"pdftoppm_binary"`
	PDFInfoBinary         string `toml:"pdfinfo_binary"`
}

// StatusCache mirrors job status into Redis for cheap polling.
type StatusCache struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	TTLSeconds int    `toml:"ttl_seconds"`
	KeyPrefix  string `toml:"key_prefix"`
}

// Events publishes job lifecycle events to Kafka.
type Events struct {
	Enabled bool     `toml:"enabled"`
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobCompleted   bool   `toml:"job_completed"`
	JobFailed      bool   `toml:"job_failed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format         string            `toml:"format"`
	Level          string            `toml:"level"`
	StageOverrides map[string]string `toml:"stage_overrides"`
}

// Config encapsulates all configuration values for panelcast.
//
// Configuration sections by subsystem:
//   - Paths: cache and log directories, API bind address
//   - Pipeline: fan-out limits, timeouts and render geometry
//   - Collaborators: external generation service endpoints
//   - StatusCache: optional Redis status mirror
//   - Events: optional Kafka lifecycle events
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Collaborators Collaborators `toml:"collaborators"`
	StatusCache   StatusCache   `toml:"status_cache"`
	Events        Events        `toml:"events"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.CacheDir, c.Paths.LogDir, c.JobsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// JobsDir is the root under which per-job sources and artifacts are written.
func (c *Config) JobsDir() string {
	return filepath.Join(c.Paths.CacheDir, "jobs")
}

// DatabasePath returns the SQLite manifest store location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.CacheDir, "manifests.db")
}

// LockPath returns the single-instance lock file for the cache directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.CacheDir, "panelcastd.lock")
}

// SocketPath returns the daemon's JSON-RPC socket.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "panelcast.sock")
}

// PIDPath returns the file holding the running daemon's process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.LogDir, "panelcastd.pid")
}

// ItemTimeout converts the per-item timeout into a duration.
func (c *Config) ItemTimeout() time.Duration {
	return time.Duration(c.Pipeline.ItemTimeoutSeconds) * time.Second
}

// MaxUploadBytes returns the accepted upload size in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Pipeline.MaxUploadMB) << 20
}
