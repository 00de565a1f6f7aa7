package config

const (
	defaultConfigPath            = "~/.config/panelcast/config.toml"
	defaultCacheDir              = "~/.local/share/panelcast/cache"
	defaultLogDir                = "~/.local/share/panelcast/logs"
	defaultAPIBind               = "127.0.0.1:8000"
	defaultLogFormat             = "auto"
	defaultLogLevel              = "info"
	defaultMaxConcurrency        = 8
	defaultItemTimeoutSeconds    = 120
	defaultRenderDPI             = 150
	defaultPanelTargetWidth      = 1280
	defaultPanelTargetHeight     = 720
	defaultMaxUploadMB           = 200
	defaultSourceLanguage        = "en"
	defaultCollaboratorTimeout   = 90
	defaultPDFToPPMBinary        = "pdftoppm"
	defaultPDFInfoBinary         = "pdfinfo"
	defaultStatusCacheAddr       = "127.0.0.1:6379"
	defaultStatusCacheTTLSeconds = 600
	defaultStatusCacheKeyPrefix  = "panelcast:job:"
	defaultEventsTopic           = "panelcast.jobs"
	defaultNotifyRequestTimeout  = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheDir: defaultCacheDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Pipeline: Pipeline{
			MaxConcurrency:     defaultMaxConcurrency,
			ItemTimeoutSeconds: defaultItemTimeoutSeconds,
			RenderDPI:          defaultRenderDPI,
			PanelTargetWidth:   defaultPanelTargetWidth,
			PanelTargetHeight:  defaultPanelTargetHeight,
			MaxUploadMB:        defaultMaxUploadMB,
			ResumeOnStart:      true,
			SourceLanguage:     defaultSourceLanguage,
		},
		Collaborators: Collaborators{
			RequestTimeoutSeconds: defaultCollaboratorTimeout,
			PanelDetection:        "/panels",
			BubbleOCR:             "/bubbles",
			SpeakerAttribution:    "/speakers",
			EmotionTagging:        "/emotions",
			SpeechSynthesis:       "/speech",
			SoundDirection:        "/sfx-prompts",
			SoundGeneration:       "/sfx",
			PDFToPPMBinary:        defaultPDFToPPMBinary,
			PDFInfoBinary:         defaultPDFInfoBinary,
		},
		StatusCache: StatusCache{
			Addr:       defaultStatusCacheAddr,
			TTLSeconds: defaultStatusCacheTTLSeconds,
			KeyPrefix:  defaultStatusCacheKeyPrefix,
		},
		Events: Events{
			Topic: defaultEventsTopic,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			JobCompleted:   true,
			JobFailed:      true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
