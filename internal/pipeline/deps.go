package pipeline

import (
	"context"
	"log/slog"

	"panelcast/internal/artifacts"
	"panelcast/internal/collab/pdfrender"
	"panelcast/internal/collab/remote"
	"panelcast/internal/config"
	"panelcast/internal/logging"
	"panelcast/internal/stage"
)

// PageRenderer rasterizes source pages.
type PageRenderer interface {
	Check() error
	PageCount(ctx context.Context, pdfPath string) (int, error)
	RenderPage(ctx context.Context, pdfPath string, page int) ([]byte, error)
}

// Collaborators is the set of remote generation calls the stages use.
type Collaborators interface {
	Ping(ctx context.Context) error
	Endpoints() remote.Endpoints
	DetectPanels(ctx context.Context, req remote.PanelRequest) ([]remote.Region, error)
	DetectBubbles(ctx context.Context, req remote.BubbleRequest) ([]remote.DetectedBubble, error)
	AttributeSpeakers(ctx context.Context, req remote.SpeakerRequest) (remote.SpeakerResponse, error)
	TagEmotion(ctx context.Context, req remote.EmotionRequest) (string, error)
	Synthesize(ctx context.Context, req remote.SpeechRequest) (remote.Audio, error)
	DirectSound(ctx context.Context, req remote.SoundDirectionRequest) (remote.SoundDirection, error)
	GenerateSound(ctx context.Context, req remote.SoundRequest) (remote.Audio, error)
}

// Deps bundles what the stages share.
type Deps struct {
	Workspace      artifacts.Workspace
	Renderer       PageRenderer
	Remote         Collaborators
	PanelWidth     int
	PanelHeight    int
	SourceLanguage string
	Logger         *slog.Logger
}

// DepsFromConfig wires the production renderer and collaborator client.
func DepsFromConfig(cfg *config.Config, logger *slog.Logger) Deps {
	c := cfg.Collaborators
	client := remote.NewClient(remote.Config{
		BaseURL:        c.BaseURL,
		APIKey:         c.APIKey,
		TimeoutSeconds: c.RequestTimeoutSeconds,
		Endpoints: remote.Endpoints{
			PanelDetection:     c.PanelDetection,
			BubbleOCR:          c.BubbleOCR,
			SpeakerAttribution: c.SpeakerAttribution,
			EmotionTagging:     c.EmotionTagging,
			SpeechSynthesis:    c.SpeechSynthesis,
			SoundDirection:     c.SoundDirection,
			SoundGeneration:    c.SoundGeneration,
		},
	})
	return Deps{
		Workspace:      artifacts.New(cfg.JobsDir()),
		Renderer:       pdfrender.New(c.PDFToPPMBinary, c.PDFInfoBinary, cfg.Pipeline.RenderDPI),
		Remote:         client,
		PanelWidth:     cfg.Pipeline.PanelTargetWidth,
		PanelHeight:    cfg.Pipeline.PanelTargetHeight,
		SourceLanguage: cfg.Pipeline.SourceLanguage,
		Logger:         logger,
	}
}

// NewStageSet builds every stage of the pipeline.
func NewStageSet(d Deps) stage.Set {
	if d.Logger == nil {
		d.Logger = logging.NewNop()
	}
	return stage.Set{
		stage.PDFToImages:        NewRenderPages(d),
		stage.PanelDetection:     NewPanelDetection(d),
		stage.BubbleOCR:          NewBubbleOCR(d),
		stage.SpeakerAttribution: NewSpeakerAttribution(d),
		stage.VoiceAssignment:    NewVoiceAssignment(d),
		stage.TTSGeneration:      NewTTSGeneration(d),
		stage.SFXGeneration:      NewSFXGeneration(d),
		stage.Normalization:      NewNormalization(d),
	}
}

// remoteHealth reports whether the collaborator behind endpoint is usable.
func remoteHealth(ctx context.Context, name stage.Name, client Collaborators, endpoint string) stage.Health {
	if client == nil {
		return stage.Unhealthy(name, "collaborator client not configured")
	}
	if endpoint == "" {
		return stage.Unhealthy(name, "endpoint not configured")
	}
	if err := client.Ping(ctx); err != nil {
		return stage.Unhealthy(name, err.Error())
	}
	return stage.Healthy(name)
}
