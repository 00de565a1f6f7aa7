package pipeline

import (
	"context"
	"fmt"

	"panelcast/internal/artifacts"
	"panelcast/internal/collab/remote"
	"panelcast/internal/stage"
)

const (
	// DefaultSFXPrompt is used when the director has no specific idea for a
	// panel that should still carry ambience.
	DefaultSFXPrompt = "soft ambient background, comic book"
	sfxDurationSec   = 4
)

// SFXGeneration directs and renders one ambient clip per panel.
type SFXGeneration struct {
	ws     artifacts.Workspace
	remote Collaborators
}

// NewSFXGeneration constructs the sfx_generation stage.
func NewSFXGeneration(d Deps) *SFXGeneration {
	return &SFXGeneration{ws: d.Workspace, remote: d.Remote}
}

func (s *SFXGeneration) Name() stage.Name { return stage.SFXGeneration }

// Run handles one panel. A silent panel ends with no prompt and no audio.
func (s *SFXGeneration) Run(ctx context.Context, item stage.Item) (stage.Item, error) {
	texts := make([]string, 0, len(item.Panel.Bubbles))
	for _, b := range item.Panel.Bubbles {
		if b.Text != "" {
			texts = append(texts, b.Text)
		}
	}
	direction, err := s.remote.DirectSound(ctx, remote.SoundDirectionRequest{
		PanelID: item.Panel.PanelID,
		Texts:   texts,
	})
	if err != nil {
		return item, err
	}
	if direction.Silent {
		item.Panel.SFXPrompt = ""
		item.Panel.SFXAudioPath = ""
		return item, nil
	}
	prompt := direction.Prompt
	if prompt == "" {
		prompt = DefaultSFXPrompt
	}
	audio, err := s.remote.GenerateSound(ctx, remote.SoundRequest{Prompt: prompt, DurationSeconds: sfxDurationSec})
	if err != nil {
		return item, err
	}
	item.Panel.SFXPrompt = prompt
	if len(audio.Data) == 0 {
		item.Panel.SFXAudioPath = ""
		return item, nil
	}
	rel := artifacts.SFXClip(item.Panel.PanelID, audio.Format)
	if err := s.ws.Write(item.Doc.ComicID, rel, audio.Data); err != nil {
		return item, fmt.Errorf("write %s: %w", rel, err)
	}
	item.Panel.SFXAudioPath = rel
	return item, nil
}

// HealthCheck pings the sound collaborators.
func (s *SFXGeneration) HealthCheck(ctx context.Context) stage.Health {
	health := remoteHealth(ctx, stage.SFXGeneration, s.remote, endpoint(s.remote, func(e remote.Endpoints) string { return e.SoundDirection }))
	if !health.Ready {
		return health
	}
	if endpoint(s.remote, func(e remote.Endpoints) string { return e.SoundGeneration }) == "" {
		return stage.Unhealthy(stage.SFXGeneration, "sound generation endpoint not configured")
	}
	return health
}
