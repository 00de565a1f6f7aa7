package pipeline

import (
	"context"
	"fmt"

	"panelcast/internal/artifacts"
	"panelcast/internal/collab/remote"
	"panelcast/internal/manifest"
	"panelcast/internal/stage"
)

// TTSGeneration synthesizes one clip per spoken bubble.
type TTSGeneration struct {
	ws     artifacts.Workspace
	remote Collaborators
}

// NewTTSGeneration constructs the tts_generation stage.
func NewTTSGeneration(d Deps) *TTSGeneration {
	return &TTSGeneration{ws: d.Workspace, remote: d.Remote}
}

func (s *TTSGeneration) Name() stage.Name { return stage.TTSGeneration }

// Run voices one bubble. Skipped bubbles keep an empty audio path.
func (s *TTSGeneration) Run(ctx context.Context, item stage.Item) (stage.Item, error) {
	if !spoken(item.Bubble) {
		item.Bubble.AudioPath = ""
		return item, nil
	}
	audio, err := s.remote.Synthesize(ctx, remote.SpeechRequest{
		Text:         item.Bubble.Text,
		Voice:        voiceForBubble(item.Doc, item.Bubble),
		Instructions: deliveryInstructions(item.Bubble.Emotion),
		Format:       "mp3",
	})
	if err != nil {
		return item, err
	}
	if len(audio.Data) == 0 {
		return item, fmt.Errorf("speech synthesis returned no audio for %s", item.Bubble.BubbleID)
	}
	rel := artifacts.VoiceClip(item.Bubble.BubbleID, audio.Format)
	if err := s.ws.Write(item.Doc.ComicID, rel, audio.Data); err != nil {
		return item, fmt.Errorf("write %s: %w", rel, err)
	}
	item.Bubble.AudioPath = rel
	return item, nil
}

// HealthCheck pings the speech collaborator.
func (s *TTSGeneration) HealthCheck(ctx context.Context) stage.Health {
	return remoteHealth(ctx, stage.TTSGeneration, s.remote, endpoint(s.remote, func(e remote.Endpoints) string { return e.SpeechSynthesis }))
}

func voiceForBubble(doc *manifest.Comic, b manifest.Bubble) string {
	if sp, ok := doc.Speaker(b.SpeakerID); ok {
		if sp.VoiceID != "" {
			return sp.VoiceID
		}
		return VoiceFor(sp)
	}
	if b.SpeakerID == manifest.NarratorSpeakerID || b.Type == manifest.BubbleNarration {
		return narratorVoice
	}
	return defaultVoice
}

func deliveryInstructions(emotion string) string {
	if emotion == "" {
		emotion = "neutral"
	}
	return "Speak with a " + emotion + " tone."
}
