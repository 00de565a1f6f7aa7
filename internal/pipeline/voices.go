package pipeline

import (
	"context"
	"strings"

	"panelcast/internal/collab/remote"
	"panelcast/internal/manifest"
	"panelcast/internal/stage"
)

const (
	defaultVoice  = "alloy"
	narratorVoice = "sage"
)

type voiceKey struct {
	gender string
	age    string
}

var voiceMap = map[voiceKey]string{
	{"male", "child"}:    "verse",
	{"male", "teen"}:     "verse",
	{"male", "adult"}:    "echo",
	{"male", "elder"}:    "onyx",
	{"female", "child"}:  "coral",
	{"female", "teen"}:   "coral",
	{"female", "adult"}:  "nova",
	{"female", "elder"}:  "shimmer",
	{"unknown", "adult"}: defaultVoice,
}

// VoiceFor picks the synthesis voice for a speaker.
func VoiceFor(sp manifest.Speaker) string {
	if sp.SpeakerID == manifest.NarratorSpeakerID {
		return narratorVoice
	}
	gender := strings.ToLower(strings.TrimSpace(sp.Gender))
	if gender == "" {
		gender = "unknown"
	}
	age := strings.ToLower(strings.TrimSpace(sp.AgeGroup))
	if age == "" {
		age = "adult"
	}
	if voice, ok := voiceMap[voiceKey{gender, age}]; ok {
		return voice
	}
	return defaultVoice
}

// VoiceAssignment gives every speaker a voice and tags each spoken bubble
// with an emotion.
type VoiceAssignment struct {
	remote Collaborators
}

// NewVoiceAssignment constructs the voice_assignment stage.
func NewVoiceAssignment(d Deps) *VoiceAssignment {
	return &VoiceAssignment{remote: d.Remote}
}

func (s *VoiceAssignment) Name() stage.Name { return stage.VoiceAssignment }

// Prepare assigns voices. Voices already chosen are kept.
func (s *VoiceAssignment) Prepare(_ context.Context, doc *manifest.Comic) error {
	for i := range doc.Speakers {
		if doc.Speakers[i].VoiceID == "" {
			doc.Speakers[i].VoiceID = VoiceFor(doc.Speakers[i])
		}
	}
	return nil
}

// Run tags one bubble. Sound effects and empty bubbles are not spoken.
func (s *VoiceAssignment) Run(ctx context.Context, item stage.Item) (stage.Item, error) {
	if !spoken(item.Bubble) {
		return item, nil
	}
	speaker := "unknown"
	if sp, ok := item.Doc.Speaker(item.Bubble.SpeakerID); ok && sp.Label != "" {
		speaker = sp.Label
	}
	emotion, err := s.remote.TagEmotion(ctx, remote.EmotionRequest{
		BubbleID: item.Bubble.BubbleID,
		Text:     item.Bubble.Text,
		Speaker:  speaker,
	})
	if err != nil {
		return item, err
	}
	item.Bubble.Emotion = emotion
	return item, nil
}

// HealthCheck pings the emotion tagger.
func (s *VoiceAssignment) HealthCheck(ctx context.Context) stage.Health {
	return remoteHealth(ctx, stage.VoiceAssignment, s.remote, endpoint(s.remote, func(e remote.Endpoints) string { return e.EmotionTagging }))
}

func spoken(b manifest.Bubble) bool {
	return b.Type != manifest.BubbleSFX && strings.TrimSpace(b.Text) != ""
}
