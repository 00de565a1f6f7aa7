package share

import "panelcast/internal/manifest"

// PublicManifest is what a share link exposes: reading order, text, speakers
// and artifact references. Job ids, fingerprints and errors stay private.
type PublicManifest struct {
	Title                string          `json:"title,omitempty"`
	SourceLanguage       string          `json:"source_language"`
	NormalizationEnabled bool            `json:"normalization_enabled"`
	Speakers             []PublicSpeaker `json:"speakers"`
	Pages                []PublicPage    `json:"pages"`
}

type PublicSpeaker struct {
	SpeakerID string `json:"speaker_id"`
	Label     string `json:"label,omitempty"`
	VoiceID   string `json:"voice_id,omitempty"`
}

type PublicPage struct {
	PageNumber int           `json:"page_number"`
	ImagePath  string        `json:"image_path"`
	Panels     []PublicPanel `json:"panels"`
}

type PublicPanel struct {
	OrderIndex          int            `json:"order_index"`
	BBox                manifest.BBox  `json:"bbox"`
	ImagePath           string         `json:"image_path"`
	NormalizedImagePath string         `json:"normalized_image_path,omitempty"`
	SFXAudioPath        string         `json:"sfx_audio_path,omitempty"`
	Bubbles             []PublicBubble `json:"bubbles"`
}

type PublicBubble struct {
	OrderIndex int                 `json:"order_index"`
	Type       manifest.BubbleType `json:"type"`
	BBox       manifest.BBox       `json:"bbox"`
	Text       string              `json:"text"`
	SpeakerID  string              `json:"speaker_id,omitempty"`
	Emotion    string              `json:"emotion,omitempty"`
	AudioPath  string              `json:"audio_path,omitempty"`
}

// Public strips a manifest down to its playback fields.
func Public(doc *manifest.Comic) *PublicManifest {
	if doc == nil {
		return nil
	}
	out := &PublicManifest{
		Title:                doc.Title,
		SourceLanguage:       doc.SourceLanguage,
		NormalizationEnabled: doc.NormalizationEnabled,
		Speakers:             make([]PublicSpeaker, 0, len(doc.Speakers)),
		Pages:                make([]PublicPage, 0, len(doc.Pages)),
	}
	for _, sp := range doc.Speakers {
		out.Speakers = append(out.Speakers, PublicSpeaker{SpeakerID: sp.SpeakerID, Label: sp.Label, VoiceID: sp.VoiceID})
	}
	for _, page := range doc.Pages {
		pp := PublicPage{PageNumber: page.PageNumber, ImagePath: page.ImagePath, Panels: make([]PublicPanel, 0, len(page.Panels))}
		for _, panel := range page.Panels {
			pn := PublicPanel{
				OrderIndex:          panel.OrderIndex,
				BBox:                panel.BBox,
				ImagePath:           panel.ImagePath,
				NormalizedImagePath: panel.NormalizedImagePath,
				SFXAudioPath:        panel.SFXAudioPath,
				Bubbles:             make([]PublicBubble, 0, len(panel.Bubbles)),
			}
			for _, b := range panel.Bubbles {
				pn.Bubbles = append(pn.Bubbles, PublicBubble{
					OrderIndex: b.OrderIndex,
					Type:       b.Type,
					BBox:       b.BBox,
					Text:       b.Text,
					SpeakerID:  b.SpeakerID,
					Emotion:    b.Emotion,
					AudioPath:  b.AudioPath,
				})
			}
			pp.Panels = append(pp.Panels, pn)
		}
		out.Pages = append(out.Pages, pp)
	}
	return out
}
