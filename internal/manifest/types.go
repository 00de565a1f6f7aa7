package manifest

import (
	"fmt"
	"time"

	"panelcast/internal/fingerprint"
)

// BubbleType classifies a detected text region.
type BubbleType string

const (
	BubbleSpeech    BubbleType = "speech"
	BubbleThought   BubbleType = "thought"
	BubbleNarration BubbleType = "narration"
	BubbleSFX       BubbleType = "sfx"
)

// ParseBubbleType maps collaborator output onto a BubbleType, defaulting to
// speech for unknown values.
func ParseBubbleType(value string) BubbleType {
	switch BubbleType(value) {
	case BubbleThought, BubbleNarration, BubbleSFX:
		return BubbleType(value)
	default:
		return BubbleSpeech
	}
}

// NarratorSpeakerID is reserved for narration boxes.
const NarratorSpeakerID = "narrator"

// BBox is a pixel rectangle with its origin at the top-left corner.
type BBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Empty reports whether the box has no area.
func (b BBox) Empty() bool {
	return b.W <= 0 || b.H <= 0
}

// Speaker is a character recognised across panels.
type Speaker struct {
	SpeakerID       string   `json:"speaker_id"`
	Label           string   `json:"label,omitempty"`
	VoiceID         string   `json:"voice_id,omitempty"`
	Gender          string   `json:"gender,omitempty"`
	AgeGroup        string   `json:"age_group,omitempty"`
	PersonalityTags []string `json:"personality_tags,omitempty"`
}

// Bubble is one speech, thought, narration or sound-effect region.
type Bubble struct {
	BubbleID      string     `json:"bubble_id"`
	OrderIndex    int        `json:"order_index"`
	Type          BubbleType `json:"type"`
	BBox          BBox       `json:"bbox"`
	Text          string     `json:"text"`
	Language      string     `json:"language,omitempty"`
	SpeakerID     string     `json:"speaker_id,omitempty"`
	Emotion       string     `json:"emotion,omitempty"`
	AudioPath     string     `json:"audio_path,omitempty"`
	OCRConfidence float64    `json:"ocr_confidence"`
}

// Panel is a cropped region of a page in reading order.
type Panel struct {
	PanelID                string   `json:"panel_id"`
	OrderIndex             int      `json:"order_index"`
	BBox                   BBox     `json:"bbox"`
	ImagePath              string   `json:"image_path"`
	NormalizedImagePath    string   `json:"normalized_image_path,omitempty"`
	NormalizationFillModel string   `json:"normalization_fill_model,omitempty"`
	SFXPrompt              string   `json:"sfx_prompt,omitempty"`
	SFXAudioPath           string   `json:"sfx_audio_path,omitempty"`
	Bubbles                []Bubble `json:"bubbles"`
}

// Page is one rendered source page.
type Page struct {
	PageID     string  `json:"page_id"`
	PageNumber int     `json:"page_number"`
	ImagePath  string  `json:"image_path"`
	Panels     []Panel `json:"panels"`
}

// Comic is the root manifest document.
type Comic struct {
	ComicID              string    `json:"comic_id"`
	Title                string    `json:"title,omitempty"`
	Fingerprint          string    `json:"fingerprint"`
	Speakers             []Speaker `json:"speakers"`
	Pages                []Page    `json:"pages"`
	SourceLanguage       string    `json:"source_language"`
	NormalizationEnabled bool      `json:"normalization_enabled"`
	CreatedAt            time.Time `json:"created_at"`

	// Selection is the requested page range; rendering clamps it to the
	// source's page count.
	Selection fingerprint.PageRange `json:"selection"`
}

// PageID builds the identifier for the 1-based page number n.
func PageID(comicID string, n int) string {
	return fmt.Sprintf("%s_pg%04d", comicID, n)
}

// PanelID builds the identifier for the panel at reading position idx.
func PanelID(pageID string, idx int) string {
	return fmt.Sprintf("%s_p%03d", pageID, idx)
}

// BubbleID builds the identifier for the bubble at reading position idx.
func BubbleID(panelID string, idx int) string {
	return fmt.Sprintf("%s_b%03d", panelID, idx)
}

// Speaker returns the speaker with the given id.
func (c *Comic) Speaker(id string) (Speaker, bool) {
	if c == nil {
		return Speaker{}, false
	}
	for _, s := range c.Speakers {
		if s.SpeakerID == id {
			return s, true
		}
	}
	return Speaker{}, false
}

// Counts summarises the document for status and logs.
type Counts struct {
	Pages            int `json:"pages"`
	Panels           int `json:"panels"`
	Bubbles          int `json:"bubbles"`
	VoicedBubbles    int `json:"voiced_bubbles"`
	PanelsWithSFX    int `json:"panels_with_sfx"`
	NormalizedPanels int `json:"normalized_panels"`
}

// Counts walks the document once.
func (c *Comic) Counts() Counts {
	var out Counts
	if c == nil {
		return out
	}
	out.Pages = len(c.Pages)
	for _, page := range c.Pages {
		out.Panels += len(page.Panels)
		for _, panel := range page.Panels {
			if panel.SFXAudioPath != "" {
				out.PanelsWithSFX++
			}
			if panel.NormalizedImagePath != "" {
				out.NormalizedPanels++
			}
			out.Bubbles += len(panel.Bubbles)
			for _, bubble := range panel.Bubbles {
				if bubble.AudioPath != "" {
					out.VoicedBubbles++
				}
			}
		}
	}
	return out
}
