package remote

import (
	"context"
	"strings"
)

// Region is a detected rectangle with a 1-based reading order.
type Region struct {
	Order int `json:"order"`
	X     int `json:"x"`
	Y     int `json:"y"`
	W     int `json:"w"`
	H     int `json:"h"`
}

// PanelRequest asks for the panels on one rendered page.
type PanelRequest struct {
	PageID string `json:"page_id"`
	Image  []byte `json:"image"`
}

type panelResponse struct {
	Panels []Region `json:"panels"`
}

// DetectPanels returns the panel regions of a page, ordered as the
// collaborator reported them.
func (c *Client) DetectPanels(ctx context.Context, req PanelRequest) ([]Region, error) {
	var resp panelResponse
	if err := c.call(ctx, "panel detection", c.cfg.Endpoints.PanelDetection, req, &resp); err != nil {
		return nil, err
	}
	return resp.Panels, nil
}

// BubbleRequest asks for the text regions inside one panel.
type BubbleRequest struct {
	PanelID  string `json:"panel_id"`
	Image    []byte `json:"image"`
	Language string `json:"language,omitempty"`
}

// DetectedBubble is one OCR result.
type DetectedBubble struct {
	Region
	Type       string  `json:"type"`
	Text       string  `json:"text"`
	Language   string  `json:"language,omitempty"`
	Confidence float64 `json:"confidence"`
}

type bubbleResponse struct {
	Bubbles []DetectedBubble `json:"bubbles"`
}

// DetectBubbles locates and reads the bubbles in a panel.
func (c *Client) DetectBubbles(ctx context.Context, req BubbleRequest) ([]DetectedBubble, error) {
	var resp bubbleResponse
	if err := c.call(ctx, "bubble ocr", c.cfg.Endpoints.BubbleOCR, req, &resp); err != nil {
		return nil, err
	}
	return resp.Bubbles, nil
}

// KnownSpeaker is passed so the collaborator can reuse stable ids.
type KnownSpeaker struct {
	SpeakerID string `json:"speaker_id"`
	Label     string `json:"label,omitempty"`
}

// BubbleText is the minimal bubble view sent for attribution.
type BubbleText struct {
	BubbleID string `json:"bubble_id"`
	Text     string `json:"text"`
	Type     string `json:"type"`
}

// SpeakerRequest asks who speaks each bubble on a page.
type SpeakerRequest struct {
	PageID        string         `json:"page_id"`
	Image         []byte         `json:"image"`
	KnownSpeakers []KnownSpeaker `json:"known_speakers"`
	Bubbles       []BubbleText   `json:"bubbles"`
}

// Attribution links a bubble to a speaker id.
type Attribution struct {
	BubbleID  string `json:"bubble_id"`
	SpeakerID string `json:"speaker_id"`
}

// NewSpeaker describes a character first seen on this page.
type NewSpeaker struct {
	SpeakerID       string   `json:"speaker_id"`
	Label           string   `json:"label"`
	Gender          string   `json:"gender"`
	AgeGroup        string   `json:"age_group"`
	PersonalityTags []string `json:"personality_tags"`
}

// SpeakerResponse is the attribution result for one page.
type SpeakerResponse struct {
	Attributions []Attribution `json:"attributions"`
	NewSpeakers  []NewSpeaker  `json:"new_speakers"`
}

// AttributeSpeakers assigns speakers to the bubbles of a page.
func (c *Client) AttributeSpeakers(ctx context.Context, req SpeakerRequest) (SpeakerResponse, error) {
	var resp SpeakerResponse
	if err := c.call(ctx, "speaker attribution", c.cfg.Endpoints.SpeakerAttribution, req, &resp); err != nil {
		return SpeakerResponse{}, err
	}
	return resp, nil
}

// EmotionRequest asks for the delivery tone of one bubble.
type EmotionRequest struct {
	BubbleID string `json:"bubble_id"`
	Text     string `json:"text"`
	Speaker  string `json:"speaker"`
}

type emotionResponse struct {
	Emotion string `json:"emotion"`
}

// TagEmotion returns a lower-case emotion tag, "neutral" when none is given.
func (c *Client) TagEmotion(ctx context.Context, req EmotionRequest) (string, error) {
	var resp emotionResponse
	if err := c.call(ctx, "emotion tagging", c.cfg.Endpoints.EmotionTagging, req, &resp); err != nil {
		return "", err
	}
	emotion := strings.ToLower(strings.TrimSpace(resp.Emotion))
	if emotion == "" {
		emotion = "neutral"
	}
	return emotion, nil
}

// SpeechRequest asks for one spoken clip.
type SpeechRequest struct {
	Text         string `json:"input"`
	Voice        string `json:"voice"`
	Instructions string `json:"instructions,omitempty"`
	Format       string `json:"response_format"`
}

// Audio is a generated clip.
type Audio struct {
	Data   []byte `json:"audio"`
	Format string `json:"format"`
}

// Synthesize renders text to speech.
func (c *Client) Synthesize(ctx context.Context, req SpeechRequest) (Audio, error) {
	if req.Format == "" {
		req.Format = "mp3"
	}
	var resp Audio
	if err := c.call(ctx, "speech synthesis", c.cfg.Endpoints.SpeechSynthesis, req, &resp); err != nil {
		return Audio{}, err
	}
	if resp.Format == "" {
		resp.Format = req.Format
	}
	return resp, nil
}

// SoundDirectionRequest asks for an ambient prompt for one panel.
type SoundDirectionRequest struct {
	PanelID string   `json:"panel_id"`
	Image   []byte   `json:"image,omitempty"`
	Texts   []string `json:"texts"`
}

// SoundDirection is the director's answer. Silent panels get no audio.
type SoundDirection struct {
	Prompt string `json:"prompt"`
	Silent bool   `json:"silent"`
}

// DirectSound returns the ambient prompt for a panel.
func (c *Client) DirectSound(ctx context.Context, req SoundDirectionRequest) (SoundDirection, error) {
	var resp SoundDirection
	if err := c.call(ctx, "sound direction", c.cfg.Endpoints.SoundDirection, req, &resp); err != nil {
		return SoundDirection{}, err
	}
	resp.Prompt = strings.TrimSpace(resp.Prompt)
	return resp, nil
}

// SoundRequest asks for an ambient clip.
type SoundRequest struct {
	Prompt          string `json:"prompt"`
	DurationSeconds int    `json:"duration_seconds"`
}

// GenerateSound renders an ambient clip for prompt.
func (c *Client) GenerateSound(ctx context.Context, req SoundRequest) (Audio, error) {
	var resp Audio
	if err := c.call(ctx, "sound generation", c.cfg.Endpoints.SoundGeneration, req, &resp); err != nil {
		return Audio{}, err
	}
	if resp.Format == "" {
		resp.Format = "wav"
	}
	return resp, nil
}
