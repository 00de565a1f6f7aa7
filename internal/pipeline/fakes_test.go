package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"

	"panelcast/internal/collab/remote"
)

func pagePNG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

type fakeRenderer struct {
	pages    int
	image    []byte
	checkErr error

	mu       sync.Mutex
	rendered []int
}

func (f *fakeRenderer) Check() error { return f.checkErr }

func (f *fakeRenderer) PageCount(context.Context, string) (int, error) { return f.pages, nil }

func (f *fakeRenderer) RenderPage(_ context.Context, _ string, page int) ([]byte, error) {
	f.mu.Lock()
	f.rendered = append(f.rendered, page)
	f.mu.Unlock()
	return f.image, nil
}

// fakeRemote answers every collaborator call deterministically: two panels per
// page (returned in reverse order), and three bubbles per panel.
type fakeRemote struct {
	pingErr   error
	silentAll bool
	noPrompt  bool
	ttsErr    error
	// newLabels, when set, makes call n declare a new "char_001" labelled
	// newLabels[n], the way a collaborator that numbers per page would.
	newLabels []string

	mu        sync.Mutex
	speechFor []string
	known     [][]remote.KnownSpeaker
}

func (f *fakeRemote) Ping(context.Context) error { return f.pingErr }

func (f *fakeRemote) Endpoints() remote.Endpoints {
	return remote.Endpoints{
		PanelDetection: "/panels", BubbleOCR: "/bubbles", SpeakerAttribution: "/speakers",
		EmotionTagging: "/emotions", SpeechSynthesis: "/speech", SoundDirection: "/sfx-prompts",
		SoundGeneration: "/sfx",
	}
}

func (f *fakeRemote) DetectPanels(context.Context, remote.PanelRequest) ([]remote.Region, error) {
	return []remote.Region{
		{Order: 2, X: 0, Y: 50, W: 80, H: 40},
		{Order: 1, X: 0, Y: 0, W: 80, H: 40},
		{Order: 3, X: 0, Y: 0, W: 0, H: 0},
	}, nil
}

func (f *fakeRemote) DetectBubbles(_ context.Context, req remote.BubbleRequest) ([]remote.DetectedBubble, error) {
	return []remote.DetectedBubble{
		{Region: remote.Region{Order: 3, X: 1, Y: 30, W: 10, H: 5}, Type: "narration", Text: "Meanwhile...", Confidence: 1.4},
		{Region: remote.Region{Order: 1, X: 1, Y: 1, W: 20, H: 10}, Type: "speech", Text: " Hello from " + req.PanelID + " ", Confidence: 0.9},
		{Region: remote.Region{Order: 2, X: 30, Y: 1, W: 20, H: 10}, Type: "SFX", Text: "BAM"},
	}, nil
}

func (f *fakeRemote) AttributeSpeakers(_ context.Context, req remote.SpeakerRequest) (remote.SpeakerResponse, error) {
	f.mu.Lock()
	call := len(f.known)
	f.known = append(f.known, req.KnownSpeakers)
	f.mu.Unlock()

	id, ns := "char_0", remote.NewSpeaker{SpeakerID: "char_0", Label: "Captain", Gender: "Male", AgeGroup: "adult"}
	if call < len(f.newLabels) {
		id, ns = "char_001", remote.NewSpeaker{SpeakerID: "char_001", Label: f.newLabels[call]}
	}
	var resp remote.SpeakerResponse
	for _, b := range req.Bubbles {
		if b.Type == "speech" {
			resp.Attributions = append(resp.Attributions, remote.Attribution{BubbleID: b.BubbleID, SpeakerID: id})
		}
	}
	resp.NewSpeakers = []remote.NewSpeaker{ns}
	return resp, nil
}

func (f *fakeRemote) TagEmotion(_ context.Context, req remote.EmotionRequest) (string, error) {
	if req.Speaker == "Captain" {
		return "excited", nil
	}
	return "neutral", nil
}

func (f *fakeRemote) Synthesize(_ context.Context, req remote.SpeechRequest) (remote.Audio, error) {
	if f.ttsErr != nil {
		return remote.Audio{}, f.ttsErr
	}
	f.mu.Lock()
	f.speechFor = append(f.speechFor, req.Voice+":"+req.Text)
	f.mu.Unlock()
	return remote.Audio{Data: []byte("ID3" + req.Voice), Format: "mp3"}, nil
}

func (f *fakeRemote) DirectSound(_ context.Context, req remote.SoundDirectionRequest) (remote.SoundDirection, error) {
	switch {
	case f.silentAll:
		return remote.SoundDirection{Silent: true}, nil
	case f.noPrompt:
		return remote.SoundDirection{}, nil
	default:
		return remote.SoundDirection{Prompt: "wind over " + strings.ToLower(req.PanelID)}, nil
	}
}

func (f *fakeRemote) GenerateSound(_ context.Context, req remote.SoundRequest) (remote.Audio, error) {
	if req.Prompt == "" {
		return remote.Audio{}, errors.New("empty prompt")
	}
	return remote.Audio{Data: []byte("RIFF"), Format: "wav"}, nil
}
