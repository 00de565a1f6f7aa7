package pipeline_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"panelcast/internal/artifacts"
	"panelcast/internal/collab/imagery"
	"panelcast/internal/fingerprint"
	"panelcast/internal/manifest"
	"panelcast/internal/pipeline"
	"panelcast/internal/services"
	"panelcast/internal/stage"
	"panelcast/internal/stagerunner"
)

type harness struct {
	ws       artifacts.Workspace
	renderer *fakeRenderer
	remote   *fakeRemote
	set      stage.Set
	runner   *stagerunner.Runner
}

func newHarness(t *testing.T, pages int) *harness {
	t.Helper()
	h := &harness{
		ws:       artifacts.New(t.TempDir()),
		renderer: &fakeRenderer{pages: pages, image: pagePNG(t, 100, 100)},
		remote:   &fakeRemote{},
		runner:   &stagerunner.Runner{Concurrency: 4, ItemTimeout: 5 * time.Second},
	}
	h.set = pipeline.NewStageSet(pipeline.Deps{
		Workspace:      h.ws,
		Renderer:       h.renderer,
		Remote:         h.remote,
		PanelWidth:     64,
		PanelHeight:    36,
		SourceLanguage: "en",
	})
	return h
}

func (h *harness) run(t *testing.T, doc *manifest.Comic, plan []stage.Name) (*manifest.Comic, error) {
	t.Helper()
	for _, name := range plan {
		stg, ok := h.set.Lookup(name)
		if !ok {
			t.Fatalf("stage %s not registered", name)
		}
		next, err := h.runner.Run(context.Background(), stg, doc)
		if err != nil {
			return doc, err
		}
		doc = next
	}
	return doc, nil
}

func newDoc(selection fingerprint.PageRange, normalize bool) *manifest.Comic {
	return &manifest.Comic{
		ComicID:              "job1",
		Fingerprint:          strings.Repeat("a", 64),
		Speakers:             []manifest.Speaker{},
		SourceLanguage:       "en",
		NormalizationEnabled: normalize,
		Selection:            selection,
	}
}

func TestFullPipelineProducesPlayableManifest(t *testing.T) {
	h := newHarness(t, 3)
	doc, err := h.run(t, newDoc(fingerprint.PageRange{}, true), stage.Plan(true))
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}

	counts := doc.Counts()
	if counts.Pages != 3 || counts.Panels != 6 || counts.Bubbles != 18 {
		t.Fatalf("unexpected counts %+v", counts)
	}
	// speech and narration are voiced, sfx text is not
	if counts.VoicedBubbles != 12 {
		t.Fatalf("expected 12 voiced bubbles, got %d", counts.VoicedBubbles)
	}
	if counts.PanelsWithSFX != 6 || counts.NormalizedPanels != 6 {
		t.Fatalf("unexpected sfx/normalized counts %+v", counts)
	}

	first := doc.Pages[0]
	if first.PageID != "job1_pg0001" || first.ImagePath != "pages/page_0001.png" {
		t.Fatalf("unexpected first page %+v", first)
	}
	panel := first.Panels[0]
	if panel.PanelID != "job1_pg0001_p001" || panel.BBox.Y != 0 {
		t.Fatalf("expected reading-order first panel at the top, got %+v", panel)
	}
	if first.Panels[1].BBox.Y != 50 {
		t.Fatalf("expected second panel below the first, got %+v", first.Panels[1].BBox)
	}

	speech, sfx, narration := panel.Bubbles[0], panel.Bubbles[1], panel.Bubbles[2]
	if speech.Type != manifest.BubbleSpeech || speech.Text != "Hello from job1_pg0001_p001" {
		t.Fatalf("unexpected speech bubble %+v", speech)
	}
	if speech.SpeakerID != "char_0" || speech.Emotion != "excited" || speech.AudioPath == "" {
		t.Fatalf("speech bubble not attributed/voiced: %+v", speech)
	}
	if sfx.Type != manifest.BubbleSFX || sfx.AudioPath != "" || sfx.Emotion != "" {
		t.Fatalf("sfx bubble should not be voiced: %+v", sfx)
	}
	if narration.SpeakerID != manifest.NarratorSpeakerID || narration.OCRConfidence != 1 {
		t.Fatalf("unexpected narration bubble %+v", narration)
	}

	captain, ok := doc.Speaker("char_0")
	if !ok || captain.VoiceID != "echo" || captain.Gender != "male" {
		t.Fatalf("unexpected captain speaker %+v", captain)
	}
	narrator, ok := doc.Speaker(manifest.NarratorSpeakerID)
	if !ok || narrator.VoiceID != "sage" || narrator.Label != "Narrator" {
		t.Fatalf("unexpected narrator speaker %+v", narrator)
	}
	if len(doc.Speakers) != 2 {
		t.Fatalf("expected speakers deduplicated across pages, got %+v", doc.Speakers)
	}

	if panel.SFXPrompt != "wind over job1_pg0001_p001" || panel.SFXAudioPath != "audio/sfx/job1_pg0001_p001.wav" {
		t.Fatalf("unexpected sfx fields %+v", panel)
	}
	if panel.NormalizationFillModel != imagery.FillModelLetterbox {
		t.Fatalf("unexpected fill model %q", panel.NormalizationFillModel)
	}
	norm, err := h.ws.Read("job1", panel.NormalizedImagePath)
	if err != nil {
		t.Fatalf("read normalized: %v", err)
	}
	if w, hgt, err := imagery.Size(norm); err != nil || w != 64 || hgt != 36 {
		t.Fatalf("unexpected normalized size %dx%d err=%v", w, hgt, err)
	}
	if _, err := os.Stat(h.ws.Dir("job1") + "/" + speech.AudioPath); err != nil {
		t.Fatalf("expected voice clip on disk: %v", err)
	}
}

func TestSpeakerAttributionCarriesSpeakersAcrossPages(t *testing.T) {
	h := newHarness(t, 3)
	plan := []stage.Name{stage.PDFToImages, stage.PanelDetection, stage.BubbleOCR, stage.SpeakerAttribution}
	out, err := h.run(t, newDoc(fingerprint.PageRange{}, false), plan)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if len(h.remote.known) != 3 {
		t.Fatalf("expected one attribution call per page, got %d", len(h.remote.known))
	}
	if len(h.remote.known[0]) != 0 {
		t.Fatalf("first page should start with no known speakers, got %+v", h.remote.known[0])
	}
	for page, known := range h.remote.known[1:] {
		ids := make([]string, 0, len(known))
		for _, k := range known {
			ids = append(ids, k.SpeakerID)
		}
		if strings.Join(ids, ",") != "char_0,"+manifest.NarratorSpeakerID {
			t.Fatalf("page %d got known speakers %v", page+2, ids)
		}
	}
	if len(out.Speakers) != 2 || out.Speakers[0].Label != "Captain" {
		t.Fatalf("expected the captain once plus the narrator, got %+v", out.Speakers)
	}
}

func TestSpeakerAttributionKeepsDistinctCharactersApart(t *testing.T) {
	h := newHarness(t, 2)
	h.remote.newLabels = []string{"Alice", "Bob"}
	plan := []stage.Name{stage.PDFToImages, stage.PanelDetection, stage.BubbleOCR, stage.SpeakerAttribution}
	out, err := h.run(t, newDoc(fingerprint.PageRange{}, false), plan)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}

	alice, ok := out.Speaker("char_001")
	if !ok || alice.Label != "Alice" {
		t.Fatalf("expected Alice under char_001, got %+v", alice)
	}
	bob, ok := out.Speaker("char_001_2")
	if !ok || bob.Label != "Bob" {
		t.Fatalf("expected Bob under a fresh id, got %+v", out.Speakers)
	}
	if got := out.Pages[0].Panels[0].Bubbles[0].SpeakerID; got != "char_001" {
		t.Fatalf("page 1 speech attributed to %q", got)
	}
	if got := out.Pages[1].Panels[0].Bubbles[0].SpeakerID; got != "char_001_2" {
		t.Fatalf("page 2 speech attributed to %q", got)
	}
	if len(out.Speakers) != 3 {
		t.Fatalf("expected Alice, narrator and Bob, got %+v", out.Speakers)
	}
}

func TestRenderClampsSelection(t *testing.T) {
	h := newHarness(t, 5)
	doc, err := h.run(t, newDoc(fingerprint.PageRange{Start: 4, End: 9}, false), []stage.Name{stage.PDFToImages})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(doc.Pages) != 2 || doc.Pages[0].PageNumber != 4 || doc.Pages[1].PageNumber != 5 {
		t.Fatalf("expected pages 4-5, got %+v", doc.Pages)
	}
	if doc.Pages[0].PageID != "job1_pg0004" {
		t.Fatalf("unexpected page id %q", doc.Pages[0].PageID)
	}
}

func TestRenderRejectsSelectionPastEnd(t *testing.T) {
	h := newHarness(t, 2)
	_, err := h.run(t, newDoc(fingerprint.PageRange{Start: 3}, false), []stage.Name{stage.PDFToImages})
	if !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error, got %v", err)
	}
}

func TestSFXDefaultPromptAndSilence(t *testing.T) {
	h := newHarness(t, 1)
	h.remote.noPrompt = true
	plan := []stage.Name{stage.PDFToImages, stage.PanelDetection, stage.BubbleOCR, stage.SFXGeneration}
	doc, err := h.run(t, newDoc(fingerprint.PageRange{}, false), plan)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if got := doc.Pages[0].Panels[0].SFXPrompt; got != pipeline.DefaultSFXPrompt {
		t.Fatalf("expected default prompt, got %q", got)
	}

	h2 := newHarness(t, 1)
	h2.remote.silentAll = true
	doc, err = h2.run(t, newDoc(fingerprint.PageRange{}, false), plan)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	panel := doc.Pages[0].Panels[0]
	if panel.SFXPrompt != "" || panel.SFXAudioPath != "" {
		t.Fatalf("silent panel should have no sfx, got %+v", panel)
	}
}

func TestTTSFailureFailsStage(t *testing.T) {
	h := newHarness(t, 1)
	h.remote.ttsErr = errors.New("voice backend down")
	_, err := h.run(t, newDoc(fingerprint.PageRange{}, false), stage.Plan(false))
	if !errors.Is(err, services.ErrStageFailure) {
		t.Fatalf("expected stage failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "tts_generation") {
		t.Fatalf("expected failing stage named in %q", err.Error())
	}
}

func TestVoiceFor(t *testing.T) {
	cases := []struct {
		speaker manifest.Speaker
		want    string
	}{
		{manifest.Speaker{SpeakerID: "a", Gender: "male", AgeGroup: "teen"}, "verse"},
		{manifest.Speaker{SpeakerID: "b", Gender: "male", AgeGroup: "elder"}, "onyx"},
		{manifest.Speaker{SpeakerID: "c", Gender: "Female", AgeGroup: "Adult"}, "nova"},
		{manifest.Speaker{SpeakerID: "d", Gender: "female", AgeGroup: "child"}, "coral"},
		{manifest.Speaker{SpeakerID: "e", Gender: "female", AgeGroup: "elder"}, "shimmer"},
		{manifest.Speaker{SpeakerID: "f"}, "alloy"},
		{manifest.Speaker{SpeakerID: "g", Gender: "robot", AgeGroup: "ancient"}, "alloy"},
		{manifest.Speaker{SpeakerID: manifest.NarratorSpeakerID, Gender: "male"}, "sage"},
	}
	for _, tc := range cases {
		if got := pipeline.VoiceFor(tc.speaker); got != tc.want {
			t.Fatalf("VoiceFor(%+v) = %q, want %q", tc.speaker, got, tc.want)
		}
	}
}

func TestHealthChecks(t *testing.T) {
	h := newHarness(t, 1)
	for _, health := range h.set.Health(context.Background()) {
		if !health.Ready {
			t.Fatalf("expected %s ready, got %+v", health.Name, health)
		}
	}

	h.remote.pingErr = errors.New("connection refused")
	h.renderer.checkErr = errors.New("binary \"pdftoppm\" not found")
	ready := map[string]bool{}
	for _, health := range h.set.Health(context.Background()) {
		ready[health.Name] = health.Ready
	}
	if ready[string(stage.PDFToImages)] || ready[string(stage.TTSGeneration)] {
		t.Fatalf("expected failing collaborators to be unhealthy: %+v", ready)
	}
	if !ready[string(stage.Normalization)] {
		t.Fatal("normalization runs locally and should stay healthy")
	}
}
