package manifest_test

import (
	"strings"
	"testing"

	"panelcast/internal/manifest"
)

func sampleComic() *manifest.Comic {
	comic := &manifest.Comic{ComicID: "c1", Fingerprint: "fp"}
	for n := 1; n <= 2; n++ {
		pageID := manifest.PageID(comic.ComicID, n)
		page := manifest.Page{PageID: pageID, PageNumber: n, ImagePath: pageID + ".png"}
		for p := 0; p < 2; p++ {
			panelID := manifest.PanelID(pageID, p)
			panel := manifest.Panel{
				PanelID:    panelID,
				OrderIndex: p,
				BBox:       manifest.BBox{X: p * 10, Y: 0, W: 10, H: 10},
				ImagePath:  panelID + ".png",
			}
			for b := 0; b < 2; b++ {
				panel.Bubbles = append(panel.Bubbles, manifest.Bubble{
					BubbleID:   manifest.BubbleID(panelID, b),
					OrderIndex: b,
					Type:       manifest.BubbleSpeech,
					BBox:       manifest.BBox{X: b, Y: b, W: 4, H: 2},
					Text:       "hi",
				})
			}
			page.Panels = append(page.Panels, panel)
		}
		comic.Pages = append(comic.Pages, page)
	}
	return comic
}

func TestIDFormats(t *testing.T) {
	page := manifest.PageID("abc", 3)
	if page != "abc_pg0003" {
		t.Fatalf("unexpected page id %q", page)
	}
	panel := manifest.PanelID(page, 2)
	if panel != "abc_pg0003_p002" {
		t.Fatalf("unexpected panel id %q", panel)
	}
	if got := manifest.BubbleID(panel, 11); got != "abc_pg0003_p002_b011" {
		t.Fatalf("unexpected bubble id %q", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	comic := sampleComic()
	comic.Speakers = []manifest.Speaker{{SpeakerID: "char_0", PersonalityTags: []string{"brave"}}}
	clone := comic.Clone()
	clone.Pages[0].Panels[0].Bubbles[0].Text = "changed"
	clone.Speakers[0].PersonalityTags[0] = "timid"
	if comic.Pages[0].Panels[0].Bubbles[0].Text != "hi" {
		t.Fatal("clone shares bubble storage")
	}
	if comic.Speakers[0].PersonalityTags[0] != "brave" {
		t.Fatal("clone shares speaker tags")
	}
}

func TestValidateDetectsOrderCorruption(t *testing.T) {
	comic := sampleComic()
	if err := comic.Validate(); err != nil {
		t.Fatalf("valid comic rejected: %v", err)
	}

	swapped := comic.Clone()
	panels := swapped.Pages[0].Panels
	panels[0], panels[1] = panels[1], panels[0]
	if err := swapped.Validate(); err == nil || !strings.Contains(err.Error(), "order") {
		t.Fatalf("expected order error, got %v", err)
	}

	pages := comic.Clone()
	pages.Pages[0], pages.Pages[1] = pages.Pages[1], pages.Pages[0]
	if err := pages.Validate(); err == nil {
		t.Fatal("expected page order error")
	}
}

func TestCheckFrozenAllowsAddingReferences(t *testing.T) {
	before := sampleComic()
	after := before.Clone()
	after.Pages[0].Panels[0].NormalizedImagePath = "norm.png"
	after.Pages[0].Panels[0].Bubbles[0].AudioPath = "voice.mp3"
	if err := manifest.CheckFrozen(before, after, manifest.FrozenBubbles); err != nil {
		t.Fatalf("expected additive change to pass: %v", err)
	}
}

func TestCheckFrozenRejectsBoundingBoxRewrite(t *testing.T) {
	before := sampleComic()
	after := before.Clone()
	after.Pages[1].Panels[1].Bubbles[0].BBox.W = 99
	err := manifest.CheckFrozen(before, after, manifest.FrozenBubbles)
	if err == nil || !strings.Contains(err.Error(), "bounding box") {
		t.Fatalf("expected bbox error, got %v", err)
	}
	// Bubbles are not frozen while the OCR stage produces them.
	if err := manifest.CheckFrozen(before, after, manifest.FrozenPanels); err != nil {
		t.Fatalf("unexpected error at panel level: %v", err)
	}
}

func TestCheckFrozenRejectsPanelReorder(t *testing.T) {
	before := sampleComic()
	after := before.Clone()
	after.Pages[0].Panels = after.Pages[0].Panels[:1]
	if err := manifest.CheckFrozen(before, after, manifest.FrozenPanels); err == nil {
		t.Fatal("expected panel count error")
	}
	if err := manifest.CheckFrozen(before, after, manifest.FrozenPages); err != nil {
		t.Fatalf("panels may change while pages alone are frozen: %v", err)
	}
}

func TestCounts(t *testing.T) {
	comic := sampleComic()
	comic.Pages[0].Panels[0].SFXAudioPath = "sfx.mp3"
	comic.Pages[0].Panels[0].Bubbles[1].AudioPath = "v.mp3"
	got := comic.Counts()
	if got.Pages != 2 || got.Panels != 4 || got.Bubbles != 8 || got.VoicedBubbles != 1 || got.PanelsWithSFX != 1 {
		t.Fatalf("unexpected counts %+v", got)
	}
}

func TestParseBubbleTypeDefaultsToSpeech(t *testing.T) {
	if manifest.ParseBubbleType("sfx") != manifest.BubbleSFX {
		t.Fatal("expected sfx")
	}
	if manifest.ParseBubbleType("shout") != manifest.BubbleSpeech {
		t.Fatal("expected speech fallback")
	}
}
