package testsupport

import (
	"context"

	"panelcast/internal/artifacts"
	"panelcast/internal/manifest"
	"panelcast/internal/stage"
)

// StubStages returns a complete stage set that pretends the source has the
// given number of pages, each holding one panel with one speech bubble.
// Stages only fill in references; no artifact files are written.
func StubStages(pages int) stage.Set {
	set := stage.Set{}
	for _, name := range stage.Pipeline() {
		set[name] = &stubStage{name: name, pages: pages}
	}
	return set
}

type stubStage struct {
	name  stage.Name
	pages int
}

func (s *stubStage) Name() stage.Name { return s.name }

func (s *stubStage) HealthCheck(context.Context) stage.Health { return stage.Healthy(s.name) }

func (s *stubStage) Prepare(_ context.Context, doc *manifest.Comic) error {
	switch s.name {
	case stage.PDFToImages:
		first, last, ok := doc.Selection.Clamp(s.pages)
		doc.Pages = []manifest.Page{}
		if !ok {
			return nil
		}
		for n := first; n <= last; n++ {
			doc.Pages = append(doc.Pages, manifest.Page{
				PageID:     manifest.PageID(doc.ComicID, n),
				PageNumber: n,
				Panels:     []manifest.Panel{},
			})
		}
	case stage.VoiceAssignment:
		for i := range doc.Speakers {
			doc.Speakers[i].VoiceID = "alloy"
		}
	}
	return nil
}

func (s *stubStage) Run(_ context.Context, item stage.Item) (stage.Item, error) {
	switch s.name {
	case stage.PDFToImages:
		item.Page.ImagePath = artifacts.PageImage(item.Page.PageNumber)
	case stage.PanelDetection:
		id := manifest.PanelID(item.Page.PageID, 1)
		item.Page.Panels = append(item.Page.Panels, manifest.Panel{
			PanelID:   id,
			BBox:      manifest.BBox{W: 100, H: 100},
			ImagePath: artifacts.PanelImage(id),
			Bubbles:   []manifest.Bubble{},
		})
	case stage.BubbleOCR:
		item.Panel.Bubbles = append(item.Panel.Bubbles, manifest.Bubble{
			BubbleID:      manifest.BubbleID(item.Panel.PanelID, 1),
			Type:          manifest.BubbleSpeech,
			BBox:          manifest.BBox{X: 5, Y: 5, W: 20, H: 10},
			Text:          "hello from " + item.Panel.PanelID,
			OCRConfidence: 0.99,
		})
	case stage.SpeakerAttribution:
		for p := range item.Page.Panels {
			for b := range item.Page.Panels[p].Bubbles {
				item.Page.Panels[p].Bubbles[b].SpeakerID = "char_0"
			}
		}
		item.Speakers = []manifest.Speaker{{SpeakerID: "char_0", Label: "Hero"}}
	case stage.VoiceAssignment:
		item.Bubble.Emotion = "neutral"
	case stage.TTSGeneration:
		item.Bubble.AudioPath = artifacts.VoiceClip(item.Bubble.BubbleID, "mp3")
	case stage.SFXGeneration:
	case stage.Normalization:
		item.Panel.NormalizedImagePath = artifacts.NormalizedImage(item.Panel.PanelID)
		item.Panel.NormalizationFillModel = "letterbox"
	}
	return item, nil
}
