package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"panelcast/internal/artifacts"
	"panelcast/internal/collab/remote"
	lang "panelcast/internal/language"
	"panelcast/internal/manifest"
	"panelcast/internal/stage"
)

// BubbleOCR locates and reads the text regions of each panel.
type BubbleOCR struct {
	ws       artifacts.Workspace
	remote   Collaborators
	language string
}

// NewBubbleOCR constructs the bubble_ocr stage.
func NewBubbleOCR(d Deps) *BubbleOCR {
	return &BubbleOCR{ws: d.Workspace, remote: d.Remote, language: d.SourceLanguage}
}

func (s *BubbleOCR) Name() stage.Name { return stage.BubbleOCR }

// Run reads the bubbles of one panel. Bubble boxes are relative to the panel.
func (s *BubbleOCR) Run(ctx context.Context, item stage.Item) (stage.Item, error) {
	panelImage, err := s.ws.Read(item.Doc.ComicID, item.Panel.ImagePath)
	if err != nil {
		return item, fmt.Errorf("read panel image: %w", err)
	}
	language := item.Doc.SourceLanguage
	if language == "" {
		language = s.language
	}
	detected, err := s.remote.DetectBubbles(ctx, remote.BubbleRequest{
		PanelID:  item.Panel.PanelID,
		Image:    panelImage,
		Language: language,
	})
	if err != nil {
		return item, err
	}
	sort.SliceStable(detected, func(i, j int) bool { return detected[i].Order < detected[j].Order })

	bubbles := make([]manifest.Bubble, 0, len(detected))
	for _, d := range detected {
		box := regionBox(d.Region)
		if box.Empty() {
			continue
		}
		bubbles = append(bubbles, manifest.Bubble{
			BubbleID:      manifest.BubbleID(item.Panel.PanelID, len(bubbles)+1),
			OrderIndex:    len(bubbles),
			Type:          manifest.ParseBubbleType(strings.ToLower(strings.TrimSpace(d.Type))),
			BBox:          box,
			Text:          strings.TrimSpace(d.Text),
			Language:      lang.Or(d.Language, language),
			OCRConfidence: clampUnit(d.Confidence),
		})
	}
	item.Panel.Bubbles = bubbles
	return item, nil
}

// HealthCheck pings the OCR collaborator.
func (s *BubbleOCR) HealthCheck(ctx context.Context) stage.Health {
	return remoteHealth(ctx, stage.BubbleOCR, s.remote, endpoint(s.remote, func(e remote.Endpoints) string { return e.BubbleOCR }))
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
