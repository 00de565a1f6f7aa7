package pipeline

import (
	"context"
	"fmt"

	"panelcast/internal/artifacts"
	"panelcast/internal/collab/imagery"
	"panelcast/internal/stage"
)

// Normalization letterboxes each panel to the playback resolution. Panel and
// bubble boxes keep referring to the original crop.
type Normalization struct {
	ws     artifacts.Workspace
	width  int
	height int
}

// NewNormalization constructs the normalization stage.
func NewNormalization(d Deps) *Normalization {
	return &Normalization{ws: d.Workspace, width: d.PanelWidth, height: d.PanelHeight}
}

func (s *Normalization) Name() stage.Name { return stage.Normalization }

// Run normalizes one panel image.
func (s *Normalization) Run(_ context.Context, item stage.Item) (stage.Item, error) {
	jobID := item.Doc.ComicID
	data, err := s.ws.Read(jobID, item.Panel.ImagePath)
	if err != nil {
		return item, fmt.Errorf("read panel image: %w", err)
	}
	out, err := imagery.Letterbox(data, s.width, s.height)
	if err != nil {
		return item, err
	}
	rel := artifacts.NormalizedImage(item.Panel.PanelID)
	if err := s.ws.Write(jobID, rel, out); err != nil {
		return item, fmt.Errorf("write %s: %w", rel, err)
	}
	item.Panel.NormalizedImagePath = rel
	item.Panel.NormalizationFillModel = imagery.FillModelLetterbox
	return item, nil
}

// HealthCheck validates the target geometry; normalization runs locally.
func (s *Normalization) HealthCheck(context.Context) stage.Health {
	if s.width <= 0 || s.height <= 0 {
		return stage.Unhealthy(stage.Normalization, fmt.Sprintf("invalid target %dx%d", s.width, s.height))
	}
	return stage.Healthy(stage.Normalization)
}
