package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"panelcast/internal/artifacts"
	"panelcast/internal/collab/imagery"
	"panelcast/internal/collab/remote"
	"panelcast/internal/logging"
	"panelcast/internal/manifest"
	"panelcast/internal/stage"
)

// PanelDetection finds panels on a page, orders them and crops each one.
type PanelDetection struct {
	ws     artifacts.Workspace
	remote Collaborators
	logger *slog.Logger
}

// NewPanelDetection constructs the panel_detection stage.
func NewPanelDetection(d Deps) *PanelDetection {
	return &PanelDetection{ws: d.Workspace, remote: d.Remote, logger: logging.NewComponentLogger(d.Logger, "panels")}
}

func (s *PanelDetection) Name() stage.Name { return stage.PanelDetection }

// Run detects the panels of one page.
func (s *PanelDetection) Run(ctx context.Context, item stage.Item) (stage.Item, error) {
	jobID := item.Doc.ComicID
	pageImage, err := s.ws.Read(jobID, item.Page.ImagePath)
	if err != nil {
		return item, fmt.Errorf("read page image: %w", err)
	}
	regions, err := s.remote.DetectPanels(ctx, remote.PanelRequest{PageID: item.Page.PageID, Image: pageImage})
	if err != nil {
		return item, err
	}
	regions = orderRegions(regions)

	panels := make([]manifest.Panel, 0, len(regions))
	for _, region := range regions {
		box := regionBox(region)
		if box.Empty() {
			logging.WithContext(ctx, s.logger).Debug("skipping empty panel region",
				logging.String("page_id", item.Page.PageID),
				logging.Int("order", region.Order),
			)
			continue
		}
		panelID := manifest.PanelID(item.Page.PageID, len(panels)+1)
		crop, err := imagery.Crop(pageImage, box)
		if err != nil {
			return item, fmt.Errorf("crop %s: %w", panelID, err)
		}
		rel := artifacts.PanelImage(panelID)
		if err := s.ws.Write(jobID, rel, crop); err != nil {
			return item, fmt.Errorf("write %s: %w", panelID, err)
		}
		panels = append(panels, manifest.Panel{
			PanelID:    panelID,
			OrderIndex: len(panels),
			BBox:       box,
			ImagePath:  rel,
			Bubbles:    []manifest.Bubble{},
		})
	}
	item.Page.Panels = panels
	return item, nil
}

// HealthCheck pings the panel detector.
func (s *PanelDetection) HealthCheck(ctx context.Context) stage.Health {
	return remoteHealth(ctx, stage.PanelDetection, s.remote, endpoint(s.remote, func(e remote.Endpoints) string { return e.PanelDetection }))
}

// orderRegions sorts by the reported reading order, breaking ties top to
// bottom then left to right.
func orderRegions(regions []remote.Region) []remote.Region {
	out := append([]remote.Region(nil), regions...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	return out
}

func regionBox(r remote.Region) manifest.BBox {
	return manifest.BBox{X: r.X, Y: r.Y, W: r.W, H: r.H}
}

func endpoint(client Collaborators, pick func(remote.Endpoints) string) string {
	if client == nil {
		return ""
	}
	return pick(client.Endpoints())
}
