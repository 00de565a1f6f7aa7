package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"panelcast/internal/artifacts"
	"panelcast/internal/logging"
	"panelcast/internal/manifest"
	"panelcast/internal/services"
	"panelcast/internal/stage"
)

// RenderPages builds the page list from the selected range and rasterizes
// each page.
type RenderPages struct {
	ws       artifacts.Workspace
	renderer PageRenderer
	logger   *slog.Logger
}

// NewRenderPages constructs the pdf_to_images stage.
func NewRenderPages(d Deps) *RenderPages {
	return &RenderPages{
		ws:       d.Workspace,
		renderer: d.Renderer,
		logger:   logging.NewComponentLogger(d.Logger, "render"),
	}
}

func (s *RenderPages) Name() stage.Name { return stage.PDFToImages }

// Prepare replaces the page list with shells for the selected pages.
func (s *RenderPages) Prepare(ctx context.Context, doc *manifest.Comic) error {
	if s.renderer == nil {
		return services.Wrap(services.ErrConfiguration, string(stage.PDFToImages), "prepare", "renderer unavailable", nil)
	}
	total, err := s.renderer.PageCount(ctx, s.ws.SourcePath(doc.ComicID))
	if err != nil {
		return err
	}
	first, last, ok := doc.Selection.Clamp(total)
	if !ok {
		return services.Wrap(services.ErrInput, string(stage.PDFToImages), "select pages",
			fmt.Sprintf("range %s selects no pages of %d", doc.Selection, total), nil)
	}
	pages := make([]manifest.Page, 0, last-first+1)
	for n := first; n <= last; n++ {
		pages = append(pages, manifest.Page{
			PageID:     manifest.PageID(doc.ComicID, n),
			PageNumber: n,
			Panels:     []manifest.Panel{},
		})
	}
	doc.Pages = pages
	logging.WithContext(ctx, s.logger).Info("pages selected",
		logging.String(logging.FieldEventType, "pages_selected"),
		logging.Int("source_pages", total),
		logging.Int("first", first),
		logging.Int("last", last),
	)
	return nil
}

// Run renders one page.
func (s *RenderPages) Run(ctx context.Context, item stage.Item) (stage.Item, error) {
	jobID := item.Doc.ComicID
	data, err := s.renderer.RenderPage(ctx, s.ws.SourcePath(jobID), item.Page.PageNumber)
	if err != nil {
		return item, err
	}
	rel := artifacts.PageImage(item.Page.PageNumber)
	if err := s.ws.Write(jobID, rel, data); err != nil {
		return item, fmt.Errorf("write page %d: %w", item.Page.PageNumber, err)
	}
	item.Page.ImagePath = rel
	return item, nil
}

// HealthCheck verifies the poppler binaries are installed.
func (s *RenderPages) HealthCheck(context.Context) stage.Health {
	if s.renderer == nil {
		return stage.Unhealthy(stage.PDFToImages, "renderer not configured")
	}
	if err := s.renderer.Check(); err != nil {
		return stage.Unhealthy(stage.PDFToImages, err.Error())
	}
	return stage.Healthy(stage.PDFToImages)
}
