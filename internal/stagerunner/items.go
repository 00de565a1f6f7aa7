package stagerunner

import (
	"panelcast/internal/manifest"
	"panelcast/internal/stage"
)

// Enumerate lists the sub-items of doc for a granularity in reading order.
// Each item carries copies, so stages cannot reach into the document.
func Enumerate(doc *manifest.Comic, granularity stage.Granularity) []stage.Item {
	var items []stage.Item
	for p := range doc.Pages {
		page := doc.Pages[p]
		if granularity == stage.PerPage {
			items = append(items, stage.Item{
				Address: stage.Address{Page: p, Panel: -1, Bubble: -1},
				Page:    page.Clone(),
				Doc:     doc,
			})
			continue
		}
		pageMeta := page
		pageMeta.Panels = nil
		for q := range page.Panels {
			panel := page.Panels[q]
			if granularity == stage.PerPanel {
				items = append(items, stage.Item{
					Address: stage.Address{Page: p, Panel: q, Bubble: -1},
					Page:    pageMeta,
					Panel:   panel.Clone(),
					Doc:     doc,
				})
				continue
			}
			panelMeta := panel
			panelMeta.Bubbles = nil
			for b := range panel.Bubbles {
				items = append(items, stage.Item{
					Address: stage.Address{Page: p, Panel: q, Bubble: b},
					Page:    pageMeta,
					Panel:   panelMeta,
					Bubble:  panel.Bubbles[b],
					Doc:     doc,
				})
			}
		}
	}
	return items
}

// fold writes an item's element back at its address and merges discovered
// speakers. Callers fold in reading order so speaker order is deterministic.
func fold(doc *manifest.Comic, granularity stage.Granularity, item stage.Item) {
	a := item.Address
	switch granularity {
	case stage.PerPage:
		doc.Pages[a.Page] = item.Page
	case stage.PerPanel:
		doc.Pages[a.Page].Panels[a.Panel] = item.Panel
	case stage.PerBubble:
		doc.Pages[a.Page].Panels[a.Panel].Bubbles[a.Bubble] = item.Bubble
	}
	for _, sp := range item.Speakers {
		if _, exists := doc.Speaker(sp.SpeakerID); !exists {
			doc.Speakers = append(doc.Speakers, sp)
		}
	}
}
