package manifest

import "fmt"

// Level names the depth of the tree whose structure is frozen.
type Level int

const (
	// FrozenNone allows any change.
	FrozenNone Level = iota
	// FrozenPages pins page ids, numbers and images.
	FrozenPages
	// FrozenPanels additionally pins panel ids, order, boxes and crops.
	FrozenPanels
	// FrozenBubbles additionally pins bubble ids, order and boxes.
	FrozenBubbles
)

// Validate checks reading-order invariants: page numbers strictly increase,
// panel and bubble order indexes match their position, and ids are unique.
func (c *Comic) Validate() error {
	if c == nil {
		return fmt.Errorf("manifest: nil document")
	}
	seen := make(map[string]struct{})
	claim := func(id string) error {
		if id == "" {
			return fmt.Errorf("manifest: empty id")
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("manifest: duplicate id %q", id)
		}
		seen[id] = struct{}{}
		return nil
	}
	last := 0
	for _, page := range c.Pages {
		if page.PageNumber <= last {
			return fmt.Errorf("manifest: page %d out of order after %d", page.PageNumber, last)
		}
		last = page.PageNumber
		if err := claim(page.PageID); err != nil {
			return err
		}
		for i, panel := range page.Panels {
			if panel.OrderIndex != i {
				return fmt.Errorf("manifest: panel %s has order %d at position %d", panel.PanelID, panel.OrderIndex, i)
			}
			if err := claim(panel.PanelID); err != nil {
				return err
			}
			for j, bubble := range panel.Bubbles {
				if bubble.OrderIndex != j {
					return fmt.Errorf("manifest: bubble %s has order %d at position %d", bubble.BubbleID, bubble.OrderIndex, j)
				}
				if err := claim(bubble.BubbleID); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// CheckFrozen verifies that after preserves every structural field of before
// down to the given level. Artifact references may be added freely; a
// bubble box or a panel crop may never be rewritten once frozen.
func CheckFrozen(before, after *Comic, frozen Level) error {
	if frozen == FrozenNone {
		return nil
	}
	if before == nil || after == nil {
		return fmt.Errorf("manifest: missing snapshot")
	}
	if len(before.Pages) != len(after.Pages) {
		return fmt.Errorf("manifest: page count changed from %d to %d", len(before.Pages), len(after.Pages))
	}
	for i := range before.Pages {
		bp, ap := &before.Pages[i], &after.Pages[i]
		if bp.PageID != ap.PageID || bp.PageNumber != ap.PageNumber || bp.ImagePath != ap.ImagePath {
			return fmt.Errorf("manifest: page %s rewritten", bp.PageID)
		}
		if frozen < FrozenPanels {
			continue
		}
		if len(bp.Panels) != len(ap.Panels) {
			return fmt.Errorf("manifest: page %s panel count changed from %d to %d", bp.PageID, len(bp.Panels), len(ap.Panels))
		}
		for j := range bp.Panels {
			if err := checkPanel(&bp.Panels[j], &ap.Panels[j], frozen); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkPanel(before, after *Panel, frozen Level) error {
	if before.PanelID != after.PanelID || before.OrderIndex != after.OrderIndex {
		return fmt.Errorf("manifest: panel order changed at %s", before.PanelID)
	}
	if before.BBox != after.BBox || before.ImagePath != after.ImagePath {
		return fmt.Errorf("manifest: panel %s geometry rewritten", before.PanelID)
	}
	if frozen < FrozenBubbles {
		return nil
	}
	if len(before.Bubbles) != len(after.Bubbles) {
		return fmt.Errorf("manifest: panel %s bubble count changed from %d to %d", before.PanelID, len(before.Bubbles), len(after.Bubbles))
	}
	for k := range before.Bubbles {
		b, a := before.Bubbles[k], after.Bubbles[k]
		if b.BubbleID != a.BubbleID || b.OrderIndex != a.OrderIndex {
			return fmt.Errorf("manifest: bubble order changed at %s", b.BubbleID)
		}
		if b.BBox != a.BBox {
			return fmt.Errorf("manifest: bubble %s bounding box rewritten", b.BubbleID)
		}
	}
	return nil
}
