package manifest

// Clone returns a deep copy. Stages work on clones so a failed stage never
// leaves a half-applied document behind.
func (c *Comic) Clone() *Comic {
	if c == nil {
		return nil
	}
	out := *c
	out.Speakers = cloneSpeakers(c.Speakers)
	if c.Pages != nil {
		out.Pages = make([]Page, len(c.Pages))
		for i := range c.Pages {
			out.Pages[i] = c.Pages[i].Clone()
		}
	}
	return &out
}

// Clone returns a deep copy of the page.
func (p Page) Clone() Page {
	out := p
	if p.Panels != nil {
		out.Panels = make([]Panel, len(p.Panels))
		for i := range p.Panels {
			out.Panels[i] = p.Panels[i].Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the panel.
func (p Panel) Clone() Panel {
	out := p
	if p.Bubbles != nil {
		out.Bubbles = append([]Bubble(nil), p.Bubbles...)
	}
	return out
}

func cloneSpeakers(in []Speaker) []Speaker {
	if in == nil {
		return nil
	}
	out := make([]Speaker, len(in))
	for i, s := range in {
		out[i] = s
		out[i].PersonalityTags = append([]string(nil), s.PersonalityTags...)
	}
	return out
}
