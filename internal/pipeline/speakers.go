package pipeline

import (
	"context"
	"fmt"
	"strings"

	"panelcast/internal/artifacts"
	"panelcast/internal/collab/remote"
	"panelcast/internal/manifest"
	"panelcast/internal/stage"
)

const narratorLabel = "Narrator"

// SpeakerAttribution decides who speaks each bubble on a page. Pages run in
// reading order and the characters found on earlier pages are passed along,
// so a character keeps one id across the whole comic.
type SpeakerAttribution struct {
	ws     artifacts.Workspace
	remote Collaborators
}

// NewSpeakerAttribution constructs the speaker_attribution stage.
func NewSpeakerAttribution(d Deps) *SpeakerAttribution {
	return &SpeakerAttribution{ws: d.Workspace, remote: d.Remote}
}

func (s *SpeakerAttribution) Name() stage.Name { return stage.SpeakerAttribution }

// Sequential makes the runner attribute pages one after another.
func (*SpeakerAttribution) Sequential() {}

// Run attributes the bubbles of one page.
func (s *SpeakerAttribution) Run(ctx context.Context, item stage.Item) (stage.Item, error) {
	var texts []remote.BubbleText
	for _, panel := range item.Page.Panels {
		for _, b := range panel.Bubbles {
			texts = append(texts, remote.BubbleText{BubbleID: b.BubbleID, Text: b.Text, Type: string(b.Type)})
		}
	}
	if len(texts) == 0 {
		return item, nil
	}

	pageImage, err := s.ws.Read(item.Doc.ComicID, item.Page.ImagePath)
	if err != nil {
		return item, fmt.Errorf("read page image: %w", err)
	}
	known := make([]remote.KnownSpeaker, 0, len(item.Doc.Speakers))
	for _, sp := range item.Doc.Speakers {
		known = append(known, remote.KnownSpeaker{SpeakerID: sp.SpeakerID, Label: sp.Label})
	}
	resp, err := s.remote.AttributeSpeakers(ctx, remote.SpeakerRequest{
		PageID:        item.Page.PageID,
		Image:         pageImage,
		KnownSpeakers: known,
		Bubbles:       texts,
	})
	if err != nil {
		return item, err
	}

	discovered := make(map[string]remote.NewSpeaker, len(resp.NewSpeakers))
	renamed := make(map[string]string)
	for _, ns := range resp.NewSpeakers {
		id := strings.TrimSpace(ns.SpeakerID)
		if id == "" {
			continue
		}
		if prior, exists := item.Doc.Speaker(id); exists && !sameCharacter(prior, ns) {
			fresh := freshSpeakerID(item.Doc, id, discovered)
			renamed[id] = fresh
			id = fresh
		}
		discovered[id] = ns
	}
	attributed := make(map[string]string, len(resp.Attributions))
	for _, a := range resp.Attributions {
		id := strings.TrimSpace(a.SpeakerID)
		if id == "" {
			continue
		}
		if fresh, ok := renamed[id]; ok {
			id = fresh
		}
		attributed[a.BubbleID] = id
	}

	seen := make(map[string]bool)
	addSpeaker := func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		if _, exists := item.Doc.Speaker(id); exists {
			return
		}
		item.Speakers = append(item.Speakers, newSpeaker(id, discovered[id]))
	}

	for p := range item.Page.Panels {
		bubbles := item.Page.Panels[p].Bubbles
		for b := range bubbles {
			id, ok := attributed[bubbles[b].BubbleID]
			if !ok && bubbles[b].Type == manifest.BubbleNarration {
				id, ok = manifest.NarratorSpeakerID, true
			}
			if !ok {
				continue
			}
			bubbles[b].SpeakerID = id
			addSpeaker(id)
		}
	}
	return item, nil
}

// HealthCheck pings the attribution collaborator.
func (s *SpeakerAttribution) HealthCheck(ctx context.Context) stage.Health {
	return remoteHealth(ctx, stage.SpeakerAttribution, s.remote, endpoint(s.remote, func(e remote.Endpoints) string { return e.SpeakerAttribution }))
}

// sameCharacter reports whether a speaker the collaborator calls new is the
// known one under the same id. An unlabelled declaration is taken as a repeat.
func sameCharacter(known manifest.Speaker, ns remote.NewSpeaker) bool {
	label := strings.TrimSpace(ns.Label)
	return label == "" || strings.EqualFold(label, known.Label)
}

// freshSpeakerID derives an unused id from id for a new character whose id
// collides with one from an earlier page.
func freshSpeakerID(doc *manifest.Comic, id string, taken map[string]remote.NewSpeaker) string {
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", id, n)
		if _, exists := doc.Speaker(candidate); exists {
			continue
		}
		if _, exists := taken[candidate]; exists {
			continue
		}
		return candidate
	}
}

func newSpeaker(id string, ns remote.NewSpeaker) manifest.Speaker {
	sp := manifest.Speaker{
		SpeakerID:       id,
		Label:           strings.TrimSpace(ns.Label),
		Gender:          strings.ToLower(strings.TrimSpace(ns.Gender)),
		AgeGroup:        strings.ToLower(strings.TrimSpace(ns.AgeGroup)),
		PersonalityTags: append([]string(nil), ns.PersonalityTags...),
	}
	if sp.Label == "" {
		sp.Label = id
	}
	if id == manifest.NarratorSpeakerID {
		sp.Label = narratorLabel
	}
	return sp
}
