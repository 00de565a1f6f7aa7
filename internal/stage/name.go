package stage

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"panelcast/internal/manifest"
)

// Name is a job's position in the pipeline state machine.
type Name string

const (
	Queued             Name = "queued"
	PDFToImages        Name = "pdf_to_images"
	PanelDetection     Name = "panel_detection"
	BubbleOCR          Name = "bubble_ocr"
	SpeakerAttribution Name = "speaker_attribution"
	VoiceAssignment    Name = "voice_assignment"
	TTSGeneration      Name = "tts_generation"
	SFXGeneration      Name = "sfx_generation"
	Normalization      Name = "normalization"
	Done               Name = "done"
	Failed             Name = "failed"
)

var workStages = []Name{
	PDFToImages,
	PanelDetection,
	BubbleOCR,
	SpeakerAttribution,
	VoiceAssignment,
	TTSGeneration,
	SFXGeneration,
	Normalization,
}

var titleCaser = cases.Title(language.English)

// Pipeline returns the ordered work stages.
func Pipeline() []Name {
	return append([]Name(nil), workStages...)
}

// Plan returns the stages a job runs. Normalization is dropped unless it was
// requested; the plan is fixed when the job is created.
func Plan(normalize bool) []Name {
	plan := make([]Name, 0, len(workStages))
	for _, name := range workStages {
		if name == Normalization && !normalize {
			continue
		}
		plan = append(plan, name)
	}
	return plan
}

// All returns every state in lifecycle order, failed last.
func All() []Name {
	out := make([]Name, 0, len(workStages)+3)
	out = append(out, Queued)
	out = append(out, workStages...)
	return append(out, Done, Failed)
}

// ParseName validates a stored or user supplied stage name.
func ParseName(value string) (Name, error) {
	candidate := Name(strings.ToLower(strings.TrimSpace(value)))
	for _, name := range All() {
		if name == candidate {
			return name, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", value)
}

// Label renders the name for humans, e.g. "Speaker Attribution".
func (n Name) Label() string {
	switch n {
	case PDFToImages:
		return "PDF To Images"
	case BubbleOCR:
		return "Bubble OCR"
	case TTSGeneration:
		return "TTS Generation"
	case SFXGeneration:
		return "SFX Generation"
	}
	return titleCaser.String(strings.ReplaceAll(string(n), "_", " "))
}

// Terminal reports whether no further transitions happen.
func (n Name) Terminal() bool {
	return n == Done || n == Failed
}

// Rank orders states so pollers can assert stages never move backward.
// Failed ranks after everything since it is reachable from any state.
func (n Name) Rank() int {
	for i, name := range All() {
		if name == n {
			return i
		}
	}
	return -1
}

// Granularity is the unit of fan-out for the stage.
func (n Name) Granularity() Granularity {
	switch n {
	case PDFToImages, PanelDetection, SpeakerAttribution:
		return PerPage
	case BubbleOCR, SFXGeneration, Normalization:
		return PerPanel
	default:
		return PerBubble
	}
}

// Frozen is the depth of the document that earlier stages already committed
// and this stage must leave untouched.
func (n Name) Frozen() manifest.Level {
	switch n {
	case PDFToImages:
		return manifest.FrozenNone
	case PanelDetection:
		return manifest.FrozenPages
	case BubbleOCR:
		return manifest.FrozenPanels
	default:
		return manifest.FrozenBubbles
	}
}
