// Package deps reports whether the external binaries panelcast shells out to
// are installed.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"panelcast/internal/config"
)

// Requirement names a binary and why panelcast needs it. Optional binaries
// are reported but never block a stage.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is a Requirement after a PATH lookup. Detail explains an
// unavailable binary.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional,omitempty"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// Requirements lists the poppler tools page rasterization uses.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	c := cfg.Collaborators
	return []Requirement{
		{Name: "pdftoppm", Command: c.PDFToPPMBinary, Description: "Rasterizes PDF pages"},
		{Name: "pdfinfo", Command: c.PDFInfoBinary, Description: "Counts PDF pages"},
	}
}

func CheckBinaries(reqs []Requirement) []Status {
	out := make([]Status, len(reqs))
	for i, req := range reqs {
		out[i] = lookup(req)
	}
	return out
}

// Missing filters statuses down to unavailable required binaries.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if !s.Optional && !s.Available {
			out = append(out, s)
		}
	}
	return out
}

func lookup(req Requirement) Status {
	s := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if s.Command == "" {
		s.Detail = "command not configured"
		return s
	}
	if _, err := exec.LookPath(s.Command); err != nil {
		s.Detail = fmt.Sprintf("binary %q not found", s.Command)
		return s
	}
	s.Available = true
	return s
}
