package stage

import (
	"context"
	"strconv"

	"panelcast/internal/manifest"
)

// Granularity names the sub-item a stage fans out over.
type Granularity string

const (
	PerPage   Granularity = "page"
	PerPanel  Granularity = "panel"
	PerBubble Granularity = "bubble"
)

// Stage is the contract the runner needs from every pipeline step. Run
// receives one sub-item and returns it updated; it must not touch anything
// outside the element it was given.
type Stage interface {
	Name() Name
	Run(ctx context.Context, item Item) (Item, error)
	HealthCheck(ctx context.Context) Health
}

// Preparer is implemented by stages that need whole-document setup before
// fan-out, such as building page shells or resolving voices.
type Preparer interface {
	Prepare(ctx context.Context, doc *manifest.Comic) error
}

// Finisher is implemented by stages that post-process the folded document.
type Finisher interface {
	Finish(ctx context.Context, doc *manifest.Comic) error
}

// Sequential is implemented by stages whose items build on the results of
// earlier items. The runner runs them one item at a time in reading order,
// and each item's Doc already holds every earlier result.
type Sequential interface {
	Sequential()
}

// Address locates a sub-item. Indexes deeper than the granularity are -1.
type Address struct {
	Page   int
	Panel  int
	Bubble int
}

// Item is one unit of intra-stage work.
type Item struct {
	Address Address

	Page   manifest.Page
	Panel  manifest.Panel
	Bubble manifest.Bubble

	// Doc is a read-only view of the document: as it stood before the stage
	// started, or for Sequential stages, with every earlier item folded in.
	Doc *manifest.Comic

	// Speakers lists characters discovered by page-level attribution; the
	// runner merges them into the document in reading order.
	Speakers []manifest.Speaker
}

// Key renders the address for logs and failure messages.
func (a Address) Key() string {
	switch {
	case a.Bubble >= 0:
		return fmtAddr("page", a.Page) + "/" + fmtAddr("panel", a.Panel) + "/" + fmtAddr("bubble", a.Bubble)
	case a.Panel >= 0:
		return fmtAddr("page", a.Page) + "/" + fmtAddr("panel", a.Panel)
	default:
		return fmtAddr("page", a.Page)
	}
}

func fmtAddr(kind string, idx int) string {
	return kind + " " + strconv.Itoa(idx)
}
