package fingerprint

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// PageRange selects 1-based inclusive pages. The zero value selects every
// page and End == 0 leaves the range open ended.
type PageRange struct {
	Start int `json:"start,omitempty"`
	End   int `json:"end,omitempty"`
}

// All reports whether the range selects every page.
func (r PageRange) All() bool {
	return r.Start == 0 && r.End == 0
}

// Validate rejects ranges that cannot select any page.
func (r PageRange) Validate() error {
	switch {
	case r.Start < 0 || r.End < 0:
		return fmt.Errorf("page range %s: negative page number", r)
	case r.Start == 0 && r.End != 0:
		return errors.New("page range: end requires a start page")
	case r.End != 0 && r.Start > r.End:
		return fmt.Errorf("page range %s: start after end", r)
	}
	return nil
}

// Contains reports whether page n falls inside the range.
func (r PageRange) Contains(n int) bool {
	if n < 1 {
		return false
	}
	if r.All() {
		return true
	}
	if n < r.Start {
		return false
	}
	return r.End == 0 || n <= r.End
}

// Clamp bounds the range to a document with total pages and returns the
// first and last selected page. ok is false when nothing is selected.
func (r PageRange) Clamp(total int) (first, last int, ok bool) {
	if total < 1 {
		return 0, 0, false
	}
	first, last = 1, total
	if !r.All() {
		first = r.Start
		if r.End != 0 && r.End < last {
			last = r.End
		}
	}
	if first > last {
		return 0, 0, false
	}
	return first, last, true
}

func (r PageRange) String() string {
	switch {
	case r.All():
		return "all"
	case r.End == 0:
		return fmt.Sprintf("%d-", r.Start)
	default:
		return fmt.Sprintf("%d-%d", r.Start, r.End)
	}
}

// ParsePageRange reads the String form back: "", "all", "N-", "N-M" or a
// single page "N".
func ParsePageRange(value string) (PageRange, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "all") {
		return PageRange{}, nil
	}
	startText, endText, hasDash := strings.Cut(value, "-")
	start, err := strconv.Atoi(strings.TrimSpace(startText))
	if err != nil {
		return PageRange{}, fmt.Errorf("page range %q: bad start page", value)
	}
	r := PageRange{Start: start, End: start}
	if hasDash {
		r.End = 0
		if endText = strings.TrimSpace(endText); endText != "" {
			if r.End, err = strconv.Atoi(endText); err != nil {
				return PageRange{}, fmt.Errorf("page range %q: bad end page", value)
			}
		}
	}
	if r.Start == 0 {
		return PageRange{}, fmt.Errorf("page range %q: pages start at 1", value)
	}
	return r, r.Validate()
}
