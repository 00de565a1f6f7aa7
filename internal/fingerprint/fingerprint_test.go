package fingerprint_test

import (
	"bytes"
	"strings"
	"testing"

	"panelcast/internal/fingerprint"
)

func TestComputeIsDeterministic(t *testing.T) {
	src := []byte("%PDF-1.7 comic")
	pages := fingerprint.PageRange{Start: 1, End: 5}
	a := fingerprint.Compute(src, pages, false)
	b := fingerprint.Compute(append([]byte(nil), src...), pages, false)
	if a != b {
		t.Fatalf("expected identical fingerprints, got %s vs %s", a, b)
	}
	if !fingerprint.Valid(a) {
		t.Fatalf("expected 64 hex chars, got %q", a)
	}
}

func TestComputeIsSensitiveToEveryInput(t *testing.T) {
	src := []byte("%PDF-1.7 comic")
	base := fingerprint.Compute(src, fingerprint.PageRange{Start: 1, End: 5}, false)

	variants := map[string]string{
		"normalize": fingerprint.Compute(src, fingerprint.PageRange{Start: 1, End: 5}, true),
		"range":     fingerprint.Compute(src, fingerprint.PageRange{Start: 1, End: 4}, false),
		"all pages": fingerprint.Compute(src, fingerprint.PageRange{}, false),
		"bytes":     fingerprint.Compute([]byte("%PDF-1.7 comiC"), fingerprint.PageRange{Start: 1, End: 5}, false),
	}
	for name, fp := range variants {
		if fp == base {
			t.Fatalf("%s change did not alter fingerprint", name)
		}
	}
}

func TestComputeFramesSourceLength(t *testing.T) {
	// Moving bytes between the source and the options must not collide.
	a := fingerprint.Compute([]byte("ab"), fingerprint.PageRange{}, false)
	b := fingerprint.Compute([]byte("a"), fingerprint.PageRange{}, false)
	if a == b {
		t.Fatal("expected different fingerprints")
	}
}

func TestComputeReaderMatchesCompute(t *testing.T) {
	src := bytes.Repeat([]byte("panel"), 4096)
	pages := fingerprint.PageRange{Start: 3}
	want := fingerprint.Compute(src, pages, true)
	got, err := fingerprint.ComputeReader(bytes.NewReader(src), int64(len(src)), pages, true)
	if err != nil {
		t.Fatalf("ComputeReader: %v", err)
	}
	if got != want {
		t.Fatalf("streaming digest mismatch: %s vs %s", got, want)
	}
	if _, err := fingerprint.ComputeReader(strings.NewReader("short"), 10, pages, true); err == nil {
		t.Fatal("expected size mismatch error")
	}
}

func TestPageRangeValidate(t *testing.T) {
	cases := []struct {
		r       fingerprint.PageRange
		wantErr bool
	}{
		{fingerprint.PageRange{}, false},
		{fingerprint.PageRange{Start: 1, End: 3}, false},
		{fingerprint.PageRange{Start: 4}, false},
		{fingerprint.PageRange{Start: 3, End: 1}, true},
		{fingerprint.PageRange{Start: -1}, true},
		{fingerprint.PageRange{End: 2}, true},
	}
	for _, tc := range cases {
		err := tc.r.Validate()
		if (err != nil) != tc.wantErr {
			t.Fatalf("Validate(%s) err=%v wantErr=%v", tc.r, err, tc.wantErr)
		}
	}
}

func TestPageRangeContainsAndClamp(t *testing.T) {
	r := fingerprint.PageRange{Start: 2, End: 4}
	for n, want := range map[int]bool{1: false, 2: true, 4: true, 5: false} {
		if got := r.Contains(n); got != want {
			t.Fatalf("Contains(%d)=%v want %v", n, got, want)
		}
	}
	if first, last, ok := r.Clamp(3); !ok || first != 2 || last != 3 {
		t.Fatalf("Clamp(3) = %d,%d,%v", first, last, ok)
	}
	if _, _, ok := (fingerprint.PageRange{Start: 9}).Clamp(3); ok {
		t.Fatal("expected empty selection past the last page")
	}
	if first, last, ok := (fingerprint.PageRange{}).Clamp(7); !ok || first != 1 || last != 7 {
		t.Fatalf("Clamp all = %d,%d,%v", first, last, ok)
	}
}

func TestPageRangeString(t *testing.T) {
	for want, r := range map[string]fingerprint.PageRange{
		"all": {},
		"3-":  {Start: 3},
		"1-3": {Start: 1, End: 3},
	} {
		if got := r.String(); got != want {
			t.Fatalf("String()=%q want %q", got, want)
		}
	}
}

func TestParsePageRange(t *testing.T) {
	cases := []struct {
		in      string
		want    fingerprint.PageRange
		wantErr bool
	}{
		{in: "", want: fingerprint.PageRange{}},
		{in: "all", want: fingerprint.PageRange{}},
		{in: "4", want: fingerprint.PageRange{Start: 4, End: 4}},
		{in: "3-", want: fingerprint.PageRange{Start: 3}},
		{in: " 2 - 9 ", want: fingerprint.PageRange{Start: 2, End: 9}},
		{in: "9-2", wantErr: true},
		{in: "0-3", wantErr: true},
		{in: "x-3", wantErr: true},
		{in: "3-y", wantErr: true},
	}
	for _, tc := range cases {
		got, err := fingerprint.ParsePageRange(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error, got %+v", tc.in, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%q: got %+v err=%v, want %+v", tc.in, got, err, tc.want)
		}
		if again, err := fingerprint.ParsePageRange(got.String()); err != nil || again != got {
			t.Fatalf("%q: String form did not parse back: %+v err=%v", tc.in, again, err)
		}
	}
}
