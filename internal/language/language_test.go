package language_test

import (
	"testing"

	"panelcast/internal/language"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"en":       "en",
		" EN-us ":  "en",
		"pt_BR":    "pt",
		"jpn":      "ja",
		"fre":      "fr",
		"ger":      "de",
		"Japanese": "ja",
		"":         "",
		"klingon!": "",
	}
	for input, want := range cases {
		if got := language.Normalize(input); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestOrFallsBack(t *testing.T) {
	if got := language.Or("???", "en"); got != "en" {
		t.Fatalf("expected fallback, got %q", got)
	}
	if got := language.Or("spa", "en"); got != "es" {
		t.Fatalf("expected es, got %q", got)
	}
}
