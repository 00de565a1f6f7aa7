package language

import (
	"strings"

	xlanguage "golang.org/x/text/language"
)

// English names collaborators sometimes return instead of codes, plus the
// ISO 639-2/B codes older tools emit.
var aliases = map[string]string{
	"fre":        "fr",
	"ger":        "de",
	"dut":        "nl",
	"chi":        "zh",
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"russian":    "ru",
	"arabic":     "ar",
	"hindi":      "hi",
	"dutch":      "nl",
	"polish":     "pl",
}

// Normalize maps a BCP 47 tag ("en-US"), an ISO 639-2 code ("jpn", "fre")
// or an English language name to its ISO 639-1 code. Unrecognized input
// returns "".
func Normalize(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if iso, ok := aliases[code]; ok {
		return iso
	}
	tag, err := xlanguage.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return ""
	}
	base, confidence := tag.Base()
	if confidence == xlanguage.No {
		return ""
	}
	if iso := base.String(); len(iso) == 2 {
		return iso
	}
	return ""
}

// Or returns Normalize(code), or fallback when code is not recognized.
func Or(code, fallback string) string {
	if iso := Normalize(code); iso != "" {
		return iso
	}
	return fallback
}
