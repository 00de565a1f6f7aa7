package remote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const snippetLimit = 160

// DecodeJSON decodes a collaborator response body into target. Model-backed
// collaborators sometimes wrap the document in a code fence or a sentence of
// prose, so when the body is not clean JSON the first object or array inside
// it is decoded and anything after it is ignored.
func DecodeJSON(content string, target any) error {
	body := bytes.TrimSpace([]byte(content))
	if len(body) == 0 {
		return errors.New("empty payload")
	}
	err := json.Unmarshal(body, target)
	if err == nil {
		return nil
	}
	start := bytes.IndexAny(body, "{[")
	if start < 0 {
		return fmt.Errorf("%w (payload: %s)", err, summarizePayloadSnippet(content))
	}
	dec := json.NewDecoder(bytes.NewReader(body[start:]))
	if embeddedErr := dec.Decode(target); embeddedErr != nil {
		return fmt.Errorf("%w (embedded payload: %s)", embeddedErr, summarizePayloadSnippet(string(body[start:])))
	}
	return nil
}

// summarizePayloadSnippet collapses whitespace and truncates s for use in
// error messages.
func summarizePayloadSnippet(s string) string {
	clean := strings.Join(strings.Fields(s), " ")
	if clean == "" {
		return "<empty>"
	}
	if runes := []rune(clean); len(runes) > snippetLimit {
		return string(runes[:snippetLimit]) + "..."
	}
	return clean
}
