// Package ingest turns raw completion text from a generative model into
// validated mind-map structures. Models wrap JSON in commentary and code
// fences; extraction recovers the payload, validation repairs what it can
// and rejects what it cannot.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoJSONFound means the text contained no candidate payload at all.
	ErrNoJSONFound = errors.New("ingest: no json payload found")
	// ErrMalformedJSON means a candidate slice was located but did not parse.
	ErrMalformedJSON = errors.New("ingest: malformed json payload")
)

// ExtractObject recovers a single JSON object from noisy model text.
func ExtractObject(text string) (json.RawMessage, error) {
	return extract(text, '{', '}')
}

// ExtractArray recovers a single JSON array from noisy model text.
func ExtractArray(text string) (json.RawMessage, error) {
	return extract(text, '[', ']')
}

func extract(text string, open, close byte) (json.RawMessage, error) {
	cleaned := stripFences(text)

	start := strings.IndexByte(cleaned, open)
	end := strings.LastIndexByte(cleaned, close)
	if start == -1 || end == -1 || end <= start {
		return nil, ErrNoJSONFound
	}

	slice := []byte(cleaned[start : end+1])
	var probe any
	if err := json.Unmarshal(slice, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	return json.RawMessage(slice), nil
}

// stripFences removes triple-backtick markers, json-tagged or bare, leaving
// the fenced content in place.
func stripFences(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	return strings.ReplaceAll(text, "```", "")
}
