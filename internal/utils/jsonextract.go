package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON indicates the text contains no bracketed JSON value at all.
var ErrNoJSON = errors.New("no json value found in text")

// ExtractJSON pulls a syntactically valid JSON value out of free-form model
// output. The reply may be pure JSON, fenced JSON, or JSON surrounded by
// prose. The heuristic takes the first opening brace or bracket and the last
// matching closer of the same kind, slices inclusively, and decodes the
// slice. It is best-effort: unrelated braces outside the intended block can
// make it mis-slice, in which case decoding fails and the caller must treat
// the unit of work as terminally failed rather than retry.
func ExtractJSON(text string) (json.RawMessage, error) {
	open := strings.IndexAny(text, "{[")
	if open < 0 {
		return nil, ErrNoJSON
	}

	closer := byte('}')
	if text[open] == '[' {
		closer = ']'
	}

	end := strings.LastIndexByte(text, closer)
	if end <= open {
		return nil, ErrNoJSON
	}

	candidate := []byte(text[open : end+1])
	var value json.RawMessage
	if err := json.Unmarshal(candidate, &value); err != nil {
		return nil, fmt.Errorf("decode extracted json: %w", err)
	}

	return value, nil
}
