package completion

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// ErrNoJSONObject is returned when no JSON object can be located in a
// completion response.
var ErrNoJSONObject = errors.New("no JSON object in completion response")

// ExtractJSONObject pulls the first complete JSON object out of a
// completion response. Models routinely wrap the object in markdown code
// fences or surrounding prose; both are stripped before parsing.
func ExtractJSONObject(raw string) ([]byte, error) {
	text := strings.TrimSpace(raw)

	// Prefer fenced content when present
	if idx := strings.Index(text, "```"); idx >= 0 {
		rest := text[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		rest = strings.TrimPrefix(rest, "JSON")
		if end := strings.Index(rest, "```"); end >= 0 {
			text = strings.TrimSpace(rest[:end])
		}
	}

	start := strings.Index(text, "{")
	if start < 0 {
		return nil, ErrNoJSONObject
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					candidate := []byte(text[start : i+1])
					if !json.Valid(candidate) {
						return nil, errors.Wrap(ErrNoJSONObject, "unparseable object")
					}
					return candidate, nil
				}
			}
		}
	}

	return nil, errors.Wrap(ErrNoJSONObject, "unbalanced braces")
}

// DecodeObject extracts and unmarshals the first JSON object in raw into v
func DecodeObject(raw string, v interface{}) error {
	data, err := ExtractJSONObject(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
