package llm

import (
	"errors"
	"strings"
)

var ErrNoJSON = errors.New("no JSON value in completion")

// ExtractJSON trims markdown code fences and surrounding prose from a
// completion and returns the outermost JSON object or array.
func ExtractJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", ErrNoJSON
	}
	closing := byte('}')
	if s[start] == '[' {
		closing = ']'
	}
	end := strings.LastIndexByte(s, closing)
	if end < start {
		return "", ErrNoJSON
	}
	return s[start : end+1], nil
}
