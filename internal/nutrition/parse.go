package nutrition

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrJSONExtraction means the raw model text contained no JSON object span.
	ErrJSONExtraction = errors.New("no JSON object found in response")
	// ErrJSONParse means a span was found but is not a valid JSON object.
	ErrJSONParse = errors.New("malformed JSON object in response")
)

// ExtractJSONObject returns the substring of raw between the first '{' and
// the last '}', inclusive. Models routinely wrap their JSON in prose or
// markdown fences; this strips all of that without attempting any repair of
// the JSON itself.
func ExtractJSONObject(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("%w: %q", ErrJSONExtraction, raw)
	}
	return raw[start : end+1], nil
}

// ParseClassification parses a JSON object into a Classification. Each of
// the six canonical keys is coerced to float64; a missing key or a value
// that cannot be read as a number defaults to 0.0 without failing the whole
// parse. Only a span that is not a JSON object at all fails, with
// ErrJSONParse. Unknown keys are ignored.
func ParseClassification(jsonStr string) (Classification, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &fields); err != nil {
		return Classification{}, fmt.Errorf("%w: %v", ErrJSONParse, err)
	}

	var c Classification
	for _, g := range Groups() {
		c.setValue(g, coerceFloat(fields[string(g)]))
	}
	return c, nil
}

// coerceFloat reads a decoded JSON value as a float64. Numbers pass through;
// numeric strings are converted; everything else counts as absent.
func coerceFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f
		}
	}
	return 0
}
