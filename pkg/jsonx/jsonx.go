// Package jsonx recovers JSON payloads from free-form model output.
package jsonx

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sweetpotato0/wanderai/errors"
)

// MaxDepth bounds how many wrapper objects Normalize peels off.
const MaxDepth = 4

// WrapperKeys are the keys models commonly wrap payloads in, in priority
// order.
var WrapperKeys = []string{
	"itinerary",
	"travel_intent",
	"intent",
	"destination_suggestions",
	"data",
	"results",
	"response",
	"content",
}

// Extract parses the widest JSON object or array found in text, whichever
// opens first, and normalises it.
func Extract(text string) (any, error) {
	text = stripFences(text)
	candidates := []string{widest(text, '{', '}'), widest(text, '[', ']'), text}
	if arr := strings.IndexByte(text, '['); arr >= 0 && arr < strings.IndexByte(text, '{') {
		candidates[0], candidates[1] = candidates[1], candidates[0]
	}

	var lastErr error
	for _, c := range candidates {
		if c == "" {
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(c), &v); err != nil {
			lastErr = err
			continue
		}
		return Normalize(v), nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("empty response")
	}
	return nil, fmt.Errorf("%w: parse JSON from model output: %v", errors.ErrSchema, lastErr)
}

// ExtractObject is Extract for callers that need an object.
func ExtractObject(text string) (map[string]any, error) {
	v, err := Extract(text)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected JSON object, got %T", errors.ErrSchema, v)
	}
	return obj, nil
}

// Decode extracts a payload from text and decodes it into T.
func Decode[T any](text string) (*T, error) {
	v, err := Extract(text)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrSchema, err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: decode payload: %v", errors.ErrSchema, err)
	}
	return &out, nil
}

// Normalize peels known wrapper objects off v, at most MaxDepth times.
// When a wrapper holds an object, sibling keys that the payload lacks are
// merged into it. A single-key object wrapping an object or array is also
// treated as a wrapper.
func Normalize(v any) any {
	for depth := 0; depth < MaxDepth; depth++ {
		next, ok := unwrap(v)
		if !ok {
			return v
		}
		v = next
	}
	return v
}

func unwrap(v any) (any, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return v, false
	}
	for _, key := range WrapperKeys {
		inner, present := obj[key]
		if !present {
			continue
		}
		switch payload := inner.(type) {
		case map[string]any:
			merged := make(map[string]any, len(payload)+len(obj))
			for k, val := range payload {
				merged[k] = val
			}
			for k, val := range obj {
				if k == key {
					continue
				}
				if _, exists := merged[k]; !exists {
					merged[k] = val
				}
			}
			return merged, true
		case []any:
			return payload, true
		}
	}
	if len(obj) == 1 {
		for _, inner := range obj {
			switch inner.(type) {
			case map[string]any, []any:
				return inner, true
			}
		}
	}
	return v, false
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```JSON", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

func widest(text string, open, close byte) string {
	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, close)
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
