// Package jsonx recovers structured JSON values from free-form model
// output. Responses are not guaranteed to contain only the object: there
// may be prose before and after it, and braces can appear inside string
// values, so extraction scans for the first balanced object rather than
// pattern-matching.
package jsonx

import "encoding/json"

// ExtractObject returns the first complete JSON object embedded in text.
// It starts at the first '{' and tracks string, escape and nesting state
// until the object closes, then validates the candidate with the standard
// parser. Returns false when no well-formed object is present, including
// when the object is truncated.
func ExtractObject(text string) (json.RawMessage, bool) {
	start := -1
	for i := 0; i < len(text); i++ {
		if text[i] == '{' {
			start = i
			break
		}
	}
	if start == -1 {
		return nil, false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := []byte(text[start : i+1])
				if !json.Valid(candidate) {
					return nil, false
				}
				return json.RawMessage(candidate), true
			}
		}
	}
	return nil, false
}

// ExtractInto recovers the first JSON object in text and unmarshals it
// into v. Returns false when no valid object is found or it does not
// decode into v.
func ExtractInto(text string, v any) bool {
	raw, ok := ExtractObject(text)
	if !ok {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}
