package toolregistry

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// StripQuotedPrefix strips a leading "User message: '...'" or
// "Query: '...'" wrapper some LLMs emit around a single string argument.
// It operates on a top-level string argument value found at any
// string-typed field and leaves non-string fields untouched.
func StripQuotedPrefix(raw json.RawMessage) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return raw, nil
	}
	for key, val := range fields {
		var s string
		if err := json.Unmarshal(val, &s); err != nil {
			continue
		}
		if stripped, ok := stripQuotedPrefixString(s); ok {
			encoded, err := json.Marshal(stripped)
			if err != nil {
				return raw, fmt.Errorf("re-encoding stripped field %q: %w", key, err)
			}
			fields[key] = encoded
		}
	}
	return json.Marshal(fields)
}

var quotedPrefixPattern = regexp.MustCompile(`(?i)^\s*(user message|query)\s*:\s*['"](.*)['"]\s*$`)

func stripQuotedPrefixString(s string) (string, bool) {
	m := quotedPrefixPattern.FindStringSubmatch(s)
	if m == nil {
		return s, false
	}
	return m[2], true
}

// CoerceNumericString parses a numeric field that arrived as a JSON
// string ("5" -> 5) before schema validation, for tools whose single
// argument is a count or limit.
func CoerceNumericString(raw json.RawMessage) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return raw, nil
	}
	for key, val := range fields {
		var s string
		if err := json.Unmarshal(val, &s); err != nil {
			continue
		}
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			continue
		}
		if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
			encoded, err := json.Marshal(n)
			if err != nil {
				return raw, fmt.Errorf("re-encoding coerced field %q: %w", key, err)
			}
			fields[key] = encoded
		}
	}
	return json.Marshal(fields)
}
