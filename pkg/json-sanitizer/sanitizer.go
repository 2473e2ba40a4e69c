// Package sanitizer strips common script-injection patterns from string
// values in JSON documents. It is pattern-based on purpose: the point is a
// cheap defense-in-depth pass, not a substitute for server-side
// sanitization, and it is not foolproof against obfuscated payloads.
package sanitizer

import (
	"encoding/json"
	"regexp"
)

var (
	scriptBlockPattern  = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	eventHandlerPattern = regexp.MustCompile(`(?i)\bon\w+\s*=\s*(?:"[^"]*"|'[^']*'|[^\s>]*)`)
	schemePattern       = regexp.MustCompile(`(?i)javascript:`)
)

// String removes script blocks, inline event-handler attributes and
// javascript: URI schemes from a single string value.
func String(s string) string {
	s = scriptBlockPattern.ReplaceAllString(s, "")
	s = eventHandlerPattern.ReplaceAllString(s, "")
	s = schemePattern.ReplaceAllString(s, "")
	return s
}

// Value recursively sanitizes a decoded JSON value.
// String leaves are rewritten; everything else passes through unchanged.
func Value(v any) any {
	switch val := v.(type) {
	case string:
		return String(val)
	case map[string]any:
		for k, elem := range val {
			val[k] = Value(elem)
		}
		return val
	case []any:
		for i, elem := range val {
			val[i] = Value(elem)
		}
		return val
	default:
		return v
	}
}

// Body sanitizes a JSON document.
// It returns an error if the document does not parse; callers are expected
// to keep the original body in that case.
func Body(b []byte) ([]byte, error) {
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(Value(doc))
}
