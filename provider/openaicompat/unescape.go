package openaicompat

import (
	"bytes"
	"encoding/json"
	"html"
)

// UnescapeArgs recursively HTML-unescapes every string value in a parsed
// tool-call arguments document. The endpoint double-encodes certain
// characters (quotes, angle brackets, ampersands) inside tool arguments;
// without this pass, file contents and shell commands reach tools
// mangled. Non-JSON input is returned unchanged.
func UnescapeArgs(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw
	}
	// Re-encode without HTML escaping, otherwise the characters just
	// unescaped (<, >, &) would come back as JSON unicode escapes.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(unescapeValue(v)); err != nil {
		return raw
	}
	return bytes.TrimRight(buf.Bytes(), "\n")
}

// unescapeValue walks a decoded JSON value, unescaping strings at every
// depth.
func unescapeValue(v any) any {
	switch t := v.(type) {
	case string:
		return html.UnescapeString(t)
	case map[string]any:
		for k, val := range t {
			t[k] = unescapeValue(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = unescapeValue(val)
		}
		return t
	}
	return v
}
