package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Field priority lists. Each caller extracts text from the first entry to the
// last, keeping every non-empty hit.
var (
	// EnrichmentFields feed the NL-analysis capability.
	EnrichmentFields = []string{
		"subject", "snippet", "body", "body_text", "text", "transcript",
		"description", "title", "content", "notes", "location",
	}

	// EmbeddingFields feed the text-embedding capability and the content hash.
	EmbeddingFields = []string{
		"subject", "snippet", "body", "body_text", "text", "transcript",
		"content", "description", "title",
	}

	// PromptFields are rendered, in order, into analysis prompts.
	PromptFields = []string{
		"subject", "from", "to", "snippet", "body", "body_text", "text",
		"content", "title", "description",
	}
)

// NormalizePayload turns whatever the adapter sent into a mapping. A JSON
// object is used as-is; a JSON string is parsed again and used if it decodes
// to an object; any other value becomes {"text": raw}.
func NormalizePayload(raw json.RawMessage) map[string]any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]any{}
	}

	var obj map[string]any
	if err := json.Unmarshal(trimmed, &obj); err == nil && obj != nil {
		return obj
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return NormalizeString(s)
	}

	// Numbers, arrays, booleans, or bytes that are not JSON at all.
	return map[string]any{"text": string(trimmed)}
}

// NormalizeString applies the string branch of NormalizePayload.
func NormalizeString(s string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err == nil && obj != nil {
		return obj
	}
	return map[string]any{"text": s}
}

// ExtractText concatenates every non-empty payload field named in fields,
// in order, separated by newlines. An empty result means "no signal".
func ExtractText(payload map[string]any, fields []string) string {
	var parts []string
	for _, f := range fields {
		if s := stringField(payload, f); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// StringField returns a payload value rendered as trimmed text.
func StringField(payload map[string]any, key string) string {
	return stringField(payload, key)
}

func stringField(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		var parts []string
		for _, item := range t {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, strings.TrimSpace(s))
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
