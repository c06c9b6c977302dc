package llm

import "strings"

// StripMarkdownJSONFences recovers the JSON payload from a model reply that
// may be wrapped in prose or ```json fences. Preference order: the substring
// from the first '{' to the last '}', then the inside of a fenced block, then
// the trimmed input unchanged.
func StripMarkdownJSONFences(s string) string {
	trimmed := strings.TrimSpace(s)

	if i := strings.Index(trimmed, "{"); i >= 0 {
		if j := strings.LastIndex(trimmed, "}"); j > i {
			return trimmed[i : j+1]
		}
	}

	if rest, ok := strings.CutPrefix(trimmed, "```json"); ok {
		if body, ok := strings.CutSuffix(strings.TrimSpace(rest), "```"); ok {
			return strings.TrimSpace(body)
		}
	}
	if rest, ok := strings.CutPrefix(trimmed, "```"); ok {
		if body, ok := strings.CutSuffix(strings.TrimSpace(rest), "```"); ok {
			return strings.TrimSpace(body)
		}
	}

	return trimmed
}
