// Package jsonrepair recovers JSON objects from raw language-model output.
// Model responses are not guaranteed to be valid JSON: they arrive wrapped in
// markdown fences, trailed by prose, or containing bare thousands-separated
// numbers that no strict parser accepts. Every strategy here is best-effort
// and the package never returns an error to its caller.
package jsonrepair

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tailscale/hujson"
)

// bareGroupedNumber matches a comma- or bracket-terminated numeric literal
// with embedded grouping commas, e.g. `"Net Rentals SF": 111,625,`. Models
// copy these straight out of spreadsheets instead of quoting them.
var bareGroupedNumber = regexp.MustCompile(`(:\s*)(-?\d{1,3}(?:,\d{3})+(?:\.\d+)?)(\s*[,}\]])`)

// Lenient parses text into a JSON object, applying recovery strategies in
// order and stopping at the first success. It never fails; total failure
// yields an empty map, which callers must treat as "no usable payload".
func Lenient(text string) map[string]any {
	cleaned := StripFence(text)

	if obj, ok := tryStrict(cleaned); ok {
		return obj
	}

	sub, ok := braceSubstring(cleaned)
	if !ok {
		return map[string]any{}
	}
	if obj, ok := tryStrict(sub); ok {
		return obj
	}
	if obj, ok := tryHuJSON(sub); ok {
		return obj
	}
	if obj, ok := tryStrict(quoteGroupedNumbers(sub)); ok {
		return obj
	}
	return map[string]any{}
}

// StripFence removes a single leading and trailing markdown code-fence line
// if present, leaving the inner text untouched.
func StripFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		trimmed = trimmed[idx+1:]
	} else {
		trimmed = strings.TrimPrefix(trimmed, "```")
	}
	trimmed = strings.TrimSpace(trimmed)
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

func tryStrict(text string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// tryHuJSON standardizes JSONC-style output (trailing commas, comments) and
// reparses. Standardize fails fast on anything it cannot make valid, so this
// stays a cheap middle step before the targeted numeric repair.
func tryHuJSON(text string) (map[string]any, bool) {
	standardized, err := hujson.Standardize([]byte(text))
	if err != nil {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal(standardized, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// braceSubstring returns the slice between the first '{' and the last '}'.
func braceSubstring(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// quoteGroupedNumbers rewrites bare thousands-separated numeric values as
// quoted strings so a strict parse can succeed. The value survives as text;
// coercion downstream turns "111,625" back into a number when a cell needs it.
func quoteGroupedNumbers(text string) string {
	return bareGroupedNumber.ReplaceAllString(text, `$1"$2"$3`)
}

// Snippet truncates text for inclusion in diagnostics when no usable payload
// could be recovered.
func Snippet(text string, n int) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= n {
		return trimmed
	}
	return trimmed[:n] + "..."
}
