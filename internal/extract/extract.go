// Package extract holds the pure post-processing applied to raw extraction
// output: presence-based confidence grading and source-text snippet lookup.
// The model call that produces the raw output lives in the service layer.
package extract

import (
	"fmt"
	"sort"
	"strings"
)

// Result is the extraction payload persisted onto a new session.
type Result struct {
	Data             map[string]any    `json:"extracted_json" firestore:"extractedJson"`
	Confidences      map[string]any    `json:"confidences,omitempty" firestore:"confidences,omitempty"`
	InferredSections []string          `json:"inferred_tables,omitempty" firestore:"inferredTables,omitempty"`
	Warnings         []string          `json:"warnings,omitempty" firestore:"warnings,omitempty"`
	Snippets         map[string]string `json:"text_snippets,omitempty" firestore:"textSnippets,omitempty"`
}

// snippetWindow is the number of context characters kept on each side of a
// located value.
const snippetWindow = 80

// Confidences grades every extracted field high or low purely on presence.
// It is a placeholder heuristic: a non-blank value is "high", anything else
// "low".
func Confidences(data map[string]any) map[string]any {
	result := make(map[string]any, len(data))
	for section, value := range data {
		kv, ok := value.(map[string]any)
		if !ok {
			continue
		}
		grades := make(map[string]any, len(kv))
		for field, raw := range kv {
			grade := "low"
			if raw != nil && strings.TrimSpace(fmt.Sprint(raw)) != "" {
				grade = "high"
			}
			grades[field] = grade
		}
		result[section] = grades
	}
	return result
}

// Snippets locates each extracted value in the source document text and
// returns the surrounding context, keyed by "section.field". Values that
// cannot be found fall back to the context around the field name itself.
func Snippets(data map[string]any, fullText string) map[string]string {
	snippets := make(map[string]string)
	lower := strings.ToLower(fullText)
	for section, value := range data {
		kv, ok := value.(map[string]any)
		if !ok {
			continue
		}
		for field, raw := range kv {
			label := section + "." + field
			needle := ""
			if raw != nil {
				needle = strings.ToLower(fmt.Sprint(raw))
			}
			if needle != "" {
				if idx := strings.Index(lower, needle); idx != -1 {
					snippets[label] = window(fullText, idx, len(needle))
					continue
				}
			}
			if idx := strings.Index(lower, strings.ToLower(field)); idx != -1 {
				snippets[label] = window(fullText, idx, len(field))
			}
		}
	}
	return snippets
}

// InferredSections lists the section names present in the extracted data,
// sorted so repeated extractions of the same payload persist identically.
func InferredSections(data map[string]any) []string {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func window(text string, idx, matchLen int) string {
	start := idx - snippetWindow
	if start < 0 {
		start = 0
	}
	end := idx + matchLen + snippetWindow
	if end > len(text) {
		end = len(text)
	}
	return text[start:end]
}
