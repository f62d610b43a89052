package mapping

import (
	"encoding/json"
	"fmt"

	"github.com/perpetuitylabs/underwritingflow/internal/schema"
)

const basePrompt = `You map extracted real-estate underwriting values into the canonical model schema. Follow the provided schema exactly. Use the field aliases to recognize source labels that differ from canonical names. Never invent values.`

// BuildPrompt renders the mapping prompt for one extracted source document:
// base instructions, the schema catalog, and the source JSON.
func BuildPrompt(registry *schema.Registry, source map[string]any) (string, error) {
	sourceText, err := json.MarshalIndent(source, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode source JSON for prompt: %w", err)
	}
	return fmt.Sprintf(
		"%s\n\nCanonical Schema Definition:\n%s\n\nSource JSON (section -> field -> value):\n%s\n\n"+
			"Return JSON strictly shaped as {\"mapped\": {...}, \"missing_fields\": [...], \"metadata\": {...}}. "+
			"Every canonical field must be present under its section in `mapped` (use null for missing).\n"+
			"Populate `missing_fields` with any canonical fields you could not confidently map, each as "+
			"{\"table\", \"field\", \"reason\", \"confidence\", \"source_fields\"}. "+
			"If everything is mapped with confidence, return an empty list.",
		basePrompt, registry.Summary(), sourceText,
	), nil
}
