// Package mapping turns loosely-structured LLM mapping output into canonical
// documents that conform exactly to the model schema, and computes the
// deterministic missing-field report persisted alongside them.
package mapping

import "time"

// MissingField is one entry of the missing-field report. Section and Field
// name canonical schema coordinates; the labels are presentation metadata
// attached from the registry.
type MissingField struct {
	Section      string   `json:"table" firestore:"table"`
	Field        string   `json:"field" firestore:"field"`
	Reason       string   `json:"reason" firestore:"reason"`
	Confidence   string   `json:"confidence,omitempty" firestore:"confidence,omitempty"`
	SourceFields []string `json:"source_fields,omitempty" firestore:"sourceFields,omitempty"`
	SectionLabel string   `json:"table_label,omitempty" firestore:"tableLabel,omitempty"`
	FieldLabel   string   `json:"field_label,omitempty" firestore:"fieldLabel,omitempty"`
}

// Metadata stamps a canonical document with provenance: when it was
// normalized, which schema revision it conforms to, and the display labels
// current at that time.
type Metadata struct {
	GeneratedAt   time.Time                    `json:"generated_at" firestore:"generatedAt"`
	Warnings      []string                     `json:"warnings,omitempty" firestore:"warnings,omitempty"`
	ModelVersion  string                       `json:"model_version,omitempty" firestore:"modelVersion,omitempty"`
	SectionLabels map[string]string            `json:"table_labels" firestore:"tableLabels"`
	FieldLabels   map[string]map[string]string `json:"field_labels" firestore:"fieldLabels"`
}

// Result is the canonical document plus its missing-field report and
// provenance metadata. The three parts are created together by one Normalize
// call and always replaced as a unit.
//
// Mapped maps section name to either map[string]any (scalar group) or []any
// of row objects (table).
type Result struct {
	Mapped        map[string]any `json:"mapped" firestore:"mapped"`
	MissingFields []MissingField `json:"missing_fields" firestore:"missingFields"`
	Metadata      Metadata       `json:"metadata" firestore:"metadata"`
}
