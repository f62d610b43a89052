package mapping

import (
	"strings"
	"time"

	"github.com/perpetuitylabs/underwritingflow/internal/schema"
)

// reasonMissingAfterMapping is the reason attached to entries the normalizer
// synthesizes itself, as opposed to entries reported by the mapping model.
const reasonMissingAfterMapping = "Value missing after mapping"

// Normalizer forces arbitrary mapped payloads into the registry's canonical
// shape. It holds no mutable state; one Normalizer is safe for concurrent use.
type Normalizer struct {
	registry *schema.Registry
	now      func() time.Time
}

// NewNormalizer builds a Normalizer bound to a registry.
func NewNormalizer(registry *schema.Registry) *Normalizer {
	return &Normalizer{registry: registry, now: time.Now}
}

// WithClock overrides the timestamp source. Tests use this to pin
// Metadata.GeneratedAt.
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	clone := *n
	clone.now = now
	return &clone
}

// Normalize produces the canonical document, the deterministic missing-field
// report and refreshed metadata for a raw mapping result.
//
// The routine is pure and idempotent: feeding its own output back in yields
// an identical result except for Metadata.GeneratedAt, which is always
// restamped because a caller-supplied timestamp is never trusted.
func (n *Normalizer) Normalize(raw Result) Result {
	canonical := n.canonicalShape(raw.Mapped)
	missing := n.normalizeMissingFields(raw.MissingFields, canonical)

	meta := raw.Metadata
	meta.GeneratedAt = n.now().UTC()
	if meta.ModelVersion == "" {
		meta.ModelVersion = n.registry.Fingerprint()
	}
	// Labels are presentation metadata, not user data, so they are always
	// refreshed from the registry rather than preserved from an older call.
	meta.SectionLabels = n.registry.SectionLabels()
	fieldLabels := make(map[string]map[string]string, len(n.registry.Sections()))
	for _, section := range n.registry.Sections() {
		fieldLabels[section.Name] = n.registry.FieldLabels(section.Name)
	}
	meta.FieldLabels = fieldLabels

	return Result{Mapped: canonical, MissingFields: missing, Metadata: meta}
}

// canonicalShape builds a document containing every schema section. Scalar
// groups get every declared field (nil when absent) and lose undeclared
// fields. Tables pass through arrays unchanged, default to an empty array,
// and keep any other shape as-is so a downstream consumer can surface the
// anomaly instead of the whole record being lost.
func (n *Normalizer) canonicalShape(mapped map[string]any) map[string]any {
	canonical := make(map[string]any, len(n.registry.Sections()))
	for _, section := range n.registry.Sections() {
		raw, present := mapped[section.Name]

		if section.Kind == schema.KindTable {
			switch {
			case !present || raw == nil:
				canonical[section.Name] = []any{}
			default:
				canonical[section.Name] = raw
			}
			continue
		}

		source, _ := raw.(map[string]any)
		group := make(map[string]any, len(section.Fields))
		for _, field := range section.Fields {
			group[field.Name] = source[field.Name]
		}
		canonical[section.Name] = group
	}
	return canonical
}

type fieldKey struct {
	section string
	field   string
}

// normalizeMissingFields merges upstream-reported entries with synthesized
// ones. Upstream entries always come first; within each group, order follows
// the schema's declared section and field order. At most one entry survives
// per (section, field) pair.
func (n *Normalizer) normalizeMissingFields(upstream []MissingField, canonical map[string]any) []MissingField {
	normalized := make([]MissingField, 0, len(upstream))
	seen := make(map[fieldKey]bool, len(upstream))

	for _, item := range upstream {
		section, ok := n.registry.Section(item.Section)
		if !ok {
			continue
		}
		// Table entries pass through without column validation: tables are
		// variable-row and their reported field names are less fixed.
		if section.Kind != schema.KindTable {
			if _, declared := section.Field(item.Field); !declared {
				continue
			}
		}
		key := fieldKey{item.Section, item.Field}
		if seen[key] {
			continue
		}
		if item.SectionLabel == "" {
			item.SectionLabel = section.DisplayLabel()
		}
		if item.FieldLabel == "" {
			if f, declared := section.Field(item.Field); declared {
				item.FieldLabel = f.DisplayLabel()
			}
		}
		normalized = append(normalized, item)
		seen[key] = true
	}

	// Table sections are exempt from synthesis: row cardinality is not fixed,
	// so an empty table is not a missing value.
	for _, section := range n.registry.Sections() {
		if section.Kind == schema.KindTable {
			continue
		}
		group, _ := canonical[section.Name].(map[string]any)
		for _, field := range section.Fields {
			key := fieldKey{section.Name, field.Name}
			if seen[key] {
				continue
			}
			if !isBlank(group[field.Name]) {
				continue
			}
			normalized = append(normalized, MissingField{
				Section:      section.Name,
				Field:        field.Name,
				Reason:       reasonMissingAfterMapping,
				SectionLabel: section.DisplayLabel(),
				FieldLabel:   field.DisplayLabel(),
			})
			seen[key] = true
		}
	}
	return normalized
}

func isBlank(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
