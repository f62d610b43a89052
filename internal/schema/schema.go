// Package schema loads the canonical underwriting-model schema and exposes it
// as immutable section descriptors. The schema is data: it drives shape
// enforcement in the normalizer, the prompt catalog sent to the mapping model,
// and the human-readable labels attached to missing-field reports.
package schema

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// SectionKind discriminates the two shapes a canonical section can take.
type SectionKind string

const (
	// KindScalarGroup is a flat set of single-valued named fields.
	KindScalarGroup SectionKind = "scalar_group"
	// KindTable is a repeating set of rows sharing named columns.
	KindTable SectionKind = "table"
)

// Field describes one scalar field or table column.
type Field struct {
	Name        string   `yaml:"name"`
	Label       string   `yaml:"label"`
	DType       string   `yaml:"dtype"`
	Role        string   `yaml:"role"`
	Description string   `yaml:"description"`
	Aliases     []string `yaml:"aliases"`
}

// DisplayLabel returns the label, falling back to the raw field name.
func (f Field) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// Section is one named schema section. Kind decides whether Fields holds the
// scalar fields of a group or the columns of a table.
type Section struct {
	Name             string      `yaml:"name"`
	Kind             SectionKind `yaml:"kind"`
	Label            string      `yaml:"label"`
	Description      string      `yaml:"description"`
	RowMatchStrategy string      `yaml:"row_match_strategy"`
	RowKeyField      string      `yaml:"row_key_field"`
	Fields           []Field     `yaml:"fields"`
	Columns          []Field     `yaml:"columns"`
}

// DisplayLabel returns the label, falling back to the raw section name.
func (s Section) DisplayLabel() string {
	if s.Label != "" {
		return s.Label
	}
	return s.Name
}

// FieldList returns the declared fields or columns depending on Kind, in
// schema order.
func (s Section) FieldList() []Field {
	if s.Kind == KindTable {
		return s.Columns
	}
	return s.Fields
}

// Field looks up a declared field or column by name.
func (s Section) Field(name string) (Field, bool) {
	for _, f := range s.FieldList() {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

type schemaFile struct {
	Sections []Section `yaml:"sections"`
}

// Registry is the loaded, immutable canonical schema. Safe for unlimited
// concurrent readers; never mutated after Load returns.
type Registry struct {
	sections    []Section
	byName      map[string]int
	fingerprint string
}

// Load parses a schema source. Tests inject alternate sources here instead of
// mutating the process-wide default.
func Load(src []byte) (*Registry, error) {
	var file schemaFile
	if err := yaml.Unmarshal(src, &file); err != nil {
		return nil, fmt.Errorf("failed to parse model schema: %w", err)
	}
	if len(file.Sections) == 0 {
		return nil, fmt.Errorf("model schema declares no sections")
	}

	byName := make(map[string]int, len(file.Sections))
	for i, section := range file.Sections {
		if section.Name == "" {
			return nil, fmt.Errorf("model schema section %d has no name", i)
		}
		if section.Kind != KindScalarGroup && section.Kind != KindTable {
			return nil, fmt.Errorf("section %q has unknown kind %q", section.Name, section.Kind)
		}
		if _, dup := byName[section.Name]; dup {
			return nil, fmt.Errorf("duplicate section name %q", section.Name)
		}
		byName[section.Name] = i

		seen := make(map[string]bool, len(section.FieldList()))
		for _, f := range section.FieldList() {
			if f.Name == "" {
				return nil, fmt.Errorf("section %q declares a field with no name", section.Name)
			}
			if seen[f.Name] {
				return nil, fmt.Errorf("section %q declares field %q twice", section.Name, f.Name)
			}
			seen[f.Name] = true
		}
	}

	sum := sha1.Sum(src)
	return &Registry{
		sections:    file.Sections,
		byName:      byName,
		fingerprint: hex.EncodeToString(sum[:])[:12],
	}, nil
}

// Fingerprint is a stable content hash of the schema source, used to tag
// every canonical document with the schema revision it was normalized against.
func (r *Registry) Fingerprint() string {
	return r.fingerprint
}

// Sections returns all sections in declared order.
func (r *Registry) Sections() []Section {
	return r.sections
}

// Section looks up a section by name.
func (r *Registry) Section(name string) (Section, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Section{}, false
	}
	return r.sections[i], true
}

// SectionLabels returns section name -> display label for every section.
func (r *Registry) SectionLabels() map[string]string {
	labels := make(map[string]string, len(r.sections))
	for _, s := range r.sections {
		labels[s.Name] = s.DisplayLabel()
	}
	return labels
}

// FieldLabels returns field name -> display label for one section, or nil if
// the section is unknown.
func (r *Registry) FieldLabels(section string) map[string]string {
	s, ok := r.Section(section)
	if !ok {
		return nil
	}
	labels := make(map[string]string, len(s.FieldList()))
	for _, f := range s.FieldList() {
		labels[f.Name] = f.DisplayLabel()
	}
	return labels
}

// Summary renders the schema as a compact plain-text catalog for LLM prompts.
func (r *Registry) Summary() string {
	var b strings.Builder
	for _, s := range r.sections {
		fmt.Fprintf(&b, "%s :: %s - %s\n", s.Name, s.DisplayLabel(), s.Description)
		prefix := ""
		if s.Kind == KindTable {
			prefix = "column: "
		}
		for _, f := range s.FieldList() {
			aliasText := ""
			if len(f.Aliases) > 0 {
				aliasText = " | aliases: " + strings.Join(f.Aliases, ", ")
			}
			fmt.Fprintf(&b, "  - %s%s (%s) :: %s%s\n", prefix, f.Name, f.DType, f.DisplayLabel(), aliasText)
		}
	}
	return b.String()
}
