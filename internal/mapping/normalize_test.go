package mapping

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perpetuitylabs/underwritingflow/internal/schema"
)

const testSchema = `
sections:
  - name: growth
    kind: scalar_group
    label: Growth Assumptions
    fields:
      - name: rent_growth
        label: Rent Growth
      - name: expense_growth
        label: Expense Growth
      - name: vacancy
        label: Vacancy
  - name: timeline
    kind: scalar_group
    label: Project Timeline
    fields:
      - name: start_date
        label: Start Date
      - name: hold_years
        label: Hold Period (Years)
  - name: unit_mix
    kind: table
    label: Unit Mix
    row_key_field: unit_type
    columns:
      - name: unit_type
        label: Unit Type
      - name: unit_count
        label: "# Units"
`

func testNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	reg, err := schema.Load([]byte(testSchema))
	require.NoError(t, err)
	fixed := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return NewNormalizer(reg).WithClock(func() time.Time { return fixed })
}

func TestNormalizeShape(t *testing.T) {
	n := testNormalizer(t)

	t.Run("every section and field is present", func(t *testing.T) {
		out := n.Normalize(Result{Mapped: map[string]any{}})

		require.Contains(t, out.Mapped, "growth")
		require.Contains(t, out.Mapped, "timeline")
		require.Contains(t, out.Mapped, "unit_mix")

		growth, ok := out.Mapped["growth"].(map[string]any)
		require.True(t, ok)
		assert.Len(t, growth, 3)
		for _, field := range []string{"rent_growth", "expense_growth", "vacancy"} {
			value, present := growth[field]
			assert.True(t, present)
			assert.Nil(t, value)
		}

		assert.Equal(t, []any{}, out.Mapped["unit_mix"])
	})

	t.Run("undeclared scalar fields are dropped", func(t *testing.T) {
		out := n.Normalize(Result{Mapped: map[string]any{
			"growth": map[string]any{
				"rent_growth": 0.03,
				"cap_rate":    0.055,
			},
			"parking_income": map[string]any{"monthly": 1200},
		}})

		growth := out.Mapped["growth"].(map[string]any)
		assert.Equal(t, 0.03, growth["rent_growth"])
		assert.NotContains(t, growth, "cap_rate")
		assert.NotContains(t, out.Mapped, "parking_income")
	})

	t.Run("table rows pass through unchanged", func(t *testing.T) {
		rows := []any{
			map[string]any{"unit_type": "1BR", "unit_count": 24, "avg_sf": 710},
		}
		out := n.Normalize(Result{Mapped: map[string]any{"unit_mix": rows}})
		assert.Equal(t, rows, out.Mapped["unit_mix"])
	})

	t.Run("nil table becomes empty array", func(t *testing.T) {
		out := n.Normalize(Result{Mapped: map[string]any{"unit_mix": nil}})
		assert.Equal(t, []any{}, out.Mapped["unit_mix"])
	})

	t.Run("non-map scalar section yields all-nil group", func(t *testing.T) {
		out := n.Normalize(Result{Mapped: map[string]any{"growth": "3 percent across the board"}})
		growth := out.Mapped["growth"].(map[string]any)
		assert.Len(t, growth, 3)
		assert.Nil(t, growth["rent_growth"])
	})
}

func TestNormalizeMissingFields(t *testing.T) {
	n := testNormalizer(t)

	fullMapped := map[string]any{
		"growth": map[string]any{
			"rent_growth":    0.03,
			"expense_growth": 0.025,
			"vacancy":        0.05,
		},
		"timeline": map[string]any{
			"start_date": "2026-01-01",
			"hold_years": 7,
		},
	}

	t.Run("no entries when everything is populated", func(t *testing.T) {
		out := n.Normalize(Result{Mapped: fullMapped})
		assert.Empty(t, out.MissingFields)
	})

	t.Run("blank values are synthesized in schema order", func(t *testing.T) {
		out := n.Normalize(Result{Mapped: map[string]any{
			"growth": map[string]any{
				"rent_growth":    0.03,
				"expense_growth": "   ",
			},
			"timeline": map[string]any{
				"start_date": "2026-01-01",
				"hold_years": 7,
			},
		}})

		require.Len(t, out.MissingFields, 2)
		assert.Equal(t, "expense_growth", out.MissingFields[0].Field)
		assert.Equal(t, "vacancy", out.MissingFields[1].Field)
		for _, mf := range out.MissingFields {
			assert.Equal(t, "growth", mf.Section)
			assert.Equal(t, "Value missing after mapping", mf.Reason)
			assert.Equal(t, "Growth Assumptions", mf.SectionLabel)
		}
		assert.Equal(t, "Expense Growth", out.MissingFields[0].FieldLabel)
	})

	t.Run("upstream entries come first and suppress synthesis", func(t *testing.T) {
		upstream := []MissingField{{
			Section:    "timeline",
			Field:      "hold_years",
			Reason:     "Not found in source document",
			Confidence: "high",
		}}
		out := n.Normalize(Result{
			Mapped: map[string]any{
				"growth": fullMapped["growth"],
				"timeline": map[string]any{
					"start_date": "2026-01-01",
				},
			},
			MissingFields: upstream,
		})

		require.Len(t, out.MissingFields, 1)
		got := out.MissingFields[0]
		assert.Equal(t, "Not found in source document", got.Reason)
		assert.Equal(t, "high", got.Confidence)
		assert.Equal(t, "Project Timeline", got.SectionLabel)
		assert.Equal(t, "Hold Period (Years)", got.FieldLabel)
	})

	t.Run("unknown upstream coordinates are discarded", func(t *testing.T) {
		out := n.Normalize(Result{
			Mapped: fullMapped,
			MissingFields: []MissingField{
				{Section: "nope", Field: "rent_growth", Reason: "x"},
				{Section: "growth", Field: "nope", Reason: "x"},
			},
		})
		assert.Empty(t, out.MissingFields)
	})

	t.Run("table entries skip column validation", func(t *testing.T) {
		out := n.Normalize(Result{
			Mapped: fullMapped,
			MissingFields: []MissingField{
				{Section: "unit_mix", Field: "studio row", Reason: "Count not stated"},
			},
		})
		require.Len(t, out.MissingFields, 1)
		assert.Equal(t, "unit_mix", out.MissingFields[0].Section)
		assert.Equal(t, "Unit Mix", out.MissingFields[0].SectionLabel)
		assert.Empty(t, out.MissingFields[0].FieldLabel)
	})

	t.Run("duplicates collapse to the first entry", func(t *testing.T) {
		out := n.Normalize(Result{
			Mapped: fullMapped,
			MissingFields: []MissingField{
				{Section: "growth", Field: "rent_growth", Reason: "first"},
				{Section: "growth", Field: "rent_growth", Reason: "second"},
			},
		})
		require.Len(t, out.MissingFields, 1)
		assert.Equal(t, "first", out.MissingFields[0].Reason)
	})

	t.Run("empty table synthesizes nothing", func(t *testing.T) {
		out := n.Normalize(Result{Mapped: fullMapped})
		for _, mf := range out.MissingFields {
			assert.NotEqual(t, "unit_mix", mf.Section)
		}
	})
}

func TestNormalizeMetadata(t *testing.T) {
	n := testNormalizer(t)

	t.Run("timestamp is restamped from the clock", func(t *testing.T) {
		stale := time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)
		out := n.Normalize(Result{Metadata: Metadata{GeneratedAt: stale}})
		assert.Equal(t, time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC), out.Metadata.GeneratedAt)
	})

	t.Run("model version defaults to the schema fingerprint", func(t *testing.T) {
		reg, err := schema.Load([]byte(testSchema))
		require.NoError(t, err)

		out := n.Normalize(Result{})
		assert.Equal(t, reg.Fingerprint(), out.Metadata.ModelVersion)

		out = n.Normalize(Result{Metadata: Metadata{ModelVersion: "gemini-1.5-pro"}})
		assert.Equal(t, "gemini-1.5-pro", out.Metadata.ModelVersion)
	})

	t.Run("labels are always refreshed", func(t *testing.T) {
		out := n.Normalize(Result{Metadata: Metadata{
			SectionLabels: map[string]string{"growth": "Stale Label"},
		}})
		assert.Equal(t, "Growth Assumptions", out.Metadata.SectionLabels["growth"])
		assert.Equal(t, "Rent Growth", out.Metadata.FieldLabels["growth"]["rent_growth"])
	})

	t.Run("warnings survive", func(t *testing.T) {
		out := n.Normalize(Result{Metadata: Metadata{Warnings: []string{"low confidence on vacancy"}}})
		assert.Equal(t, []string{"low confidence on vacancy"}, out.Metadata.Warnings)
	})
}

func TestNormalizeIdempotent(t *testing.T) {
	n := testNormalizer(t)

	first := n.Normalize(Result{
		Mapped: map[string]any{
			"growth":   map[string]any{"rent_growth": 0.03},
			"unit_mix": []any{map[string]any{"unit_type": "2BR", "unit_count": 12}},
		},
		MissingFields: []MissingField{
			{Section: "timeline", Field: "start_date", Reason: "Not found"},
		},
	})
	second := n.Normalize(first)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("normalize is not idempotent (-first +second):\n%s", diff)
	}
}
