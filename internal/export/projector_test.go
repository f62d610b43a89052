package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/perpetuitylabs/underwritingflow/internal/mapping"
)

// buildTemplate produces a minimal workbook with the target input tab, a few
// formula cells and some stale band content left over from a previous fill.
func buildTemplate(t *testing.T) []byte {
	t.Helper()
	book := excelize.NewFile()
	defer book.Close()

	_, err := book.NewSheet(TargetSheetName)
	require.NoError(t, err)

	// Formula cells that writes must never touch.
	require.NoError(t, book.SetCellFormula(TargetSheetName, "I35", "SUM(B1:B4)"))
	require.NoError(t, book.SetCellFormula(TargetSheetName, "I24", "I23*12"))
	// A cell whose formula survives only as a literal "=" value.
	require.NoError(t, book.SetCellValue(TargetSheetName, "C22", "=Assumptions!B2"))

	// Stale unit-mix rows from an earlier, larger export.
	for row := 23; row <= 26; row++ {
		require.NoError(t, book.SetCellValue(TargetSheetName, cell("H", row), "stale"))
		require.NoError(t, book.SetCellValue(TargetSheetName, cell("J", row), 999))
	}

	// A template default that a null canonical value must not clear.
	require.NoError(t, book.SetCellValue(TargetSheetName, "C11", "TBD"))

	buf, err := book.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func cell(column string, row int) string {
	ref, _ := excelize.JoinCellName(column, row)
	return ref
}

func reopen(t *testing.T, filled []byte) *excelize.File {
	t.Helper()
	book, err := excelize.OpenReader(bytes.NewReader(filled))
	require.NoError(t, err)
	t.Cleanup(func() { book.Close() })
	return book
}

func cellValue(t *testing.T, book *excelize.File, ref string) string {
	t.Helper()
	v, err := book.GetCellValue(TargetSheetName, ref)
	require.NoError(t, err)
	return v
}

func TestProjectMissingSheet(t *testing.T) {
	book := excelize.NewFile()
	defer book.Close()
	buf, err := book.WriteToBuffer()
	require.NoError(t, err)

	_, _, err = Project(buf.Bytes(), mapping.Result{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), TargetSheetName)
}

func TestProjectScalars(t *testing.T) {
	template := buildTemplate(t)

	result := mapping.Result{Mapped: map[string]any{
		"growth_assumptions": map[string]any{
			"market_rent_growth": "3%",
			"taxes_growth":       0.02,
		},
		"project_timeline": map[string]any{
			"land_closing_date": nil,
		},
		"senior_loan_terms": map[string]any{
			"interest_type":    "Floating",
			"loan_to_cost_pct": "65%",
		},
	}}

	filled, applied, err := Project(template, result)
	require.NoError(t, err)
	book := reopen(t, filled)

	// I35 holds a formula and is protected even though market_rent_growth
	// targets it.
	formula, err := book.GetCellFormula(TargetSheetName, "I35")
	require.NoError(t, err)
	assert.Equal(t, "SUM(B1:B4)", formula)

	assert.Equal(t, "0.02", cellValue(t, book, "I39"))
	assert.Equal(t, "Floating", cellValue(t, book, "F6"))
	assert.Equal(t, "0.65", cellValue(t, book, "F5"))

	// A nil value leaves the template default in place.
	assert.Equal(t, "TBD", cellValue(t, book, "C11"))

	// The trail records canonical coordinates and raw (pre-coercion) values,
	// and excludes the protected and nil targets.
	cells := map[string]AppliedField{}
	for _, a := range applied {
		cells[a.Cell] = a
	}
	assert.NotContains(t, cells, "I35")
	assert.NotContains(t, cells, "C11")
	require.Contains(t, cells, "F5")
	assert.Equal(t, "senior_loan_terms", cells["F5"].Section)
	assert.Equal(t, "loan_to_cost_pct", cells["F5"].Field)
	assert.Equal(t, "65%", cells["F5"].Value)
}

func TestProjectValuePrefixedFormula(t *testing.T) {
	template := buildTemplate(t)

	result := mapping.Result{Mapped: map[string]any{
		"revenue_and_leaseup": map[string]any{"vacancy_pct": "5%"},
	}}

	filled, applied, err := Project(template, result)
	require.NoError(t, err)
	book := reopen(t, filled)

	// C22 stores "=Assumptions!B2" as a plain value; the "=" prefix still
	// marks it protected.
	assert.Equal(t, "=Assumptions!B2", cellValue(t, book, "C22"))
	assert.Empty(t, applied)
}

func TestProjectTableBand(t *testing.T) {
	template := buildTemplate(t)

	result := mapping.Result{Mapped: map[string]any{
		"unit_mix": []any{
			map[string]any{"unit_type": "Studio", "num_units": 10, "avg_sf": 520, "rent": "1,450"},
			map[string]any{"unit_type": "1BR", "original_label": "1 Bed / 1 Bath", "num_units": 24},
		},
	}}

	filled, applied, err := Project(template, result)
	require.NoError(t, err)
	book := reopen(t, filled)

	assert.Equal(t, "Studio", cellValue(t, book, "H23"))
	assert.Equal(t, "10", cellValue(t, book, "I23"))
	assert.Equal(t, "520", cellValue(t, book, "J23"))
	assert.Equal(t, "1450", cellValue(t, book, "K23"))

	// original_label is written after unit_type into the same column and wins.
	assert.Equal(t, "1 Bed / 1 Bath", cellValue(t, book, "H24"))

	// Rows beyond the new data were stale in the template and must be blank.
	for row := 25; row <= 26; row++ {
		assert.Empty(t, cellValue(t, book, cell("H", row)), "H%d not cleared", row)
		assert.Empty(t, cellValue(t, book, cell("J", row)), "J%d not cleared", row)
	}

	// No duplicate trail entry for the overwritten H24.
	h24 := 0
	for _, a := range applied {
		if a.Cell == "H24" {
			h24++
		}
	}
	assert.Equal(t, 2, h24, "unit_type and original_label both record H24")
}

func TestProjectTableBandEdgeCases(t *testing.T) {
	t.Run("formula row cell survives clearing and writing", func(t *testing.T) {
		template := buildTemplate(t)
		result := mapping.Result{Mapped: map[string]any{
			"unit_mix": []any{
				map[string]any{"unit_type": "A", "num_units": 1},
				map[string]any{"unit_type": "B", "num_units": 2},
			},
		}}

		filled, _, err := Project(template, result)
		require.NoError(t, err)
		book := reopen(t, filled)

		formula, err := book.GetCellFormula(TargetSheetName, "I24")
		require.NoError(t, err)
		assert.Equal(t, "I23*12", formula)
	})

	t.Run("malformed row keeps later rows in place", func(t *testing.T) {
		template := buildTemplate(t)
		result := mapping.Result{Mapped: map[string]any{
			"unit_mix": []any{
				map[string]any{"unit_type": "A"},
				"not a row object",
				map[string]any{"unit_type": "C"},
			},
		}}

		filled, _, err := Project(template, result)
		require.NoError(t, err)
		book := reopen(t, filled)

		assert.Equal(t, "A", cellValue(t, book, "H23"))
		assert.Empty(t, cellValue(t, book, "H24"))
		assert.Equal(t, "C", cellValue(t, book, "H25"))
	})

	t.Run("overflow rows are dropped", func(t *testing.T) {
		template := buildTemplate(t)
		rows := make([]any, 0, 8)
		for i := 0; i < 8; i++ {
			rows = append(rows, map[string]any{"unit_type": "T", "num_units": i + 1})
		}
		result := mapping.Result{Mapped: map[string]any{"unit_mix": rows}}

		filled, _, err := Project(template, result)
		require.NoError(t, err)
		book := reopen(t, filled)

		// Band is 6 rows starting at 23; row 29 is outside and stays empty.
		assert.Equal(t, "T", cellValue(t, book, "H28"))
		assert.Empty(t, cellValue(t, book, "H29"))
	})

	t.Run("empty table leaves stale template content alone", func(t *testing.T) {
		template := buildTemplate(t)
		result := mapping.Result{Mapped: map[string]any{"unit_mix": []any{}}}

		filled, _, err := Project(template, result)
		require.NoError(t, err)
		book := reopen(t, filled)

		// No rows means no clearing pass: the template keeps its content.
		assert.Equal(t, "stale", cellValue(t, book, "H23"))
	})

	t.Run("text column keeps labels verbatim", func(t *testing.T) {
		template := buildTemplate(t)
		result := mapping.Result{Mapped: map[string]any{
			"other_income": []any{
				map[string]any{"item_name": "1,200", "amount_per_month": "1,200"},
			},
		}}

		filled, _, err := Project(template, result)
		require.NoError(t, err)
		book := reopen(t, filled)

		assert.Equal(t, "1,200", cellValue(t, book, "B70"), "text column bypasses coercion")
		assert.Equal(t, "1200", cellValue(t, book, "D70"), "numeric column coerces")
	})
}

func TestProjectIdempotentReExport(t *testing.T) {
	template := buildTemplate(t)

	large := mapping.Result{Mapped: map[string]any{
		"unit_mix": []any{
			map[string]any{"unit_type": "A", "num_units": 1},
			map[string]any{"unit_type": "B", "num_units": 2},
			map[string]any{"unit_type": "C", "num_units": 3},
		},
	}}
	small := mapping.Result{Mapped: map[string]any{
		"unit_mix": []any{
			map[string]any{"unit_type": "Z", "num_units": 9},
		},
	}}

	firstPass, _, err := Project(template, large)
	require.NoError(t, err)
	secondPass, _, err := Project(firstPass, small)
	require.NoError(t, err)
	book := reopen(t, secondPass)

	assert.Equal(t, "Z", cellValue(t, book, "H23"))
	for row := 24; row <= 28; row++ {
		assert.Empty(t, cellValue(t, book, cell("H", row)), "H%d holds residue", row)
		assert.Empty(t, cellValue(t, book, cell("I", row)), "I%d holds residue", row)
	}
}
