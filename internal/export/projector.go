package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/perpetuitylabs/underwritingflow/internal/mapping"
)

// AppliedField records one cell write for the export audit trail. Value is
// the canonical (pre-coercion) value so the trail reads like the document.
type AppliedField struct {
	Section string `json:"table" firestore:"table"`
	Field   string `json:"field" firestore:"field"`
	Cell    string `json:"cell" firestore:"cell"`
	Value   any    `json:"value" firestore:"value"`
}

// Project writes a canonical document into a private copy of the template
// workbook and returns the filled bytes plus the ordered applied-field trail.
//
// Template formulas are protected content: a cell holding a formula is never
// overwritten and never appears in the trail. Table row bands are cleared
// before writing so re-exporting fewer rows leaves nothing stale behind.
// Per-cell trouble is tolerated by skipping the cell; a partial export beats
// no export.
func Project(template []byte, result mapping.Result) ([]byte, []AppliedField, error) {
	book, err := excelize.OpenReader(bytes.NewReader(template))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open template workbook: %w", err)
	}
	defer book.Close()

	idx, err := book.GetSheetIndex(TargetSheetName)
	if err != nil || idx < 0 {
		return nil, nil, fmt.Errorf("sheet %q not found in template", TargetSheetName)
	}

	var applied []AppliedField
	applyScalars(book, result.Mapped, &applied)
	for _, band := range tableBands {
		applyBand(book, band, result.Mapped, &applied)
	}

	buf, err := book.WriteToBuffer()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to serialize filled workbook: %w", err)
	}
	return buf.Bytes(), applied, nil
}

func applyScalars(book *excelize.File, mapped map[string]any, applied *[]AppliedField) {
	for _, target := range scalarCells {
		group, ok := mapped[target.Section].(map[string]any)
		if !ok {
			continue
		}
		raw := group[target.Field]
		coerced := Coerce(raw)
		if coerced == nil {
			// Leave whatever the template holds; a null never clears a cell.
			continue
		}
		if isFormulaCell(book, target.Cell) {
			continue
		}
		if err := book.SetCellValue(TargetSheetName, target.Cell, coerced); err != nil {
			continue
		}
		*applied = append(*applied, AppliedField{
			Section: target.Section,
			Field:   target.Field,
			Cell:    target.Cell,
			Value:   raw,
		})
	}
}

func applyBand(book *excelize.File, band TableBand, mapped map[string]any, applied *[]AppliedField) {
	rows := tableRows(mapped[band.Section])
	if len(rows) == 0 {
		return
	}

	clearBand(book, band)

	if len(rows) > band.MaxRows {
		// The template has a fixed number of printable rows; overflow rows
		// are dropped rather than treated as an error.
		rows = rows[:band.MaxRows]
	}
	for i, row := range rows {
		if row == nil {
			continue
		}
		targetRow := band.StartRow + i
		for _, col := range band.Columns {
			raw, present := row[col.Field]
			if !present {
				continue
			}
			cell := fmt.Sprintf("%s%d", col.Column, targetRow)

			var value any
			if col.Text {
				if raw == nil || raw == "" {
					continue
				}
				value = fmt.Sprint(raw)
			} else {
				value = Coerce(raw)
				if value == nil {
					continue
				}
			}
			if isFormulaCell(book, cell) {
				continue
			}
			if err := book.SetCellValue(TargetSheetName, cell, value); err != nil {
				continue
			}
			*applied = append(*applied, AppliedField{
				Section: band.Section,
				Field:   col.Field,
				Cell:    cell,
				Value:   raw,
			})
		}
	}
}

// clearBand blanks every non-formula cell in the band's row range so a
// shrinking re-export cannot leave rows from a previous run behind.
func clearBand(book *excelize.File, band TableBand) {
	for offset := 0; offset < band.MaxRows; offset++ {
		row := band.StartRow + offset
		for _, letter := range band.columnLetters() {
			cell := fmt.Sprintf("%s%d", letter, row)
			if isFormulaCell(book, cell) {
				continue
			}
			_ = book.SetCellValue(TargetSheetName, cell, nil)
		}
	}
}

// isFormulaCell treats a cell as a formula if the workbook says so, or if its
// stored value starts with "=". The second check covers cells whose type
// metadata was lost on a save/reload round trip.
func isFormulaCell(book *excelize.File, cell string) bool {
	if formula, err := book.GetCellFormula(TargetSheetName, cell); err == nil && formula != "" {
		return true
	}
	value, err := book.GetCellValue(TargetSheetName, cell)
	if err != nil {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(value), "=")
}

// tableRows extracts the row objects from a table section value, tolerating
// the shapes a JSON decode or a hand-built document can produce. Malformed
// rows come back as nil so later rows keep their positions in the band.
func tableRows(value any) []map[string]any {
	switch rows := value.(type) {
	case []map[string]any:
		return rows
	case []any:
		out := make([]map[string]any, len(rows))
		for i, r := range rows {
			if m, ok := r.(map[string]any); ok {
				out[i] = m
			}
		}
		return out
	default:
		return nil
	}
}
