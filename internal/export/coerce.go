// Package export projects canonical underwriting documents onto the fixed
// cell grid of the model input template and coerces human-typed values into
// what a spreadsheet cell expects.
package export

import (
	"strconv"
	"strings"
	"time"
)

// excelEpoch is day zero of the 1900 date system (with the Lotus leap-year
// bug already accounted for, hence Dec 30 rather than Dec 31).
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// Coerce converts a raw canonical value into the representation a cell
// expects: a number, an Excel date serial, a bool, free text, or nil.
// It never fails; anything ambiguous falls back to the trimmed original
// string so free-text fields (e.g. an interest-rate-type label) survive.
func Coerce(raw any) any {
	switch v := raw.(type) {
	case nil:
		return nil
	case bool:
		return v
	case int:
		return v
	case int64:
		return v
	case float32:
		return float64(v)
	case float64:
		return v
	case time.Time:
		return dateSerial(v)
	case string:
		return coerceString(v)
	default:
		return raw
	}
}

func coerceString(value string) any {
	text := strings.TrimSpace(value)
	if text == "" {
		return nil
	}

	// Percent strings like "6%" -> 0.06.
	if strings.HasSuffix(text, "%") {
		numeric := strings.ReplaceAll(strings.TrimSuffix(text, "%"), ",", "")
		if f, err := strconv.ParseFloat(strings.TrimSpace(numeric), 64); err == nil {
			return f / 100.0
		}
		return text
	}

	// Currency and accounting notation: "$4,500", "(1,200)".
	cleaned := strings.ReplaceAll(text, ",", "")
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		cleaned = "-" + cleaned[1:len(cleaned)-1]
	}
	if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return f
	}

	if t, ok := parseISODate(text); ok {
		return dateSerial(t)
	}
	return text
}

func parseISODate(text string) (time.Time, bool) {
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// dateSerial converts a timestamp to the Excel day-count serial, keeping the
// intra-day fraction for datetimes.
func dateSerial(t time.Time) float64 {
	return t.UTC().Sub(excelEpoch).Hours() / 24.0
}
