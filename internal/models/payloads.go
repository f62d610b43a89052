package models

import (
	"github.com/perpetuitylabs/underwritingflow/internal/export"
	"github.com/perpetuitylabs/underwritingflow/internal/mapping"
)

// These structs define the JSON payloads for HTTP requests and responses
// between the orchestrating workflow/UI and the worker Cloud Functions.

// SheetExtractorRequest is the input for the sheet-extractor function.
// SheetText optionally carries the sheet's plain-text grid; when present the
// extraction runs against it directly instead of the rendered PDF, and
// source-text snippets are computed for each extracted value. PDFObject
// optionally names a freshly rendered sheet PDF to record on the workbook
// before extracting.
type SheetExtractorRequest struct {
	WorkbookID string `json:"workbookId"`
	SheetName  string `json:"sheetName"`
	SheetText  string `json:"sheetText,omitempty"`
	PDFObject  string `json:"pdfObject,omitempty"`
}

// SheetExtractorResponse is the output of the sheet-extractor function.
type SheetExtractorResponse struct {
	Status         string         `json:"status"`
	SessionID      string         `json:"sessionId"`
	ExtractedJSON  map[string]any `json:"extractedJson"`
	Confidences    map[string]any `json:"confidences,omitempty"`
	InferredTables []string       `json:"inferredTables,omitempty"`
	Warnings       []string       `json:"warnings,omitempty"`
}

// MappingGeneratorRequest is the input for the mapping-generator function.
// When Mapping is nil the function generates a fresh mapping from the
// session's extracted data; otherwise it normalizes and saves the supplied
// payload. FinalJSON optionally carries analyst-edited section data, which is
// persisted on the session first and takes precedence as the mapping source.
type MappingGeneratorRequest struct {
	SessionID string          `json:"sessionId"`
	Mapping   *mapping.Result `json:"mapping,omitempty"`
	FinalJSON map[string]any  `json:"finalJson,omitempty"`
}

// MappingGeneratorResponse is the output of the mapping-generator function.
type MappingGeneratorResponse struct {
	Status  string         `json:"status"`
	Mapping mapping.Result `json:"mapping"`
}

// WorkbookExporterRequest is the input for the workbook-exporter function.
type WorkbookExporterRequest struct {
	SessionID string `json:"sessionId"`
}

// WorkbookExporterResponse is the output of the workbook-exporter function.
type WorkbookExporterResponse struct {
	Status        string                 `json:"status"`
	DownloadURL   string                 `json:"downloadUrl"`
	AppliedFields []export.AppliedField  `json:"appliedFields"`
	MissingFields []mapping.MissingField `json:"missingFields,omitempty"`
}
