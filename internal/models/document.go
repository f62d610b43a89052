package models

import (
	"time"

	"github.com/perpetuitylabs/underwritingflow/internal/extract"
	"github.com/perpetuitylabs/underwritingflow/internal/mapping"
)

// Workbook is the Firestore record for an uploaded source workbook.
type Workbook struct {
	FileHash     string            `firestore:"fileHash,omitempty"`
	Filename     string            `firestore:"filename,omitempty"`
	GCSBucket    string            `firestore:"gcsBucket,omitempty"`
	GCSObject    string            `firestore:"gcsObject,omitempty"`
	Sheets       []string          `firestore:"sheets,omitempty"`
	SheetPDFs    map[string]string `firestore:"sheetPdfs,omitempty"` // sheet name -> rendered PDF GCS object
	Status       string            `firestore:"status,omitempty"`
	ErrorDetails string            `firestore:"errorDetails,omitempty"`
	CreatedAt    time.Time         `firestore:"createdAt,omitempty"`
	UpdatedAt    time.Time         `firestore:"updatedAt,omitempty"`
}

// Session is the Firestore record for one extraction-to-export run against a
// single workbook sheet. The mapping payload and its missing-field report are
// written together, never independently.
type Session struct {
	WorkbookID string          `firestore:"workbookId,omitempty"`
	SheetName  string          `firestore:"sheetName,omitempty"`
	PDFObject  string          `firestore:"pdfObject,omitempty"`
	Extraction extract.Result  `firestore:"extraction,omitempty"`
	FinalJSON  map[string]any  `firestore:"finalJson,omitempty"`
	Mapping    *mapping.Result `firestore:"mapping,omitempty"`
	CreatedAt  time.Time       `firestore:"createdAt,omitempty"`
	UpdatedAt  time.Time       `firestore:"updatedAt,omitempty"`
}

// SourceData returns the best available section data for mapping: analyst
// edits win over the raw extraction.
func (s *Session) SourceData() map[string]any {
	if len(s.FinalJSON) > 0 {
		return s.FinalJSON
	}
	return s.Extraction.Data
}
