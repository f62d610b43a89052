package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/xuri/excelize/v2"

	"github.com/perpetuitylabs/underwritingflow/internal/gcp"
	"github.com/perpetuitylabs/underwritingflow/internal/models"
	"github.com/perpetuitylabs/underwritingflow/internal/store"
)

// RegistrarConfig holds configuration for the workbook-registrar service.
type RegistrarConfig struct {
	ProjectID          string
	WorkbookCollection string
}

// RegistrarFunction registers uploaded workbooks: it fingerprints the file,
// discovers its visible sheets and creates the Firestore record the rest of
// the pipeline keys off.
type RegistrarFunction struct {
	storageClient *storage.Client
	workbooks     *store.Workbooks
	config        RegistrarConfig
}

// GCSEvent is the subset of the storage event payload the registrar needs.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// NewRegistrar creates a new RegistrarFunction instance.
func NewRegistrar(ctx context.Context) (*RegistrarFunction, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	config := RegistrarConfig{
		ProjectID:          projectID,
		WorkbookCollection: gcp.GetEnv("WORKBOOK_COLLECTION", "workbooks"),
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	f := &RegistrarFunction{
		storageClient: storageClient,
		workbooks:     store.NewWorkbooks(firestoreClient, config.WorkbookCollection),
		config:        config,
	}
	slog.Info("Workbook registrar initialized.", "collection", config.WorkbookCollection)
	return f, nil
}

// Process handles one uploaded workbook object.
func (f *RegistrarFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	logCtx.Info("Processing uploaded workbook.")

	if !isWorkbookObject(e.Name) {
		logCtx.Info("Object is not a workbook. Skipping.")
		return nil
	}

	tmpPath, err := gcp.DownloadToTemp(ctx, f.storageClient.Bucket(e.Bucket), e.Name, "workbook-*.xlsx")
	if err != nil {
		logCtx.Error("Failed to download workbook", "error", err)
		return err
	}
	defer os.Remove(tmpPath)

	fileHash, err := hashFile(tmpPath)
	if err != nil {
		logCtx.Error("Failed to hash workbook", "error", err)
		return fmt.Errorf("failed to calculate file hash: %w", err)
	}
	logCtx = logCtx.With("fileHash", fileHash)

	existingID, err := f.workbooks.FindByHash(ctx, fileHash)
	if err != nil {
		logCtx.Error("Duplicate check failed", "error", err)
		return err
	}
	if existingID != "" {
		logCtx.Info("Duplicate workbook detected. Skipping.", "existingWorkbookId", existingID)
		return nil
	}

	sheets, err := visibleSheets(tmpPath)
	if err != nil {
		logCtx.Error("Failed to read workbook sheets", "error", err)
		return err
	}

	workbookID, err := f.workbooks.Create(ctx, models.Workbook{
		FileHash:  fileHash,
		Filename:  e.Name,
		GCSBucket: e.Bucket,
		GCSObject: e.Name,
		Sheets:    sheets,
		Status:    "REGISTERED",
	})
	if err != nil {
		logCtx.Error("Failed to create workbook record", "error", err)
		return err
	}

	logCtx.Info("Workbook registered.", "workbookId", workbookID, "sheetCount", len(sheets))
	return nil
}

// visibleSheets lists the sheets an analyst actually sees, matching what the
// UI will offer for extraction.
func visibleSheets(path string) ([]string, error) {
	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer book.Close()

	var sheets []string
	for _, name := range book.GetSheetList() {
		visible, err := book.GetSheetVisible(name)
		if err != nil || !visible {
			continue
		}
		sheets = append(sheets, name)
	}
	return sheets, nil
}

func isWorkbookObject(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".xlsx") || strings.HasSuffix(lower, ".xlsm")
}

func hashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
