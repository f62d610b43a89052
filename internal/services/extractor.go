package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/storage"
	"cloud.google.com/go/vertexai/genai"
	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/perpetuitylabs/underwritingflow/internal/extract"
	"github.com/perpetuitylabs/underwritingflow/internal/gcp"
	"github.com/perpetuitylabs/underwritingflow/internal/jsonrepair"
	"github.com/perpetuitylabs/underwritingflow/internal/models"
	"github.com/perpetuitylabs/underwritingflow/internal/store"
)

// ExtractorConfig holds configuration for the sheet-extractor service.
type ExtractorConfig struct {
	ProjectID          string
	VertexAIRegion     string
	WorkbookCollection string
	SessionCollection  string
	WorkflowID         string
	WorkflowLocation   string
}

// ExtractorFunction pulls raw section data out of a rendered sheet PDF via
// the extraction model and opens a new session with the result.
type ExtractorFunction struct {
	storageClient    *storage.Client
	vertexClient     *gcp.VertexClient
	executionsClient *executions.Client
	workbooks        *store.Workbooks
	sessions         *store.Sessions
	config           ExtractorConfig
}

// NewExtractor creates a new ExtractorFunction instance.
func NewExtractor(ctx context.Context) (*ExtractorFunction, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	config := ExtractorConfig{
		ProjectID:          projectID,
		VertexAIRegion:     gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		WorkbookCollection: gcp.GetEnv("WORKBOOK_COLLECTION", "workbooks"),
		SessionCollection:  gcp.GetEnv("SESSION_COLLECTION", "sessions"),
		WorkflowLocation:   gcp.GetEnv("WORKFLOW_LOCATION", "us-central1"),
		WorkflowID:         gcp.GetEnv("WORKFLOW_ID", "underwriting-mapping-orchestrator"),
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	vertexClient, err := gcp.NewVertexClient(ctx, config.ProjectID, config.VertexAIRegion)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", err)
	}
	executionsClient, err := executions.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
	}

	return &ExtractorFunction{
		storageClient:    storageClient,
		vertexClient:     vertexClient,
		executionsClient: executionsClient,
		workbooks:        store.NewWorkbooks(firestoreClient, config.WorkbookCollection),
		sessions:         store.NewSessions(firestoreClient, config.SessionCollection),
		config:           config,
	}, nil
}

// Process extracts section data for one workbook sheet and opens a session.
func (f *ExtractorFunction) Process(ctx context.Context, req *models.SheetExtractorRequest) (*models.SheetExtractorResponse, error) {
	logCtx := slog.With("workbookId", req.WorkbookID, "sheetName", req.SheetName)
	logCtx.Info("Starting sheet extraction.")

	workbook, err := f.workbooks.Get(ctx, req.WorkbookID)
	if err != nil {
		logCtx.Error("Failed to load workbook", "error", err)
		return nil, err
	}
	if req.PDFObject != "" {
		if err := f.workbooks.SetSheetPDF(ctx, req.WorkbookID, req.SheetName, req.PDFObject); err != nil {
			logCtx.Error("Failed to record sheet PDF", "error", err)
			return nil, err
		}
		if workbook.SheetPDFs == nil {
			workbook.SheetPDFs = map[string]string{}
		}
		workbook.SheetPDFs[req.SheetName] = req.PDFObject
	}
	pdfObject := workbook.SheetPDFs[req.SheetName]
	if pdfObject == "" && req.SheetText == "" {
		return nil, fmt.Errorf("no rendered PDF for sheet %q; convert the sheet first or supply sheetText", req.SheetName)
	}

	// --- 1. Run the extraction model ---
	var parts []genai.Part
	if req.SheetText != "" {
		parts = []genai.Part{
			genai.Text(gcp.ExtractionUserPrompt),
			genai.Text("\n\n---\n\nDOCUMENT TEXT:\n\n" + req.SheetText),
		}
	} else {
		// Validate the rendered PDF before spending a model call on it.
		if err := f.validatePDF(ctx, logCtx, workbook.GCSBucket, pdfObject); err != nil {
			return nil, err
		}
		gcsURI := fmt.Sprintf("gs://%s/%s", workbook.GCSBucket, pdfObject)
		parts = []genai.Part{
			genai.FileData{MIMEType: "application/pdf", FileURI: gcsURI},
			genai.Text(gcp.ExtractionUserPrompt),
		}
	}

	resp, err := f.vertexClient.ExtractionModel.GenerateContent(ctx, parts...)
	if err != nil {
		logCtx.Error("Extraction model call failed", "error", err)
		if statusErr := f.workbooks.SetStatus(ctx, req.WorkbookID, "EXTRACTION_FAILED", err.Error()); statusErr != nil {
			logCtx.Warn("Failed to record failure status", "error", statusErr)
		}
		return nil, fmt.Errorf("failed to extract sheet data: %w", err)
	}

	raw := gcp.ResponseText(resp)
	data := jsonrepair.Lenient(raw)
	if len(data) == 0 {
		err := fmt.Errorf("extraction produced no usable JSON: %q", jsonrepair.Snippet(raw, 200))
		logCtx.Error("Unusable extraction payload", "error", err)
		return nil, err
	}

	// --- 2. Grade and persist the extraction as a new session ---
	result := extract.Result{
		Data:             data,
		Confidences:      extract.Confidences(data),
		InferredSections: extract.InferredSections(data),
	}
	if req.SheetText != "" {
		result.Snippets = extract.Snippets(data, req.SheetText)
	}

	sessionID, err := f.sessions.Create(ctx, models.Session{
		WorkbookID: req.WorkbookID,
		SheetName:  req.SheetName,
		PDFObject:  pdfObject,
		Extraction: result,
	})
	if err != nil {
		logCtx.Error("Failed to create session", "error", err)
		return nil, err
	}
	logCtx = logCtx.With("sessionId", sessionID)
	logCtx.Info("Session created.", "sectionCount", len(data))

	// Archive the raw model payload next to the workbook for audit. The
	// session ID is fresh, so the conditional write only ever skips a retried
	// invocation racing itself.
	archiveObject := fmt.Sprintf("extractions/%s.json", sessionID)
	if err := gcp.SaveToGCSAtomically(ctx, f.storageClient.Bucket(workbook.GCSBucket), archiveObject, []byte(raw)); err != nil {
		logCtx.Warn("Failed to archive raw extraction payload", "error", err)
	}

	if err := f.workbooks.SetStatus(ctx, req.WorkbookID, "EXTRACTED", ""); err != nil {
		logCtx.Warn("Failed to update workbook status", "error", err)
	}

	// --- 3. Hand off to the mapping workflow ---
	if err := f.triggerMappingWorkflow(ctx, logCtx, sessionID); err != nil {
		// The session is usable without the workflow; mapping can be run
		// manually, so this is logged but not fatal.
		logCtx.Warn("Failed to trigger mapping workflow", "error", err)
	}

	return &models.SheetExtractorResponse{
		Status:         "success",
		SessionID:      sessionID,
		ExtractedJSON:  result.Data,
		Confidences:    result.Confidences,
		InferredTables: result.InferredSections,
		Warnings:       result.Warnings,
	}, nil
}

// validatePDF downloads the rendered sheet PDF and confirms pdfcpu can read
// it, rejecting empty or truncated renders early.
func (f *ExtractorFunction) validatePDF(ctx context.Context, logCtx *slog.Logger, bucket, object string) error {
	tmpPath, err := gcp.DownloadToTemp(ctx, f.storageClient.Bucket(bucket), object, "sheet-*.pdf")
	if err != nil {
		logCtx.Error("Failed to download sheet PDF", "error", err)
		return err
	}
	defer os.Remove(tmpPath)

	pageCount, err := api.PageCountFile(tmpPath)
	if err != nil {
		return fmt.Errorf("rendered sheet PDF is unreadable: %w", err)
	}
	if pageCount == 0 {
		return fmt.Errorf("rendered sheet PDF has no pages")
	}
	logCtx.Info("Sheet PDF validated.", "pageCount", pageCount)
	return nil
}

func (f *ExtractorFunction) triggerMappingWorkflow(ctx context.Context, logCtx *slog.Logger, sessionID string) error {
	payload, err := json.Marshal(map[string]any{"sessionId": sessionID})
	if err != nil {
		return fmt.Errorf("failed to marshal workflow payload: %w", err)
	}
	req := &executionspb.CreateExecutionRequest{
		Parent: fmt.Sprintf("projects/%s/locations/%s/workflows/%s", f.config.ProjectID, f.config.WorkflowLocation, f.config.WorkflowID),
		Execution: &executionspb.Execution{
			Argument: string(payload),
		},
	}
	if _, err := f.executionsClient.CreateExecution(ctx, req); err != nil {
		return fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	logCtx.Info("Mapping workflow triggered.", "workflowId", f.config.WorkflowID)
	return nil
}
