package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"
	"golang.org/x/sync/errgroup"

	"github.com/perpetuitylabs/underwritingflow/internal/export"
	"github.com/perpetuitylabs/underwritingflow/internal/gcp"
	"github.com/perpetuitylabs/underwritingflow/internal/mapping"
	"github.com/perpetuitylabs/underwritingflow/internal/models"
	"github.com/perpetuitylabs/underwritingflow/internal/schema"
	"github.com/perpetuitylabs/underwritingflow/internal/store"
)

// signedURLTTL bounds how long an export download link stays valid.
const signedURLTTL = 4 * time.Hour

// ExporterConfig holds configuration for the workbook-exporter service.
type ExporterConfig struct {
	ProjectID         string
	SessionCollection string
	TemplateBucket    string
	TemplateObject    string
	ExportBucket      string
}

// ExporterFunction projects a session's canonical mapping onto the model
// input template and publishes the filled workbook for download.
type ExporterFunction struct {
	storageClient *storage.Client
	sessions      *store.Sessions
	normalizer    *mapping.Normalizer
	config        ExporterConfig
}

// NewExporter creates a new ExporterFunction instance.
func NewExporter(ctx context.Context) (*ExporterFunction, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	config := ExporterConfig{
		ProjectID:         projectID,
		SessionCollection: gcp.GetEnv("SESSION_COLLECTION", "sessions"),
		TemplateBucket:    gcp.GetEnv("TEMPLATE_BUCKET", ""),
		TemplateObject:    gcp.GetEnv("TEMPLATE_OBJECT", "templates/model-input-sheet.xlsx"),
		ExportBucket:      gcp.GetEnv("EXPORT_BUCKET", ""),
	}
	if config.TemplateBucket == "" || config.ExportBucket == "" {
		return nil, fmt.Errorf("TEMPLATE_BUCKET and EXPORT_BUCKET must be set")
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	f := &ExporterFunction{
		storageClient: storageClient,
		sessions:      store.NewSessions(firestoreClient, config.SessionCollection),
		normalizer:    mapping.NewNormalizer(schema.Default()),
		config:        config,
	}
	slog.Info("Workbook exporter initialized.", "templateObject", config.TemplateObject)
	return f, nil
}

// Process fills the template for one session and returns a signed download
// URL plus the applied-field audit trail.
func (f *ExporterFunction) Process(ctx context.Context, req *models.WorkbookExporterRequest) (*models.WorkbookExporterResponse, error) {
	logCtx := slog.With("sessionId", req.SessionID)
	logCtx.Info("Starting workbook export.")

	session, err := f.sessions.Get(ctx, req.SessionID)
	if err != nil {
		logCtx.Error("Failed to load session", "error", err)
		return nil, err
	}
	if session.Mapping == nil {
		return nil, fmt.Errorf("session %s has no mapping; generate one before exporting", req.SessionID)
	}

	// Re-normalizing is cheap and guarantees the projected document conforms
	// to the current schema shape even if it was stored by an older revision.
	result := f.normalizer.Normalize(*session.Mapping)

	// The template is fetched fresh for every export: each call projects onto
	// its own private copy, so concurrent exports cannot interfere.
	template, err := gcp.ReadObject(ctx, f.storageClient.Bucket(f.config.TemplateBucket), f.config.TemplateObject)
	if err != nil {
		logCtx.Error("Template workbook unavailable", "error", err)
		return nil, fmt.Errorf("template workbook not found at gs://%s/%s: %w", f.config.TemplateBucket, f.config.TemplateObject, err)
	}

	filled, applied, err := export.Project(template, result)
	if err != nil {
		logCtx.Error("Projection failed", "error", err)
		return nil, err
	}
	logCtx.Info("Projection complete.", "appliedFieldCount", len(applied))

	exportObject := fmt.Sprintf("exports/%s/model-input.xlsx", req.SessionID)

	// Publish the artifact and persist the normalized mapping concurrently;
	// neither depends on the other.
	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return f.uploadExport(gctx, exportObject, filled)
	})
	eg.Go(func() error {
		return f.sessions.SetMapping(gctx, req.SessionID, result)
	})
	if err := eg.Wait(); err != nil {
		logCtx.Error("Failed to publish export", "error", err)
		return nil, err
	}

	downloadURL, err := gcp.SignedDownloadURL(f.storageClient.Bucket(f.config.ExportBucket), exportObject, signedURLTTL)
	if err != nil {
		logCtx.Error("Failed to sign download URL", "error", err)
		return nil, err
	}

	logCtx.Info("Export published.", "exportObject", exportObject)
	return &models.WorkbookExporterResponse{
		Status:        "success",
		DownloadURL:   downloadURL,
		AppliedFields: applied,
		MissingFields: result.MissingFields,
	}, nil
}

func (f *ExporterFunction) uploadExport(ctx context.Context, objectName string, content []byte) error {
	writer := f.storageClient.Bucket(f.config.ExportBucket).Object(objectName).NewWriter(ctx)
	writer.ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	if _, err := io.Copy(writer, bytes.NewReader(content)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to upload export artifact: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize export upload: %w", err)
	}
	return nil
}
