package services

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/vertexai/genai"

	"github.com/perpetuitylabs/underwritingflow/internal/gcp"
	"github.com/perpetuitylabs/underwritingflow/internal/mapping"
	"github.com/perpetuitylabs/underwritingflow/internal/models"
	"github.com/perpetuitylabs/underwritingflow/internal/schema"
	"github.com/perpetuitylabs/underwritingflow/internal/store"
)

// MapperConfig holds configuration for the mapping-generator service.
type MapperConfig struct {
	ProjectID         string
	VertexAIRegion    string
	SessionCollection string
}

// MapperFunction produces the canonical mapping for a session, either by
// asking the mapping model or by normalizing a payload edited by the analyst.
type MapperFunction struct {
	vertexClient *gcp.VertexClient
	sessions     *store.Sessions
	normalizer   *mapping.Normalizer
	registry     *schema.Registry
	config       MapperConfig
}

// NewMapper creates a new MapperFunction instance.
func NewMapper(ctx context.Context) (*MapperFunction, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	config := MapperConfig{
		ProjectID:         projectID,
		VertexAIRegion:    gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		SessionCollection: gcp.GetEnv("SESSION_COLLECTION", "sessions"),
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	vertexClient, err := gcp.NewVertexClient(ctx, config.ProjectID, config.VertexAIRegion)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", err)
	}

	registry := schema.Default()
	return &MapperFunction{
		vertexClient: vertexClient,
		sessions:     store.NewSessions(firestoreClient, config.SessionCollection),
		normalizer:   mapping.NewNormalizer(registry),
		registry:     registry,
		config:       config,
	}, nil
}

// Process generates or normalizes the mapping for one session and persists
// the canonical document together with its missing-field report.
func (f *MapperFunction) Process(ctx context.Context, req *models.MappingGeneratorRequest) (*models.MappingGeneratorResponse, error) {
	logCtx := slog.With("sessionId", req.SessionID)

	if req.FinalJSON != nil {
		// Analyst edits are persisted before mapping so generate() sees them
		// as the preferred source data.
		if err := f.sessions.SetFinalJSON(ctx, req.SessionID, req.FinalJSON); err != nil {
			logCtx.Error("Failed to persist edited section data", "error", err)
			return nil, err
		}
		logCtx.Info("Edited section data stored.", "sectionCount", len(req.FinalJSON))
	}

	var result mapping.Result
	if req.Mapping != nil {
		// Analyst-edited payload: normalize before persisting so the stored
		// document always conforms to the schema shape.
		logCtx.Info("Normalizing caller-supplied mapping.")
		result = f.normalizer.Normalize(*req.Mapping)
	} else {
		generated, err := f.generate(ctx, logCtx, req.SessionID)
		if err != nil {
			return nil, err
		}
		result = generated
	}

	if err := f.sessions.SetMapping(ctx, req.SessionID, result); err != nil {
		logCtx.Error("Failed to persist mapping", "error", err)
		return nil, err
	}
	logCtx.Info("Mapping stored.", "missingFieldCount", len(result.MissingFields))

	return &models.MappingGeneratorResponse{Status: "success", Mapping: result}, nil
}

func (f *MapperFunction) generate(ctx context.Context, logCtx *slog.Logger, sessionID string) (mapping.Result, error) {
	session, err := f.sessions.Get(ctx, sessionID)
	if err != nil {
		logCtx.Error("Failed to load session", "error", err)
		return mapping.Result{}, err
	}
	source := session.SourceData()
	if len(source) == 0 {
		return mapping.Result{}, fmt.Errorf("session %s has no extracted data to map", sessionID)
	}

	prompt, err := mapping.BuildPrompt(f.registry, source)
	if err != nil {
		return mapping.Result{}, err
	}

	logCtx.Info("Calling mapping model.", "sectionCount", len(source))
	resp, err := f.vertexClient.MappingModel.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		logCtx.Error("Mapping model call failed", "error", err)
		return mapping.Result{}, fmt.Errorf("failed to generate mapping: %w", err)
	}

	parsed, err := mapping.ParseModelText(gcp.ResponseText(resp))
	if err != nil {
		logCtx.Error("Mapping output unusable", "error", err)
		return mapping.Result{}, err
	}
	return f.normalizer.Normalize(parsed), nil
}
