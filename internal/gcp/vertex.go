package gcp

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// --- Extraction Model Prompts ---
const ExtractionSystemPrompt = "You are a precise data extraction engine. Return JSON only."
const ExtractionUserPrompt = `Extract tables and key-value pairs from the provided underwriting document. Group related fields into logical section names. If a header is not found, infer a logical section name based on field names. Preserve values exactly as written in the source, including currency symbols, percent signs and thousands separators.

Return a JSON object where each key is the section name and the value is either an object of key/value pairs or an array of row objects. Return strict JSON only; no prose, no markdown fences.`

// --- Mapping Model Prompt ---
const MappingSystemPrompt = "You output canonical JSON mappings only. Follow instructions exactly."

// VertexClient holds all pre-configured generative models for the pipeline.
type VertexClient struct {
	ExtractionModel *genai.GenerativeModel
	MappingModel    *genai.GenerativeModel
	baseClient      *genai.Client
}

// NewVertexClient creates a new client holding all necessary models.
func NewVertexClient(ctx context.Context, projectID, region string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	modelName := GetEnv("VERTEX_AI_MODEL", "gemini-1.5-pro")

	// --- Configure the extraction model ---
	extractionModel := baseClient.GenerativeModel(modelName)
	extractionModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(ExtractionSystemPrompt)},
	}
	extractionModel.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}

	// --- Configure the mapping model ---
	mappingModel := baseClient.GenerativeModel(modelName)
	mappingModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(MappingSystemPrompt)},
	}
	mappingModel.GenerationConfig = genai.GenerationConfig{
		// Force JSON output. Mapping results are machine-consumed.
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}

	return &VertexClient{
		ExtractionModel: extractionModel,
		MappingModel:    mappingModel,
		baseClient:      baseClient,
	}, nil
}

// ResponseText gets the raw text content out of a model response, trimming
// stray markdown fences. The repair parser downstream does the heavier
// lifting for malformed payloads.
func ResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	if txt, ok := resp.Candidates[0].Content.Parts[0].(genai.Text); ok {
		return strings.TrimSpace(string(txt))
	}
	return ""
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
