package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/joho/godotenv"

	"github.com/perpetuitylabs/underwritingflow/internal/services"
)

var (
	registrarInstance *services.RegistrarFunction
	once              sync.Once
	initErr           error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Local runs read config from .env; deployed functions get real env vars.
	_ = godotenv.Load()

	// Register the CloudEvent function triggered by workbook uploads.
	functions.CloudEvent("RegisterWorkbook", registerWorkbook)
}

// main is required by the Go Functions Framework.
func main() {}

// registerWorkbook is the Cloud Function entry point for GCS finalize events.
func registerWorkbook(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		registrarInstance, initErr = services.NewRegistrar(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent services.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	return registrarInstance.Process(ctx, gcsEvent)
}
