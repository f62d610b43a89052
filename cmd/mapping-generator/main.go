package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/joho/godotenv"

	"github.com/perpetuitylabs/underwritingflow/internal/models"
	"github.com/perpetuitylabs/underwritingflow/internal/services"
)

var (
	mapperInstance *services.MapperFunction
	once           sync.Once
	initErr        error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	functions.HTTP("HandleGenerateMapping", handleGenerateMapping)
}

// main is required by the Go Functions Framework.
func main() {}

// handleGenerateMapping is the HTTP handler for the mapping service. It
// generates a fresh mapping when the request carries no payload, and
// normalizes-and-saves the supplied one otherwise.
func handleGenerateMapping(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		mapperInstance, initErr = services.NewMapper(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: Mapper initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.MappingGeneratorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	res, err := mapperInstance.Process(r.Context(), &req)
	if err != nil {
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response", "error", err, "sessionId", req.SessionID)
		http.Error(w, "Internal Server Error: failed to encode response", http.StatusInternalServerError)
	}
}
