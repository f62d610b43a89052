// Package store holds the Firestore repositories for workbooks and sessions.
package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"

	"github.com/perpetuitylabs/underwritingflow/internal/mapping"
	"github.com/perpetuitylabs/underwritingflow/internal/models"
)

// Sessions persists extraction sessions.
type Sessions struct {
	client     *firestore.Client
	collection string
}

// NewSessions builds a session repository on the given collection.
func NewSessions(client *firestore.Client, collection string) *Sessions {
	return &Sessions{client: client, collection: collection}
}

// Create stores a new session under a freshly minted ID and returns it.
func (s *Sessions) Create(ctx context.Context, session models.Session) (string, error) {
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	id := uuid.NewString()
	if _, err := s.client.Collection(s.collection).Doc(id).Create(ctx, session); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return id, nil
}

// Get loads one session by ID.
func (s *Sessions) Get(ctx context.Context, id string) (*models.Session, error) {
	snap, err := s.client.Collection(s.collection).Doc(id).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	var session models.Session
	if err := snap.DataTo(&session); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &session, nil
}

// SetMapping replaces the session's mapping payload. The canonical document
// and its missing-field report travel inside one mapping.Result, so the pair
// is always swapped atomically.
func (s *Sessions) SetMapping(ctx context.Context, id string, result mapping.Result) error {
	_, err := s.client.Collection(s.collection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "mapping", Value: result},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("failed to store mapping for session %s: %w", id, err)
	}
	return nil
}

// SetFinalJSON replaces the analyst-edited section data.
func (s *Sessions) SetFinalJSON(ctx context.Context, id string, finalJSON map[string]any) error {
	_, err := s.client.Collection(s.collection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "finalJson", Value: finalJSON},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("failed to store final JSON for session %s: %w", id, err)
	}
	return nil
}
