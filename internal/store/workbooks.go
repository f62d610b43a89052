package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/perpetuitylabs/underwritingflow/internal/models"
)

// Workbooks persists uploaded workbook records.
type Workbooks struct {
	client     *firestore.Client
	collection string
}

// NewWorkbooks builds a workbook repository on the given collection.
func NewWorkbooks(client *firestore.Client, collection string) *Workbooks {
	return &Workbooks{client: client, collection: collection}
}

// Create stores a new workbook record and returns its generated ID.
func (w *Workbooks) Create(ctx context.Context, workbook models.Workbook) (string, error) {
	now := time.Now().UTC()
	workbook.CreatedAt = now
	workbook.UpdatedAt = now

	ref, _, err := w.client.Collection(w.collection).Add(ctx, workbook)
	if err != nil {
		return "", fmt.Errorf("failed to create workbook record: %w", err)
	}
	return ref.ID, nil
}

// Get loads one workbook by ID.
func (w *Workbooks) Get(ctx context.Context, id string) (*models.Workbook, error) {
	snap, err := w.client.Collection(w.collection).Doc(id).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load workbook %s: %w", id, err)
	}
	var workbook models.Workbook
	if err := snap.DataTo(&workbook); err != nil {
		return nil, fmt.Errorf("failed to decode workbook %s: %w", id, err)
	}
	return &workbook, nil
}

// FindByHash returns the ID of an existing workbook with the same content
// hash, or "" when none exists. Used by the registrar to skip duplicates.
func (w *Workbooks) FindByHash(ctx context.Context, fileHash string) (string, error) {
	it := w.client.Collection(w.collection).Where("fileHash", "==", fileHash).Limit(1).Documents(ctx)
	defer it.Stop()

	snap, err := it.Next()
	if err == iterator.Done {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query for duplicate workbook: %w", err)
	}
	return snap.Ref.ID, nil
}

// SetSheetPDF records the rendered PDF object for one sheet.
func (w *Workbooks) SetSheetPDF(ctx context.Context, id, sheetName, pdfObject string) error {
	_, err := w.client.Collection(w.collection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "sheetPdfs." + sheetName, Value: pdfObject},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("failed to record sheet PDF for workbook %s: %w", id, err)
	}
	return nil
}

// SetStatus updates the processing status, optionally with error details.
func (w *Workbooks) SetStatus(ctx context.Context, id, status, errDetails string) error {
	updates := []firestore.Update{
		{Path: "status", Value: status},
		{Path: "updatedAt", Value: time.Now().UTC()},
	}
	if errDetails != "" {
		updates = append(updates, firestore.Update{Path: "errorDetails", Value: errDetails})
	}
	if _, err := w.client.Collection(w.collection).Doc(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update workbook %s status: %w", id, err)
	}
	return nil
}
