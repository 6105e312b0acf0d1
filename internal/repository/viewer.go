package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tip-gate-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ViewerRepository handles database operations for viewer verification records
type ViewerRepository struct {
	db DBTX
}

// NewViewerRepository creates a new viewer repository
func NewViewerRepository(db DBTX) *ViewerRepository {
	return &ViewerRepository{db: db}
}

// Find retrieves the record for a viewer of an image
func (r *ViewerRepository) Find(ctx context.Context, imageID, viewerFID string) (*models.ViewerState, error) {
	query := `
		SELECT id, image_id, viewer_fid, status, created_at, updated_at
		FROM viewers
		WHERE image_id = $1 AND viewer_fid = $2
	`
	var state models.ViewerState
	err := r.db.QueryRow(ctx, query, imageID, viewerFID).Scan(
		&state.ID, &state.ImageID, &state.ViewerFID, &state.Status,
		&state.CreatedAt, &state.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("viewer not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get viewer: %w", err)
	}
	return &state, nil
}

// Create inserts a Pending record. It returns false when a record for the
// same (image, viewer) pair already exists.
func (r *ViewerRepository) Create(ctx context.Context, imageID, viewerFID string) (bool, error) {
	query := `
		INSERT INTO viewers (id, image_id, viewer_fid, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (image_id, viewer_fid) DO NOTHING
	`
	result, err := r.db.Exec(ctx, query,
		uuid.New().String(), imageID, viewerFID, models.StatusPending, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to create viewer: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// UpdateStatus moves a Pending record to a terminal status. It returns false
// when no Pending record matched.
func (r *ViewerRepository) UpdateStatus(ctx context.Context, imageID, viewerFID string, status models.ViewerStatus) (bool, error) {
	query := `
		UPDATE viewers
		SET status = $1, updated_at = $2
		WHERE image_id = $3 AND viewer_fid = $4 AND status = $5
	`
	result, err := r.db.Exec(ctx, query,
		status, time.Now().UTC(), imageID, viewerFID, models.StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update viewer status: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// DeleteStalePending removes the record only if it is still Pending and was
// last updated before the cutoff. It returns false when nothing matched.
func (r *ViewerRepository) DeleteStalePending(ctx context.Context, imageID, viewerFID string, before time.Time) (bool, error) {
	query := `
		DELETE FROM viewers
		WHERE image_id = $1 AND viewer_fid = $2 AND status = $3 AND updated_at < $4
	`
	result, err := r.db.Exec(ctx, query, imageID, viewerFID, models.StatusPending, before.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to delete stale viewer: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// Delete removes the record for a viewer of an image
func (r *ViewerRepository) Delete(ctx context.Context, imageID, viewerFID string) error {
	query := `DELETE FROM viewers WHERE image_id = $1 AND viewer_fid = $2`
	if _, err := r.db.Exec(ctx, query, imageID, viewerFID); err != nil {
		return fmt.Errorf("failed to delete viewer: %w", err)
	}
	return nil
}
