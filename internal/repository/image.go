package repository

import (
	"context"
	"errors"
	"fmt"

	"tip-gate-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// ImageRepository handles database operations for gated images
type ImageRepository struct {
	db DBTX
}

// NewImageRepository creates a new image repository
func NewImageRepository(db DBTX) *ImageRepository {
	return &ImageRepository{db: db}
}

// Create creates a new image
func (r *ImageRepository) Create(ctx context.Context, image *models.Image) error {
	query := `
		INSERT INTO images (
			id, creator_fid, creator_username, original_key, obfuscated_key, note,
			is_paywalled, unlock_fee, is_contest, prize_amount, is_solved, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.Exec(ctx, query,
		image.ID, image.CreatorFID, image.CreatorUsername, image.OriginalKey, image.ObfuscatedKey, image.Note,
		image.IsPaywalled, image.UnlockFee, image.IsContest, image.PrizeAmount, image.IsSolved, image.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}
	return nil
}

// GetByID retrieves an image by ID
func (r *ImageRepository) GetByID(ctx context.Context, id string) (*models.Image, error) {
	query := `
		SELECT id, creator_fid, creator_username, original_key, obfuscated_key, note,
			is_paywalled, unlock_fee, is_contest, prize_amount, is_solved, created_at
		FROM images
		WHERE id = $1
	`
	var image models.Image
	err := r.db.QueryRow(ctx, query, id).Scan(
		&image.ID, &image.CreatorFID, &image.CreatorUsername, &image.OriginalKey, &image.ObfuscatedKey, &image.Note,
		&image.IsPaywalled, &image.UnlockFee, &image.IsContest, &image.PrizeAmount, &image.IsSolved, &image.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("image not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return &image, nil
}

// MarkSolved ends the contest of an image
func (r *ImageRepository) MarkSolved(ctx context.Context, id string) error {
	query := `UPDATE images SET is_solved = TRUE WHERE id = $1`
	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark image solved: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("image not found: %w", ErrNotFound)
	}
	return nil
}
