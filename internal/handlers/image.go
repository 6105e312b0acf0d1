package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"tip-gate-backend/internal/middleware"
	"tip-gate-backend/internal/models"
	"tip-gate-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// ImageManager is the image workflow used by ImageHandler
type ImageManager interface {
	CreateImage(ctx context.Context, creator models.FID, req services.CreateImageRequest) (*services.CreateImageResponse, error)
	GetImage(ctx context.Context, id string) (*models.Image, error)
	ObfuscatedURL(ctx context.Context, image *models.Image) (string, error)
	FinishContest(ctx context.Context, imageID string, requester models.FID) error
}

// ImageHandler handles image-related HTTP requests
type ImageHandler struct {
	images ImageManager
}

// NewImageHandler creates a new image handler
func NewImageHandler(images ImageManager) *ImageHandler {
	return &ImageHandler{images: images}
}

// ImageResponse is the public view of an image
type ImageResponse struct {
	*models.Image
	ObfuscatedURL string `json:"obfuscated_url"`
}

// CreateImage handles POST /api/v1/images
func (h *ImageHandler) CreateImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fid, ok := middleware.GetFID(ctx)
	if !ok {
		respondError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req services.CreateImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.images.CreateImage(ctx, fid, req)
	if err != nil {
		log.Error().
			Err(err).
			Str("creator_fid", fid.String()).
			Msg("Failed to create image")
		respondError(w, "Failed to create image", http.StatusInternalServerError)
		return
	}

	log.Info().
		Str("creator_fid", fid.String()).
		Str("image_id", resp.ImageID).
		Str("frame_type", req.FrameType).
		Msg("Image created")

	respondJSON(w, resp, http.StatusCreated)
}

// GetImage handles GET /api/v1/images/{image_id}
func (h *ImageHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	imageID := chi.URLParam(r, "image_id")

	image, err := h.images.GetImage(ctx, imageID)
	if err != nil {
		if errors.Is(err, services.ErrImageNotFound) {
			respondError(w, "Image not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("image_id", imageID).Msg("Failed to get image")
		respondError(w, "Failed to get image", http.StatusInternalServerError)
		return
	}

	obfuscatedURL, err := h.images.ObfuscatedURL(ctx, image)
	if err != nil {
		log.Error().Err(err).Str("image_id", imageID).Msg("Failed to generate obfuscated URL")
		respondError(w, "Failed to generate image URL", http.StatusInternalServerError)
		return
	}

	respondJSON(w, ImageResponse{Image: image, ObfuscatedURL: obfuscatedURL}, http.StatusOK)
}

// FinishContest handles POST /api/v1/images/{image_id}/finish
func (h *ImageHandler) FinishContest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	imageID := chi.URLParam(r, "image_id")
	fid, ok := middleware.GetFID(ctx)
	if !ok {
		respondError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	err := h.images.FinishContest(ctx, imageID, fid)
	switch {
	case err == nil:
		log.Info().Str("image_id", imageID).Str("creator_fid", fid.String()).Msg("Contest finished")
		respondJSON(w, MessageResponse{Message: "Contest finished"}, http.StatusOK)
	case errors.Is(err, services.ErrImageNotFound):
		respondError(w, "Image not found", http.StatusNotFound)
	case errors.Is(err, services.ErrNotCreator):
		respondError(w, "Only the creator can finish the contest", http.StatusForbidden)
	case errors.Is(err, services.ErrNotContest):
		respondError(w, "Image is not a contest", http.StatusBadRequest)
	default:
		log.Error().Err(err).Str("image_id", imageID).Msg("Failed to finish contest")
		respondError(w, "Failed to finish contest", http.StatusInternalServerError)
	}
}
