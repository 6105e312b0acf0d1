package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"tip-gate-backend/internal/models"
	"tip-gate-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// RevealGate decides reveal requests
type RevealGate interface {
	Reveal(ctx context.Context, req services.RevealRequest) (*services.RevealDecision, error)
}

// OriginalLinker hands out links to revealed originals
type OriginalLinker interface {
	OriginalURL(ctx context.Context, image *models.Image) (string, error)
}

// TokenIssuer issues session tokens bound to a fid
type TokenIssuer interface {
	IssueToken(fid models.FID) (string, error)
}

// FrameHandler handles frame actions
type FrameHandler struct {
	gate   RevealGate
	links  OriginalLinker
	tokens TokenIssuer
	appURL string
}

// NewFrameHandler creates a new frame handler
func NewFrameHandler(gate RevealGate, links OriginalLinker, tokens TokenIssuer, appURL string) *FrameHandler {
	return &FrameHandler{
		gate:   gate,
		links:  links,
		tokens: tokens,
		appURL: strings.TrimRight(appURL, "/"),
	}
}

// RevealRequest represents the request body of a reveal action
type RevealRequest struct {
	FID    models.FID    `json:"fid" validate:"required"`
	CastID models.CastID `json:"cast_id"`
}

// RevealResponse represents the gate's answer to a reveal action
type RevealResponse struct {
	Outcome     services.RevealOutcome `json:"outcome"`
	Message     string                 `json:"message,omitempty"`
	Status      models.ViewerStatus    `json:"status,omitempty"`
	ImageID     string                 `json:"image_id"`
	OriginalURL string                 `json:"original_url,omitempty"`
}

// Reveal handles POST /api/v1/frames/{image_id}/reveal
func (h *FrameHandler) Reveal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	imageID := chi.URLParam(r, "image_id")

	var req RevealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, "fid and cast_id are required", http.StatusBadRequest)
		return
	}

	decision, err := h.gate.Reveal(ctx, services.RevealRequest{
		ImageID:      imageID,
		RequesterFID: req.FID,
		Cast:         req.CastID,
	})
	if err != nil {
		if errors.Is(err, services.ErrImageNotFound) {
			respondError(w, "Image not found", http.StatusNotFound)
			return
		}
		log.Error().
			Err(err).
			Str("image_id", imageID).
			Str("viewer_fid", req.FID.String()).
			Msg("Failed to decide reveal")
		respondError(w, "Failed to process reveal", http.StatusInternalServerError)
		return
	}

	resp := RevealResponse{
		Outcome: decision.Outcome,
		Message: decision.Message,
		Status:  decision.Status,
		ImageID: imageID,
	}

	switch decision.Outcome {
	case services.OutcomeReveal:
		originalURL, err := h.links.OriginalURL(ctx, decision.Image)
		if err != nil {
			log.Error().Err(err).Str("image_id", imageID).Msg("Failed to generate original URL")
			respondError(w, "Failed to generate image URL", http.StatusInternalServerError)
			return
		}
		resp.OriginalURL = originalURL
		respondJSON(w, resp, http.StatusOK)
	case services.OutcomeRetryLater:
		respondJSON(w, resp, http.StatusAccepted)
	default:
		respondJSON(w, resp, http.StatusForbidden)
	}
}

// CreateFrameRequest represents the request body of the create action
type CreateFrameRequest struct {
	FID models.FID `json:"fid" validate:"required"`
}

// CreateFrameResponse carries the link to the edit page
type CreateFrameResponse struct {
	URL string `json:"url"`
}

// Create handles POST /api/v1/frames/create
func (h *FrameHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateFrameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, "fid is required", http.StatusBadRequest)
		return
	}

	token, err := h.tokens.IssueToken(req.FID)
	if err != nil {
		log.Error().Err(err).Str("fid", req.FID.String()).Msg("Failed to issue token")
		respondError(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}

	query := url.Values{}
	query.Set("fid", req.FID.String())
	query.Set("token", token)

	respondJSON(w, CreateFrameResponse{URL: h.appURL + "/edit-page?" + query.Encode()}, http.StatusOK)
}
