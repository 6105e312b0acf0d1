package handlers

import (
	"encoding/json"
	"net/http"

	"tip-gate-backend/internal/models"
	"tip-gate-backend/internal/services"

	"github.com/rs/zerolog/log"
)

const messageMissingFields = "Missing required fields"

// TipValidatorHandler exposes tip validation over HTTP
type TipValidatorHandler struct {
	validator services.TipChecker
}

// NewTipValidatorHandler creates a new tip validator handler
func NewTipValidatorHandler(validator services.TipChecker) *TipValidatorHandler {
	return &TipValidatorHandler{validator: validator}
}

// ValidateTipRequest represents the request body for validating a tip
type ValidateTipRequest struct {
	ImageID    string        `json:"imageId" validate:"required"`
	Requester  models.FID    `json:"requester" validate:"required"`
	MinFee     *float64      `json:"minFee" validate:"required,gte=0"`
	ParentCast models.CastID `json:"parentCast"`
}

// ValidateTipResponse is returned when a qualifying tip was found
type ValidateTipResponse struct {
	Message        string  `json:"message"`
	DegenTipsGiven float64 `json:"degenTipsGiven"`
	TipIsValid     bool    `json:"tipIsValid"`
}

// ValidateTip handles POST /validate-tip
func (h *TipValidatorHandler) ValidateTip(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ValidateTipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, MessageResponse{Message: messageMissingFields}, http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		respondJSON(w, MessageResponse{Message: messageMissingFields}, http.StatusBadRequest)
		return
	}

	result, err := h.validator.Validate(ctx, services.ValidationRequest{
		ImageID:    req.ImageID,
		Requester:  req.Requester,
		MinFee:     *req.MinFee,
		ParentCast: req.ParentCast,
	})
	if err != nil || result == nil || result.Status == models.StatusError {
		log.Error().
			Err(err).
			Str("image_id", req.ImageID).
			Str("requester", req.Requester.String()).
			Msg("Failed to validate tip")
		respondJSON(w, MessageResponse{Message: services.MessageInternal}, http.StatusInternalServerError)
		return
	}

	if result.Status == models.StatusNotFound {
		respondJSON(w, MessageResponse{Message: services.MessageTipNotFound}, http.StatusNotFound)
		return
	}

	respondJSON(w, ValidateTipResponse{
		Message:        services.MessageTipValid,
		DegenTipsGiven: result.TipsGiven,
		TipIsValid:     result.Status == models.StatusValid,
	}, http.StatusOK)
}
