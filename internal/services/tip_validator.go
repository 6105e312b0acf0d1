package services

import (
	"context"
	"fmt"
	"time"

	"tip-gate-backend/internal/metrics"
	"tip-gate-backend/internal/models"

	"github.com/rs/zerolog/log"
)

const (
	MessageTipValid    = "Request processed successfully"
	MessageTipNotFound = "Couldn't find a tip greater than reveal fee."
	MessageTipInvalid  = "Tips given today exceed the daily allowance."
	MessageNoAllowance = "No tip allowance found for requester."
	MessageInternal    = "Internal server error"
)

// CastFeed reads cast feeds from the hub
type CastFeed interface {
	GetReplies(ctx context.Context, parent models.CastID) ([]models.TipMessage, error)
	GetAuthorCasts(ctx context.Context, fid models.FID) ([]models.TipMessage, error)
}

// AllowanceSource reads daily tip allowances
type AllowanceSource interface {
	GetAllowance(ctx context.Context, fid models.FID) (float64, bool, error)
}

// ViewerStore persists one verification record per (image, viewer)
type ViewerStore interface {
	Find(ctx context.Context, imageID, viewerFID string) (*models.ViewerState, error)
	Create(ctx context.Context, imageID, viewerFID string) (bool, error)
	UpdateStatus(ctx context.Context, imageID, viewerFID string, status models.ViewerStatus) (bool, error)
	Delete(ctx context.Context, imageID, viewerFID string) error
	DeleteStalePending(ctx context.Context, imageID, viewerFID string, before time.Time) (bool, error)
}

// StatusChange describes a persisted terminal status
type StatusChange struct {
	ImageID   string
	ViewerFID string
	Status    models.ViewerStatus
	TipsGiven float64
}

// StatusListener is notified after a validation moves a record to a terminal status
type StatusListener interface {
	ViewerStatusChanged(ctx context.Context, change StatusChange)
}

// ValidationRequest identifies the tip to validate
type ValidationRequest struct {
	ImageID    string
	Requester  models.FID
	MinFee     float64
	ParentCast models.CastID
}

// ValidationResult is the outcome of a validation run
type ValidationResult struct {
	Status    models.ViewerStatus `json:"status"`
	TipsGiven float64             `json:"tips_given"`
	Allowance float64             `json:"allowance"`
	Message   string              `json:"message"`
}

// TipValidator decides whether a requester's tip qualifies for a reveal
type TipValidator struct {
	feed       CastFeed
	allowances AllowanceSource
	viewers    ViewerStore
	listeners  []StatusListener
	now        func() time.Time
}

// NewTipValidator creates a new tip validator
func NewTipValidator(feed CastFeed, allowances AllowanceSource, viewers ViewerStore, listeners ...StatusListener) *TipValidator {
	return &TipValidator{
		feed:       feed,
		allowances: allowances,
		viewers:    viewers,
		listeners:  listeners,
		now:        time.Now,
	}
}

// Validate runs the full validation and persists its terminal status. A
// non-nil error means a downstream call failed; the Error status has been
// recorded in that case.
func (v *TipValidator) Validate(ctx context.Context, req ValidationRequest) (*ValidationResult, error) {
	started := time.Now()

	result, evalErr := v.evaluate(ctx, req)
	if evalErr != nil {
		log.Error().
			Err(evalErr).
			Str("image_id", req.ImageID).
			Str("viewer_fid", req.Requester.String()).
			Msg("Tip validation failed")
		result = &ValidationResult{Status: models.StatusError, Message: MessageInternal}
	}

	metrics.ObserveValidation(string(result.Status), time.Since(started).Seconds())

	viewerFID := req.Requester.String()
	applied, err := v.viewers.UpdateStatus(ctx, req.ImageID, viewerFID, result.Status)
	if err != nil {
		return &ValidationResult{Status: models.StatusError, Message: MessageInternal},
			fmt.Errorf("failed to persist viewer status: %w", err)
	}

	log.Info().
		Str("image_id", req.ImageID).
		Str("viewer_fid", viewerFID).
		Str("status", string(result.Status)).
		Float64("tips_given", result.TipsGiven).
		Bool("applied", applied).
		Msg("Tip validated")

	if applied {
		change := StatusChange{
			ImageID:   req.ImageID,
			ViewerFID: viewerFID,
			Status:    result.Status,
			TipsGiven: result.TipsGiven,
		}
		for _, l := range v.listeners {
			l.ViewerStatusChanged(ctx, change)
		}
	}

	if evalErr != nil {
		return result, evalErr
	}
	return result, nil
}

func (v *TipValidator) evaluate(ctx context.Context, req ValidationRequest) (*ValidationResult, error) {
	replies, err := v.feed.GetReplies(ctx, req.ParentCast)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch replies: %w", err)
	}

	target, found := findQualifyingTip(replies, req.Requester, req.MinFee)
	if !found {
		return &ValidationResult{Status: models.StatusNotFound, Message: MessageTipNotFound}, nil
	}

	casts, err := v.feed.GetAuthorCasts(ctx, req.Requester)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch requester casts: %w", err)
	}
	tipsGiven := sumTipsGiven(casts, startOfDayUTC(v.now()), target)

	allowance, ok, err := v.allowances.GetAllowance(ctx, req.Requester)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch allowance: %w", err)
	}
	if !ok {
		return &ValidationResult{Status: models.StatusInvalid, TipsGiven: tipsGiven, Message: MessageNoAllowance}, nil
	}

	if tipsGiven <= allowance {
		return &ValidationResult{
			Status:    models.StatusValid,
			TipsGiven: tipsGiven,
			Allowance: allowance,
			Message:   MessageTipValid,
		}, nil
	}
	return &ValidationResult{
		Status:    models.StatusInvalid,
		TipsGiven: tipsGiven,
		Allowance: allowance,
		Message:   MessageTipInvalid,
	}, nil
}

// findQualifyingTip returns the timestamp of the first reply by requester
// carrying at least minFee, in feed order
func findQualifyingTip(replies []models.TipMessage, requester models.FID, minFee float64) (time.Time, bool) {
	for _, reply := range replies {
		if reply.AuthorFID != requester {
			continue
		}
		if amount, ok := ExtractTipAmount(reply.Text); ok && amount >= minFee {
			return reply.Timestamp, true
		}
	}
	return time.Time{}, false
}

// sumTipsGiven totals tips in replies posted between dayStart and target.
// The feed is newest first, so the scan stops at the first cast before
// dayStart; out-of-order feeds are under-counted.
func sumTipsGiven(casts []models.TipMessage, dayStart, target time.Time) float64 {
	var total float64
	for _, cast := range casts {
		if cast.Timestamp.After(target) {
			continue
		}
		if cast.Timestamp.Before(dayStart) {
			break
		}
		if !cast.IsReply {
			continue
		}
		if amount, ok := ExtractTipAmount(cast.Text); ok {
			total += amount
		}
	}
	return total
}

func startOfDayUTC(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
