package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tip-gate-backend/internal/metrics"
	"tip-gate-backend/internal/models"
	"tip-gate-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// RevealOutcome is the answer given to a reveal request
type RevealOutcome string

const (
	OutcomeReveal     RevealOutcome = "reveal"
	OutcomeReject     RevealOutcome = "reject"
	OutcomeRetryLater RevealOutcome = "retry_later"
)

const (
	MessageContestOpen     = "Contest not over yet!"
	MessageStillValidating = "Still validating your tip, try again in a few seconds."
	MessageTipAndWait      = "Tip the creator to view! If you already did, wait a moment and try again."
	MessageRejectNotFound  = "Couldn't find your tip. Reply to the cast with at least the reveal fee in $DEGEN, then try again."
	MessageRejectInvalid   = "Your $DEGEN tips today exceed your allowance, so this tip is not valid."
	MessageRejectError     = "Something went wrong while validating your tip. Please try again."
)

// defaultPendingExpiry bounds how long a Pending record blocks new runs when
// its validation never persisted a terminal status
const defaultPendingExpiry = 5 * time.Minute

var (
	ErrImageNotFound = errors.New("image not found")
	ErrNotCreator    = errors.New("requester is not the creator of this image")
	ErrNotContest    = errors.New("image is not a contest")
)

// ImageStore reads gated image metadata
type ImageStore interface {
	GetByID(ctx context.Context, id string) (*models.Image, error)
}

// TipChecker runs a tip validation and persists its status
type TipChecker interface {
	Validate(ctx context.Context, req ValidationRequest) (*ValidationResult, error)
}

// RevealRequest is a viewer's attempt to reveal an image from a frame cast
type RevealRequest struct {
	ImageID      string
	RequesterFID models.FID
	Cast         models.CastID
}

// RevealDecision is the gate's answer to a RevealRequest
type RevealDecision struct {
	Outcome RevealOutcome
	Message string
	Status  models.ViewerStatus
	Image   *models.Image
}

// GateService decides whether a viewer may reveal an image
type GateService struct {
	images        ImageStore
	viewers       ViewerStore
	validator     TipChecker
	timeout       time.Duration
	pendingExpiry time.Duration
	now           func() time.Time
	wg            sync.WaitGroup
}

// NewGateService creates a new gate service. timeout bounds how long a reveal
// request waits for a fresh validation.
func NewGateService(images ImageStore, viewers ViewerStore, validator TipChecker, timeout time.Duration) *GateService {
	return &GateService{
		images:        images,
		viewers:       viewers,
		validator:     validator,
		timeout:       timeout,
		pendingExpiry: defaultPendingExpiry,
		now:           time.Now,
	}
}

// Reveal applies the image's gate policy for the requester
func (s *GateService) Reveal(ctx context.Context, req RevealRequest) (*RevealDecision, error) {
	image, err := s.images.GetByID(ctx, req.ImageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to get image: %w", err)
	}

	decision, err := s.decide(ctx, image, req)
	if err != nil {
		return nil, err
	}
	decision.Image = image
	metrics.ObserveRevealDecision(string(decision.Outcome))
	return decision, nil
}

func (s *GateService) decide(ctx context.Context, image *models.Image, req RevealRequest) (*RevealDecision, error) {
	if req.RequesterFID.String() == image.CreatorFID {
		return reveal(""), nil
	}

	if image.IsContest {
		if !image.IsSolved {
			return reject(MessageContestOpen, ""), nil
		}
		return reveal(""), nil
	}

	if !image.IsPaywalled {
		return reveal(""), nil
	}

	return s.gatePaywall(ctx, image, req)
}

func (s *GateService) gatePaywall(ctx context.Context, image *models.Image, req RevealRequest) (*RevealDecision, error) {
	viewerFID := req.RequesterFID.String()

	state, err := s.viewers.Find(ctx, image.ID, viewerFID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return s.startValidation(ctx, image, req)
		}
		return nil, fmt.Errorf("failed to get viewer state: %w", err)
	}

	switch state.Status {
	case models.StatusPending:
		if s.now().Sub(state.UpdatedAt) <= s.pendingExpiry {
			return retryLater(MessageStillValidating, models.StatusPending), nil
		}
		deleted, err := s.viewers.DeleteStalePending(ctx, image.ID, viewerFID, s.now().Add(-s.pendingExpiry))
		if err != nil {
			return nil, err
		}
		if !deleted {
			// Another request already restarted it.
			return retryLater(MessageStillValidating, models.StatusPending), nil
		}
		log.Warn().
			Str("image_id", image.ID).
			Str("viewer_fid", viewerFID).
			Time("updated_at", state.UpdatedAt).
			Msg("Discarded abandoned pending validation")
		return s.startValidation(ctx, image, req)
	case models.StatusValid:
		return reveal(models.StatusValid), nil
	default:
		if err := s.viewers.Delete(ctx, image.ID, viewerFID); err != nil {
			return nil, err
		}
		return reject(rejectionMessage(state.Status), state.Status), nil
	}
}

type validationOutcome struct {
	result *ValidationResult
	err    error
}

// startValidation creates the Pending record and waits up to s.timeout for a
// detached validation run. The run outlives the wait and persists its status.
func (s *GateService) startValidation(ctx context.Context, image *models.Image, req RevealRequest) (*RevealDecision, error) {
	viewerFID := req.RequesterFID.String()

	created, err := s.viewers.Create(ctx, image.ID, viewerFID)
	if err != nil {
		return nil, err
	}
	if !created {
		return retryLater(MessageStillValidating, models.StatusPending), nil
	}

	vreq := ValidationRequest{
		ImageID:    image.ID,
		Requester:  req.RequesterFID,
		MinFee:     image.UnlockFee,
		ParentCast: req.Cast,
	}
	done := make(chan validationOutcome, 1)
	bgCtx := context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		result, err := s.validator.Validate(bgCtx, vreq)
		done <- validationOutcome{result: result, err: err}
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		return s.settle(ctx, image.ID, viewerFID, out)
	case <-timer.C:
		log.Debug().
			Str("image_id", image.ID).
			Str("viewer_fid", viewerFID).
			Dur("timeout", s.timeout).
			Msg("Validation still running after wait budget")
		return retryLater(MessageStillValidating, models.StatusPending), nil
	case <-ctx.Done():
		return retryLater(MessageStillValidating, models.StatusPending), nil
	}
}

func (s *GateService) settle(ctx context.Context, imageID, viewerFID string, out validationOutcome) (*RevealDecision, error) {
	if out.err != nil || out.result == nil {
		return retryLater(MessageTipAndWait, models.StatusError), nil
	}

	switch out.result.Status {
	case models.StatusValid:
		return reveal(models.StatusValid), nil
	case models.StatusError:
		return retryLater(MessageTipAndWait, models.StatusError), nil
	default:
		if err := s.viewers.Delete(ctx, imageID, viewerFID); err != nil {
			return nil, err
		}
		return reject(rejectionMessage(out.result.Status), out.result.Status), nil
	}
}

// Wait blocks until detached validation runs have finished
func (s *GateService) Wait() {
	s.wg.Wait()
}

func rejectionMessage(status models.ViewerStatus) string {
	switch status {
	case models.StatusNotFound:
		return MessageRejectNotFound
	case models.StatusInvalid:
		return MessageRejectInvalid
	default:
		return MessageRejectError
	}
}

func reveal(status models.ViewerStatus) *RevealDecision {
	return &RevealDecision{Outcome: OutcomeReveal, Status: status}
}

func reject(message string, status models.ViewerStatus) *RevealDecision {
	return &RevealDecision{Outcome: OutcomeReject, Message: message, Status: status}
}

func retryLater(message string, status models.ViewerStatus) *RevealDecision {
	return &RevealDecision{Outcome: OutcomeRetryLater, Message: message, Status: status}
}
