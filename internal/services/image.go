package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tip-gate-backend/internal/events"
	"tip-gate-backend/internal/models"
	"tip-gate-backend/internal/repository"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	FrameTypePaywall = "paywall"
	FrameTypeContest = "contest"

	uploadURLExpiry = 5 * time.Minute
	viewURLExpiry   = 15 * time.Minute
)

// ImageRepo is the image persistence used by ImageService
type ImageRepo interface {
	ImageStore
	Create(ctx context.Context, image *models.Image) error
	MarkSolved(ctx context.Context, id string) error
}

// UsernameLookup resolves a creator's username
type UsernameLookup interface {
	GetUsername(ctx context.Context, fid models.FID) (string, error)
}

// S3Config configures image object storage
type S3Config struct {
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Endpoint  string
}

// ImageService handles image-related business logic
type ImageService struct {
	imageRepo ImageRepo
	usernames UsernameLookup
	publisher events.Publisher
	presigner *s3.PresignClient
	s3Bucket  string
}

// NewImageService creates a new image service
func NewImageService(imageRepo ImageRepo, usernames UsernameLookup, publisher events.Publisher, cfg S3Config) (*ImageService, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	if publisher == nil {
		publisher = &events.NoopPublisher{}
	}

	return &ImageService{
		imageRepo: imageRepo,
		usernames: usernames,
		publisher: publisher,
		presigner: s3.NewPresignClient(s3Client),
		s3Bucket:  cfg.Bucket,
	}, nil
}

// CreateImageRequest represents a request to register a new gated image
type CreateImageRequest struct {
	FrameType   string  `json:"frame_type" validate:"required,oneof=paywall contest"`
	UnlockFee   float64 `json:"unlock_fee" validate:"required_if=FrameType paywall,gte=0"`
	PrizeAmount float64 `json:"prize_amount" validate:"gte=0"`
	Note        string  `json:"note" validate:"max=280"`
	ContentType string  `json:"content_type"`
}

// CreateImageResponse carries pre-signed upload URLs for both image variants
type CreateImageResponse struct {
	ImageID             string `json:"image_id"`
	OriginalUploadURL   string `json:"original_upload_url"`
	ObfuscatedUploadURL string `json:"obfuscated_upload_url"`
	ExpiresIn           int    `json:"expires_in"`
}

// CreateImage stores the image record and returns upload URLs
func (s *ImageService) CreateImage(ctx context.Context, creator models.FID, req CreateImageRequest) (*CreateImageResponse, error) {
	if req.ContentType == "" {
		req.ContentType = "image/jpeg"
	}

	imageID := uuid.New().String()
	image := &models.Image{
		ID:            imageID,
		CreatorFID:    creator.String(),
		OriginalKey:   fmt.Sprintf("%s/original-%s.jpg", imageID, uuid.New().String()),
		ObfuscatedKey: fmt.Sprintf("%s/edited-%s.jpg", imageID, uuid.New().String()),
		IsPaywalled:   req.FrameType == FrameTypePaywall,
		IsContest:     req.FrameType == FrameTypeContest,
		CreatedAt:     time.Now().UTC(),
	}
	if image.IsPaywalled {
		image.UnlockFee = req.UnlockFee
	}
	if image.IsContest {
		image.PrizeAmount = req.PrizeAmount
	}
	if req.Note != "" {
		image.Note = aws.String(req.Note)
	}

	// A missing username only affects display.
	if name, err := s.usernames.GetUsername(ctx, creator); err != nil {
		log.Warn().Err(err).Str("creator_fid", creator.String()).Msg("Failed to look up creator username")
	} else if name != "" {
		image.CreatorUsername = aws.String(name)
	}

	originalURL, err := s.presignPut(ctx, image.OriginalKey, req.ContentType)
	if err != nil {
		return nil, err
	}
	obfuscatedURL, err := s.presignPut(ctx, image.ObfuscatedKey, req.ContentType)
	if err != nil {
		return nil, err
	}

	if err := s.imageRepo.Create(ctx, image); err != nil {
		return nil, fmt.Errorf("failed to create image record: %w", err)
	}

	return &CreateImageResponse{
		ImageID:             imageID,
		OriginalUploadURL:   originalURL,
		ObfuscatedUploadURL: obfuscatedURL,
		ExpiresIn:           int(uploadURLExpiry.Seconds()),
	}, nil
}

// GetImage retrieves an image by ID
func (s *ImageService) GetImage(ctx context.Context, id string) (*models.Image, error) {
	image, err := s.imageRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return image, nil
}

// ObfuscatedURL returns a pre-signed URL of the public, obfuscated variant
func (s *ImageService) ObfuscatedURL(ctx context.Context, image *models.Image) (string, error) {
	return s.presignGet(ctx, image.ObfuscatedKey)
}

// OriginalURL returns a pre-signed URL of the original image. Callers must
// only use it after the gate allowed a reveal.
func (s *ImageService) OriginalURL(ctx context.Context, image *models.Image) (string, error) {
	return s.presignGet(ctx, image.OriginalKey)
}

// FinishContest ends the contest of an image on behalf of its creator
func (s *ImageService) FinishContest(ctx context.Context, imageID string, requester models.FID) error {
	image, err := s.GetImage(ctx, imageID)
	if err != nil {
		return err
	}
	if image.CreatorFID != requester.String() {
		return ErrNotCreator
	}
	if !image.IsContest {
		return ErrNotContest
	}

	if err := s.imageRepo.MarkSolved(ctx, imageID); err != nil {
		return fmt.Errorf("failed to finish contest: %w", err)
	}

	event := events.ContestEnded{ImageID: imageID, CreatorFID: image.CreatorFID, At: time.Now().UTC()}
	if err := s.publisher.Publish(ctx, events.TopicContestEnded, event); err != nil {
		log.Error().Err(err).Str("image_id", imageID).Msg("Failed to publish contest ended event")
	}
	return nil
}

func (s *ImageService) presignPut(ctx context.Context, key, contentType string) (string, error) {
	request, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.s3Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = uploadURLExpiry
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate pre-signed upload URL: %w", err)
	}
	return request.URL, nil
}

func (s *ImageService) presignGet(ctx context.Context, key string) (string, error) {
	request, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.s3Bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = viewURLExpiry
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate pre-signed view URL: %w", err)
	}
	return request.URL, nil
}
