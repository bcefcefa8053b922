package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"swarm-backend/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const emblemURLExpiry = 5 * time.Minute

var (
	// ErrUnsupportedContentType is returned for emblem uploads that are not images
	ErrUnsupportedContentType = errors.New("emblem must be a png, jpeg or webp image")
	// ErrInvalidEmblemKey is returned when a confirmed key was not issued for the swarm
	ErrInvalidEmblemKey = errors.New("invalid emblem key")
	// ErrEmblemNotUploaded is returned when the confirmed object is not in the bucket
	ErrEmblemNotUploaded = errors.New("emblem has not been uploaded")
)

var emblemExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// EmblemConfig holds the S3 settings for emblem uploads
type EmblemConfig struct {
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Endpoint  string
	PublicURL string
}

// EmblemUpload is the response to an emblem upload request. The client PUTs
// the image to UploadURL and then confirms Key.
type EmblemUpload struct {
	UploadURL string `json:"upload_url"`
	Key       string `json:"key"`
	EmblemURL string `json:"emblem_url"`
	ExpiresIn int    `json:"expires_in"`
}

// objectHeader looks up object metadata. It is implemented by *s3.Client.
type objectHeader interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// EmblemService hands out pre-signed S3 uploads for swarm emblems
type EmblemService struct {
	swarms    SwarmRepository
	presign   *s3.PresignClient
	objects   objectHeader
	bucket    string
	publicURL string
	events    *EventPublisher
}

// NewEmblemService creates a new emblem service
func NewEmblemService(ctx context.Context, swarms SwarmRepository, cfg EmblemConfig, events *EventPublisher) (*EmblemService, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	publicURL := strings.TrimRight(cfg.PublicURL, "/")
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}

	return &EmblemService{
		swarms:    swarms,
		presign:   s3.NewPresignClient(client),
		objects:   client,
		bucket:    cfg.Bucket,
		publicURL: publicURL,
		events:    events,
	}, nil
}

// PresignEmblemUpload returns a pre-signed PUT URL for a new swarm emblem. The
// swarm keeps its old emblem until the upload is confirmed. Only the founder
// may do this.
func (s *EmblemService) PresignEmblemUpload(ctx context.Context, userID, swarmID, contentType string) (*EmblemUpload, error) {
	ext, ok := emblemExtensions[contentType]
	if !ok {
		return nil, ErrUnsupportedContentType
	}

	swarm, err := s.swarms.GetByID(ctx, swarmID)
	if err != nil {
		return nil, err
	}
	if swarm.FounderID != userID {
		return nil, models.ErrNotFounder
	}

	// emblems/{swarm_id}/{uuid}.{ext}
	key := fmt.Sprintf("emblems/%s/%s%s", swarmID, uuid.New().String(), ext)

	request, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = emblemURLExpiry
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate pre-signed URL: %w", err)
	}

	log.Info().
		Str("user_id", userID).
		Str("swarm_id", swarmID).
		Str("key", key).
		Msg("Emblem upload issued")

	return &EmblemUpload{
		UploadURL: request.URL,
		Key:       key,
		EmblemURL: s.publicURL + "/" + key,
		ExpiresIn: int(emblemURLExpiry.Seconds()),
	}, nil
}

// ConfirmEmblemUpload makes an uploaded object the swarm's emblem. The key
// must have been issued for this swarm and the object must exist in the
// bucket. Only the founder may do this.
func (s *EmblemService) ConfirmEmblemUpload(ctx context.Context, userID, swarmID, key string) (*models.Swarm, error) {
	if !s.validKey(swarmID, key) {
		return nil, ErrInvalidEmblemKey
	}

	swarm, err := s.swarms.GetByID(ctx, swarmID)
	if err != nil {
		return nil, err
	}
	if swarm.FounderID != userID {
		return nil, models.ErrNotFounder
	}

	_, err = s.objects.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, ErrEmblemNotUploaded
		}
		return nil, fmt.Errorf("failed to check emblem object: %w", err)
	}

	emblemURL := s.publicURL + "/" + key
	if err := s.swarms.SetEmblem(ctx, swarmID, userID, emblemURL); err != nil {
		return nil, err
	}
	swarm.EmblemURL = &emblemURL

	log.Info().
		Str("user_id", userID).
		Str("swarm_id", swarmID).
		Str("key", key).
		Msg("Emblem updated")

	s.events.Publish(ctx, swarmID, WSMessage{
		Type:   EventEmblemUpdated,
		UserID: userID,
		Data:   map[string]string{"emblem_url": emblemURL},
	}, nil)

	return swarm, nil
}

// validKey reports whether key has the emblems/{swarm_id}/{uuid}{ext} shape
func (s *EmblemService) validKey(swarmID, key string) bool {
	prefix := "emblems/" + swarmID + "/"
	if !strings.HasPrefix(key, prefix) {
		return false
	}
	name := strings.TrimPrefix(key, prefix)
	for _, ext := range emblemExtensions {
		if id, ok := strings.CutSuffix(name, ext); ok {
			_, err := uuid.Parse(id)
			return err == nil && len(id) == 36
		}
	}
	return false
}
