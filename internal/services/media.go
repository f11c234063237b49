package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"massa-backend/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const uploadURLTTL = 5 * time.Minute

// MediaKind is the asset class of an upload
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaImage MediaKind = "image"
)

type presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// MediaService hands out pre-signed upload URLs for voice notes and images
type MediaService struct {
	presign   presigner
	bucket    string
	publicURL string
}

// UploadRequest represents a request to get a pre-signed URL
type UploadRequest struct {
	Kind        MediaKind `json:"kind"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
}

// UploadResponse carries the URL to PUT to and the asset reference to store
// in the post
type UploadResponse struct {
	UploadURL string `json:"upload_url"`
	AssetURL  string `json:"asset_url"`
	Key       string `json:"key"`
	ExpiresIn int    `json:"expires_in"`
}

// NewMediaService creates a media service backed by S3 or an S3-compatible
// endpoint
func NewMediaService(ctx context.Context, cfg config.AWSConfig) (*MediaService, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathURL
	})

	return newMediaService(s3.NewPresignClient(client), cfg.S3Bucket, assetBaseURL(cfg)), nil
}

func newMediaService(p presigner, bucket, publicURL string) *MediaService {
	return &MediaService{
		presign:   p,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// PresignUpload returns a pre-signed PUT URL for a new asset of userID
func (s *MediaService) PresignUpload(ctx context.Context, userID string, req UploadRequest) (*UploadResponse, error) {
	if err := validateUpload(req); err != nil {
		return nil, err
	}

	key := objectKey(userID, req.Kind, uuid.New().String(), req.Filename)

	request, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(req.ContentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = uploadURLTTL
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("key", key).Msg("Failed to presign upload")
		return nil, fmt.Errorf("failed to generate pre-signed URL: %w", err)
	}

	log.Debug().Str("user_id", userID).Str("key", key).Msg("Upload URL issued")

	return &UploadResponse{
		UploadURL: request.URL,
		AssetURL:  s.publicURL + "/" + key,
		Key:       key,
		ExpiresIn: int(uploadURLTTL.Seconds()),
	}, nil
}

func validateUpload(req UploadRequest) error {
	switch req.Kind {
	case MediaAudio, MediaImage:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidUpload, req.Kind)
	}
	if !strings.HasPrefix(strings.ToLower(req.ContentType), string(req.Kind)+"/") {
		return fmt.Errorf("%w: content type %q is not %s", ErrInvalidUpload, req.ContentType, req.Kind)
	}
	return nil
}

// objectKey builds {user_id}/{kind}/{id}{ext}
func objectKey(userID string, kind MediaKind, id, filename string) string {
	return fmt.Sprintf("%s/%s/%s%s", userID, kind, id, strings.ToLower(path.Ext(filename)))
}

func assetBaseURL(cfg config.AWSConfig) string {
	switch {
	case cfg.PublicURL != "":
		return cfg.PublicURL
	case cfg.Endpoint != "" && cfg.UsePathURL:
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.S3Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.S3Bucket, cfg.Region)
	}
}
