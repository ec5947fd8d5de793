// Package storage presigns share-screen image uploads to S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"tabletop-backend/internal/config"
)

var ErrNotConfigured = errors.New("s3 storage is not configured")

// PresignedUpload a one-shot PUT target and the URL the object will be served from
type PresignedUpload struct {
	UploadURL string    `json:"uploadUrl"`
	ImageURL  string    `json:"imageUrl"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// S3Service presigns uploads into one bucket
type S3Service struct {
	presign    *s3.PresignClient
	bucket     string
	region     string
	expiry     time.Duration
	publicBase string
}

// NewS3Service builds a client from static credentials in cfg.
func NewS3Service(ctx context.Context, cfg *config.S3Config) (*S3Service, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &S3Service{
		presign:    s3.NewPresignClient(s3.NewFromConfig(awsCfg)),
		bucket:     cfg.BucketName,
		region:     cfg.Region,
		expiry:     cfg.PresignExpiry,
		publicBase: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

// GenerateUploadURL presigns a PUT for a new share-screen image of gameID.
func (s *S3Service) GenerateUploadURL(ctx context.Context, gameID, fileName, contentType string) (*PresignedUpload, error) {
	key := s.objectKey(gameID, fileName)

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return nil, fmt.Errorf("presign put: %w", err)
	}

	return &PresignedUpload{
		UploadURL: req.URL,
		ImageURL:  s.publicURL(key),
		Key:       key,
		ExpiresAt: time.Now().Add(s.expiry),
	}, nil
}

func (s *S3Service) objectKey(gameID, fileName string) string {
	ext := strings.ToLower(path.Ext(path.Base(fileName)))
	if len(ext) > 10 {
		ext = ""
	}
	return fmt.Sprintf("games/%s/share/%s%s", gameID, uuid.NewString(), ext)
}

func (s *S3Service) publicURL(key string) string {
	if s.publicBase != "" {
		return s.publicBase + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
