// Package storage keeps meal photos in an S3-compatible bucket (Supabase Storage, MinIO, AWS S3).
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"example.com/wellness/internal/config"
	"example.com/wellness/internal/observability"
)

const defaultPresignExpiry = 7 * 24 * time.Hour

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type objectPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*presignedRequest, error)
}

type presignedRequest struct {
	URL string
}

// presignAdapter narrows *s3.PresignClient to objectPresigner.
type presignAdapter struct {
	client *s3.PresignClient
	expiry time.Duration
}

func (a presignAdapter) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*presignedRequest, error) {
	optFns = append(optFns, s3.WithPresignExpires(a.expiry))
	req, err := a.client.PresignGetObject(ctx, params, optFns...)
	if err != nil {
		return nil, err
	}
	return &presignedRequest{URL: req.URL}, nil
}

// S3PhotoStore uploads meal photos and returns a public or presigned URL.
type S3PhotoStore struct {
	client    objectPutter
	presigner objectPresigner
	bucket    string
	publicURL string
	now       func() time.Time
}

// NewS3PhotoStore builds a store from configuration with path-style addressing and static credentials.
func NewS3PhotoStore(ctx context.Context, cfg config.StorageConfig) (*S3PhotoStore, error) {
	if !cfg.Enabled() {
		return nil, errors.New("storage bucket and credentials are required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &S3PhotoStore{
		client:    client,
		presigner: presignAdapter{client: s3.NewPresignClient(client), expiry: defaultPresignExpiry},
		bucket:    cfg.Bucket,
		publicURL: cfg.PublicURL,
		now:       time.Now,
	}, nil
}

// PutPhoto stores image under meals/<user>/<date>/<uuid>.<ext>.
func (s *S3PhotoStore) PutPhoto(ctx context.Context, userID string, image []byte, mimeType string) (string, error) {
	key := fmt.Sprintf("meals/%s/%s/%s%s", url.PathEscape(userID), s.now().UTC().Format("2006-01-02"), uuid.NewString(), extension(mimeType))

	start := time.Now()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(image),
		ContentType:   aws.String(mimeType),
		ContentLength: aws.Int64(int64(len(image))),
	})
	observability.ObserveVendorCall("storage", "put_photo", start, err)
	if err != nil {
		return "", fmt.Errorf("upload photo: %w", err)
	}

	if s.publicURL != "" {
		return s.publicURL + "/" + key, nil
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("presign photo url: %w", err)
	}
	return req.URL, nil
}

func extension(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/heic":
		return ".heic"
	default:
		return ""
	}
}
