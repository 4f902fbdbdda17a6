package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var _ Store = (*S3Store)(nil)

// S3Store uploads to an S3-compatible bucket such as Cloudflare R2.
type S3Store struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

func NewS3Store(endpoint, region, accessKey, secretKey, bucket, publicURL string) (*S3Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if region == "" {
		region = "auto"
	}

	awsCfg := aws.Config{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: bucket, publicURL: publicURL}, nil
}

func (s *S3Store) Upload(ctx context.Context, objectPath string, data []byte, contentType string) error {
	key, err := cleanObjectPath(objectPath)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=86400"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to bucket %s: %w", key, s.bucket, err)
	}

	slog.Debug("Uploaded object", "backend", BackendS3, "key", key, "size", len(data))
	return nil
}

func (s *S3Store) PublicURL(ctx context.Context, objectPath string) (string, error) {
	key, err := cleanObjectPath(objectPath)
	if err != nil {
		return "", err
	}
	if s.publicURL == "" {
		return "", fmt.Errorf("no public URL configured for bucket %s", s.bucket)
	}
	return joinURL(s.publicURL, key), nil
}
