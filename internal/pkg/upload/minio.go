package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrBucketCreationFailed = errors.New("failed to create storage bucket")

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// PublicURL is the prefix clients fetch objects from, e.g. https://cdn.example.com/avatars-bucket.
	PublicURL string
}

// MinIO stores avatars in an S3-compatible bucket.
type MinIO struct {
	client    *minio.Client
	bucket    string
	publicURL string
	now       func() time.Time
}

func NewMinIO(cfg MinIOConfig) (*MinIO, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIO{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		now:       time.Now,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (m *MinIO) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("%w: check bucket existence: %v", ErrBucketCreationFailed, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("%w: create bucket: %v", ErrBucketCreationFailed, err)
	}
	return nil
}

func (m *MinIO) Upload(ctx context.Context, stagedPath string) (string, string, error) {
	defer RemoveTemp(stagedPath)

	src, err := os.Open(stagedPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to open staged file: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return "", "", fmt.Errorf("failed to stat staged file: %w", err)
	}

	publicID := avatarKey(m.now(), stagedPath)
	_, err = m.client.PutObject(ctx, m.bucket, publicID, src, info.Size(), minio.PutObjectOptions{
		ContentType: contentTypeFor(filepath.Ext(stagedPath)),
	})
	if err != nil {
		return "", "", fmt.Errorf("put object %s: %w", publicID, err)
	}
	return m.publicURL + "/" + publicID, publicID, nil
}

func (m *MinIO) Delete(ctx context.Context, publicID string) error {
	if !validPublicID(publicID) {
		return ErrInvalidPublicID
	}
	if err := m.client.RemoveObject(ctx, m.bucket, publicID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", publicID, err)
	}
	return nil
}

func contentTypeFor(ext string) string {
	ext = strings.ToLower(ext)
	for mimeType, e := range allowedImageTypes {
		if e == ext {
			return mimeType
		}
	}
	return "application/octet-stream"
}
