// Package storage keeps chat exports in an S3 compatible object store.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"social-chat/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	defaultRegion = "us-east-1"
	linkExpiry    = 24 * time.Hour
)

// MinIOClient uploads export documents and hands out presigned download links.
type MinIOClient struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

// NewMinIOClient connects to MinIO and creates the export bucket when missing.
func NewMinIOClient(ctx context.Context, cfg config.MinIOConfig) (*MinIOClient, error) {
	s, err := newStorage(cfg)
	if err != nil {
		return nil, err
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: defaultRegion}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		slog.Info("Created export bucket", "bucket", s.bucket)
	}

	slog.Info("Successfully connected to MinIO", "endpoint", cfg.Endpoint, "bucket", s.bucket)
	return s, nil
}

func newStorage(cfg config.MinIOConfig) (*MinIOClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is not configured")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: defaultRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return &MinIOClient{client: client, bucket: cfg.Bucket, expiry: linkExpiry}, nil
}

// UploadExport stores data under name and returns a time-limited download URL.
func (s *MinIOClient) UploadExport(ctx context.Context, name string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:        "application/json",
		ContentDisposition: "attachment",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload export: %w", err)
	}
	return s.presign(ctx, name)
}

func (s *MinIOClient) presign(ctx context.Context, name string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, name, s.expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to sign export url: %w", err)
	}
	return u.String(), nil
}

// Ping verifies the bucket is reachable.
func (s *MinIOClient) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}
