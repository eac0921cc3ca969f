// Package storage provides a domain-agnostic interface for S3-compatible object storage.
// Analytics uses it to archive daily snapshots.
package storage

import (
	"context"
	"io"
	"time"

	"realty_leads_backend/platform/config"
)

// PresignedURL contains the URL and metadata for a presigned download.
type PresignedURL struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// StorageService defines the object storage operations the archive needs.
type StorageService interface {
	// EnsureBucketExists creates the bucket if it doesn't exist.
	EnsureBucketExists(ctx context.Context, bucket string) error

	// PutObject writes body under key, replacing any existing object.
	PutObject(ctx context.Context, bucket, key, contentType string, body io.Reader, size int64) error

	// GenerateDownloadURL creates a presigned URL for downloading an object.
	GenerateDownloadURL(ctx context.Context, bucket, fileKey string) (*PresignedURL, error)
}

// Config defines the configuration interface for storage.
type Config = config.MinIOConfig
