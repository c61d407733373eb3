// Package storage keeps gallery image bytes on local disk or in S3.
package storage

import (
	"context"
	"errors"
	"fmt"

	"sparkclean/internal/config"
	"sparkclean/internal/domain"
)

var (
	ErrNotFound   = errors.New("object not found")
	ErrInvalidKey = errors.New("invalid object key")
)

// New picks the backend named by cfg.Type.
func New(ctx context.Context, cfg config.StorageConfig) (domain.BlobStorage, error) {
	switch cfg.Type {
	case "s3":
		return NewS3Storage(ctx, cfg)
	case "local", "":
		return NewLocalStorage(cfg.LocalPath)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
}
