package storage

import (
	"context"
	"fmt"

	"github.com/semmidev/mongovault/internal/config"
	"github.com/semmidev/mongovault/internal/domain"
)

// New builds the repository selected by storage.type.
func New(ctx context.Context, cfg *config.StorageConfig) (domain.Repository, error) {
	switch cfg.Type {
	case config.StorageS3:
		return NewS3(ctx, &cfg.S3)
	case config.StorageLocal:
		return NewLocal(cfg.Local.Path)
	case config.StorageGDrive:
		return NewGDrive(ctx, &cfg.GDrive)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// Describe names the repository for log lines.
func Describe(cfg *config.StorageConfig) string {
	switch cfg.Type {
	case config.StorageS3:
		return fmt.Sprintf("s3://%s/%s", cfg.S3.Bucket, domain.ArchiveKey(cfg.S3.KeyPath, ""))
	case config.StorageLocal:
		return cfg.Local.Path
	case config.StorageGDrive:
		return "gdrive folder " + cfg.GDrive.FolderID
	}
	return cfg.Type
}
