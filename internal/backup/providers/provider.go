// Package providers stores finished backup archives.
package providers

import (
	"context"
	"fmt"

	"github.com/NotCreative21/taurus/internal/config"
)

// Provider is a backup archive store. Remote paths are slash separated and
// relative to the provider root.
type Provider interface {
	Upload(ctx context.Context, localPath, remotePath string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, remotePath string) error
}

// FromConfig builds the provider named by cfg.Provider.
func FromConfig(ctx context.Context, cfg config.BackupConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "local":
		return NewLocalProvider(cfg.Location), nil
	case "s3":
		return NewS3Provider(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown backup provider %q", cfg.Provider)
	}
}
