package labels

import (
	"context"
	"fmt"

	"github.com/fieldmark/fieldmark/internal/config"
)

// NewStore creates the label archive named by the configuration.
func NewStore(ctx context.Context, cfg *config.LabelsConfig) (Store, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStore(cfg.RootDir)
	case "memory":
		return NewMemoryStore(), nil
	case "s3":
		return NewS3Store(ctx, cfg)
	case "gcs":
		return NewGCSStore(ctx, cfg)
	case "azure":
		return NewAzureStore(cfg)
	default:
		return nil, fmt.Errorf("unknown label backend %q", cfg.Backend)
	}
}
