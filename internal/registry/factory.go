package registry

import (
	"context"
	"fmt"

	"github.com/fieldmark/fieldmark/internal/config"
)

// NewStore creates the registry backend named by the configuration.
func NewStore(ctx context.Context, cfg *config.RegistryConfig) (Store, error) {
	switch cfg.Engine {
	case "memory":
		return NewMemoryStore(), nil
	case "", "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path)
	case "firestore":
		return NewFirestoreStore(ctx, &cfg.Firestore)
	case "dynamodb":
		return NewDynamoDBStore(&cfg.DynamoDB)
	case "cosmos":
		return NewCosmosStore(ctx, &cfg.Cosmos)
	default:
		return nil, fmt.Errorf("unknown registry engine %q", cfg.Engine)
	}
}
