package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"techmatch/talent-matcher/internal/config"
	"techmatch/talent-matcher/internal/repositories"
)

// OpenProfileStore returns the store selected by PROFILE_STORE and makes sure
// its schema exists.
func OpenProfileStore(ctx context.Context, cfg *config.Config, db *gorm.DB, log *zap.Logger) (ProfileStore, error) {
	var store ProfileStore

	switch cfg.Pipeline.ProfileStore {
	case config.ProfileStoreQdrant:
		qs, err := NewQdrantProfileStore(cfg.Qdrant, cfg.Gemini.EmbeddingDimensions, log)
		if err != nil {
			return nil, err
		}
		store = qs
	case config.ProfileStorePGVector, "":
		if db == nil {
			return nil, fmt.Errorf("pgvector profile store requires a database")
		}
		store = repositories.NewProfileRepository(db)
	default:
		return nil, fmt.Errorf("unknown profile store %q", cfg.Pipeline.ProfileStore)
	}

	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare %s profile store: %w", cfg.Pipeline.ProfileStore, err)
	}

	return store, nil
}
