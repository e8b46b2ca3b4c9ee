package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"techmatch/talent-matcher/internal/logger"
	"techmatch/talent-matcher/internal/models"
)

// Embedder embeds a single text.
type Embedder interface {
	Embed(ctx context.Context, text string) (*models.Embedding, error)
}

// CachedEmbedder remembers recent query embeddings so repeated searches skip
// the provider. A hit reports zero tokens.
type CachedEmbedder struct {
	next  Embedder
	model string
	cache *cache.Cache
	log   *zap.Logger
}

// NewCachedEmbedder wraps next with a TTL cache. A ttl of zero or less returns
// next unchanged.
func NewCachedEmbedder(next Embedder, model string, ttl time.Duration, log *zap.Logger) Embedder {
	if ttl <= 0 {
		return next
	}
	return &CachedEmbedder{
		next:  next,
		model: model,
		cache: cache.New(ttl, 2*ttl),
		log:   logger.Named(log, "embedding-cache"),
	}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) (*models.Embedding, error) {
	key := c.key(text)
	if x, found := c.cache.Get(key); found {
		c.log.Debug("embedding cache hit")
		return &models.Embedding{Vector: x.([]float32)}, nil
	}

	emb, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, emb.Vector, cache.DefaultExpiration)
	return emb, nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
