package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
)

// TextEmbedder produces embeddings for text.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStore persists embeddings by content hash and model.
// SelectEmbedding returns a nil vector without error on a miss.
type VectorStore interface {
	SelectEmbedding(ctx context.Context, contentHash string, modelName string) ([]float32, error)
	UpsertEmbedding(ctx context.Context, contentHash string, modelName string, vector []float32) error
}

// CachedEmbedder looks embeddings up in a VectorStore before asking the
// wrapped embedder. Store failures are logged and never fail an Embed call.
type CachedEmbedder struct {
	inner     TextEmbedder
	store     VectorStore
	modelName string
	log       *slog.Logger
}

// NewCachedEmbedder creates a CachedEmbedder. modelName scopes the cache so
// that switching models never returns stale vectors.
func NewCachedEmbedder(inner TextEmbedder, store VectorStore, modelName string, logger *slog.Logger) *CachedEmbedder {
	return &CachedEmbedder{
		inner:     inner,
		store:     store,
		modelName: modelName,
		log:       logger,
	}
}

// Embed returns the cached embedding of text or computes and stores it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	hash := ContentHash(text)

	vector, err := c.store.SelectEmbedding(ctx, hash, c.modelName)
	if err != nil {
		c.log.Warn("Failed to read cached embedding", slog.String("hash", hash), slog.Any("error", err))
	} else if len(vector) > 0 {
		return vector, nil
	}

	vector, err = c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.store.UpsertEmbedding(ctx, hash, c.modelName, vector); err != nil {
		c.log.Warn("Failed to cache embedding", slog.String("hash", hash), slog.Any("error", err))
	}

	return vector, nil
}

// ContentHash returns the hex encoded sha256 of text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
