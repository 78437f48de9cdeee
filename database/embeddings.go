package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/VinhGH/Lost-Found-PLatform-sub001/helper"
	loadSql "github.com/VinhGH/Lost-Found-PLatform-sub001/sql"
	"github.com/pgvector/pgvector-go"
)

// EmbeddingsDBHandlerFunctions defines the interface for the text embedding cache.
type EmbeddingsDBHandlerFunctions interface {
	SelectEmbedding(ctx context.Context, contentHash string, modelName string) ([]float32, error)
	UpsertEmbedding(ctx context.Context, contentHash string, modelName string, vector []float32) error
	DeleteEmbeddingsByModel(ctx context.Context, modelName string) (int64, error)
}

// EmbeddingsDBHandler stores post text embeddings keyed by content hash and model.
type EmbeddingsDBHandler struct {
	db           *helper.Database
	embeddingDim int
}

// NewEmbeddingsDBHandler creates a new embeddings database handler.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEmbeddingsDBHandler(db *helper.Database, embeddingDim int, force bool) (*EmbeddingsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	embeddingsDbHandler := &EmbeddingsDBHandler{
		db:           db,
		embeddingDim: embeddingDim,
	}

	err := loadSql.LoadEmbeddingsSql(embeddingsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load embeddings sql", err)
	}

	err = embeddingsDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EmbeddingsDBHandler")

	return embeddingsDbHandler, nil
}

// CreateTable creates the 'text_embeddings' table with a vector column of embeddingDim.
func (h *EmbeddingsDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_text_embeddings($1);`, embeddingDim)
	if err != nil {
		log.Panicf("error initializing text_embeddings table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table text_embeddings")

	return nil
}

// SelectEmbedding returns the cached embedding or nil if there is none.
func (h *EmbeddingsDBHandler) SelectEmbedding(ctx context.Context, contentHash string, modelName string) ([]float32, error) {
	var vector pgvector.Vector
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_text_embedding($1, $2)`,
		contentHash,
		modelName,
	).Scan(&vector)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return vector.Slice(), nil
}

// UpsertEmbedding stores vector for the content hash and model.
func (h *EmbeddingsDBHandler) UpsertEmbedding(ctx context.Context, contentHash string, modelName string, vector []float32) error {
	if len(vector) != h.embeddingDim {
		return helper.NewError("embedding validation", fmt.Errorf("embedding has dimension %d, expected %d", len(vector), h.embeddingDim))
	}

	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT upsert_text_embedding($1, $2, $3)`,
		contentHash,
		modelName,
		pgvector.NewVector(vector),
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// DeleteEmbeddingsByModel removes all cached embeddings of a model and
// returns how many were deleted.
func (h *EmbeddingsDBHandler) DeleteEmbeddingsByModel(ctx context.Context, modelName string) (int64, error) {
	var deleted int64
	err := h.db.Instance.QueryRowContext(ctx, `SELECT delete_text_embeddings_by_model($1)`, modelName).Scan(&deleted)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}
	return deleted, nil
}
