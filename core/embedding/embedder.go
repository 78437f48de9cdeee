package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/VinhGH/Lost-Found-PLatform-sub001/model"
	"golang.org/x/sync/singleflight"
)

// EmbedFunc is a function that generates embeddings for text
type EmbedFunc func(text string) ([]float32, error)

// Model is a loaded embedding backend.
type Model struct {
	Name  string
	Embed EmbedFunc
	// Close releases the backend. Optional.
	Close func() error
}

// LoadFunc loads an embedding backend.
type LoadFunc func() (*Model, error)

// Embedder turns text into unit-length vectors. The backend is loaded on first
// use; concurrent callers during loading share the same load.
type Embedder struct {
	load  LoadFunc
	group singleflight.Group

	mu    sync.RWMutex
	model *Model

	log *slog.Logger
}

// NewEmbedder creates an embedder that loads its backend lazily with load.
func NewEmbedder(load LoadFunc, logger *slog.Logger) *Embedder {
	return &Embedder{
		load: load,
		log:  logger,
	}
}

// NewEmbedderFromFunc wraps an already available EmbedFunc.
func NewEmbedderFromFunc(name string, embed EmbedFunc, logger *slog.Logger) *Embedder {
	return NewEmbedder(func() (*Model, error) {
		return &Model{Name: name, Embed: embed}, nil
	}, logger)
}

// Embed returns the L2-normalized embedding of text.
// It returns model.ErrModelUnavailable if the backend cannot be loaded and
// model.ErrEmbeddingFailed if the loaded backend fails for this text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m, err := e.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vector, err := m.Embed(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrEmbeddingFailed, err)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: no embedding generated", model.ErrEmbeddingFailed)
	}

	return Normalize(vector), nil
}

// ModelName returns the name of the loaded backend, loading it if necessary.
func (e *Embedder) ModelName(ctx context.Context) (string, error) {
	m, err := e.ensureLoaded(ctx)
	if err != nil {
		return "", err
	}
	return m.Name, nil
}

// Loaded reports whether the backend has been loaded.
func (e *Embedder) Loaded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model != nil
}

// Close releases the loaded backend. The next Embed loads it again.
func (e *Embedder) Close() error {
	e.mu.Lock()
	m := e.model
	e.model = nil
	e.mu.Unlock()

	if m != nil && m.Close != nil {
		return m.Close()
	}
	return nil
}

func (e *Embedder) ensureLoaded(ctx context.Context) (*Model, error) {
	e.mu.RLock()
	m := e.model
	e.mu.RUnlock()
	if m != nil {
		return m, nil
	}

	// A failed load is not stored, so the next caller retries.
	ch := e.group.DoChan("model", func() (interface{}, error) {
		e.mu.RLock()
		loaded := e.model
		e.mu.RUnlock()
		if loaded != nil {
			return loaded, nil
		}

		e.log.Info("Loading embedding model")
		loaded, err := e.load()
		if err != nil {
			e.log.Error("Failed to load embedding model", slog.Any("error", err))
			return nil, fmt.Errorf("%w: %v", model.ErrModelUnavailable, err)
		}
		if loaded == nil || loaded.Embed == nil {
			return nil, fmt.Errorf("%w: loader returned no model", model.ErrModelUnavailable)
		}

		e.mu.Lock()
		e.model = loaded
		e.mu.Unlock()

		e.log.Info("Loaded embedding model", slog.String("model", loaded.Name))
		return loaded, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Model), nil
	}
}
