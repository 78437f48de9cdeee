package model

import (
	"fmt"
	"math"
	"time"

	"github.com/VinhGH/Lost-Found-PLatform-sub001/helper"
)

// MatchConfig holds the tunable parameters of the matching pipeline.
// The defaults were chosen empirically and can be tuned per deployment.
type MatchConfig struct {
	// Scoring
	SimilarityThreshold float64 `json:"similarity_threshold"`
	TextWeight          float64 `json:"text_weight"`
	ImageWeight         float64 `json:"image_weight"`

	// Batch scan windows
	RecencyWindow     time.Duration `json:"recency_window"`      // Posts older than this are skipped by batch scans
	RecentMatchWindow time.Duration `json:"recent_match_window"` // Posts matched within this window are excluded from batch scans

	// External image scoring
	RateLimitPerMinute int           `json:"rate_limit_per_minute"`
	CacheTTL           time.Duration `json:"cache_ttl"`

	// Execution
	ScanConcurrency int           `json:"scan_concurrency"`
	ScanTimeout     time.Duration `json:"scan_timeout"`
	ScanSchedule    string        `json:"scan_schedule"`

	// Text embeddings
	EmbeddingModel string `json:"embedding_model"`
	EmbeddingDim   int    `json:"embedding_dim"`
}

// DefaultMatchConfig returns the default configuration
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		SimilarityThreshold: 0.3,
		TextWeight:          0.5,
		ImageWeight:         0.5,
		RecencyWindow:       30 * 24 * time.Hour,
		RecentMatchWindow:   24 * time.Hour,
		RateLimitPerMinute:  60,
		CacheTTL:            24 * time.Hour,
		ScanConcurrency:     4,
		ScanTimeout:         5 * time.Minute,
		ScanSchedule:        "@every 1h",
		EmbeddingModel:      "sentence-transformers/paraphrase-multilingual-MiniLM-L12-v2",
		EmbeddingDim:        384,
	}
}

// NewMatchConfigFromEnv reads the configuration from MATCH_* environment
// variables, falling back to DefaultMatchConfig for unset values.
func NewMatchConfigFromEnv() (*MatchConfig, error) {
	def := DefaultMatchConfig()
	config := &MatchConfig{
		SimilarityThreshold: helper.GetEnvFloat("MATCH_SIMILARITY_THRESHOLD", def.SimilarityThreshold),
		TextWeight:          helper.GetEnvFloat("MATCH_TEXT_WEIGHT", def.TextWeight),
		ImageWeight:         helper.GetEnvFloat("MATCH_IMAGE_WEIGHT", def.ImageWeight),
		RecencyWindow:       helper.GetEnvDuration("MATCH_RECENCY_WINDOW", def.RecencyWindow),
		RecentMatchWindow:   helper.GetEnvDuration("MATCH_RECENT_MATCH_WINDOW", def.RecentMatchWindow),
		RateLimitPerMinute:  helper.GetEnvInt("MATCH_RATE_LIMIT_PER_MINUTE", def.RateLimitPerMinute),
		CacheTTL:            helper.GetEnvDuration("MATCH_CACHE_TTL", def.CacheTTL),
		ScanConcurrency:     helper.GetEnvInt("MATCH_SCAN_CONCURRENCY", def.ScanConcurrency),
		ScanTimeout:         helper.GetEnvDuration("MATCH_SCAN_TIMEOUT", def.ScanTimeout),
		ScanSchedule:        helper.GetEnvString("MATCH_SCAN_SCHEDULE", def.ScanSchedule),
		EmbeddingModel:      helper.GetEnvString("MATCH_EMBEDDING_MODEL", def.EmbeddingModel),
		EmbeddingDim:        helper.GetEnvInt("MATCH_EMBEDDING_DIM", def.EmbeddingDim),
	}

	if err := config.Validate(); err != nil {
		return nil, helper.NewError("match configuration", err)
	}
	return config, nil
}

// Validate checks ranges and that the weights sum to 1.
func (c *MatchConfig) Validate() error {
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity threshold %v outside [0,1]", ErrInvalidConfig, c.SimilarityThreshold)
	}
	if c.TextWeight < 0 || c.ImageWeight < 0 {
		return fmt.Errorf("%w: weights must not be negative", ErrInvalidConfig)
	}
	if math.Abs(c.TextWeight+c.ImageWeight-1) > 1e-9 {
		return fmt.Errorf("%w: text weight %v and image weight %v must sum to 1", ErrInvalidConfig, c.TextWeight, c.ImageWeight)
	}
	if c.RecencyWindow <= 0 || c.RecentMatchWindow <= 0 || c.CacheTTL <= 0 || c.ScanTimeout <= 0 {
		return fmt.Errorf("%w: windows, cache ttl and scan timeout must be positive", ErrInvalidConfig)
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("%w: rate limit must be positive", ErrInvalidConfig)
	}
	if c.ScanConcurrency <= 0 {
		return fmt.Errorf("%w: scan concurrency must be positive", ErrInvalidConfig)
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("%w: embedding dimension must be positive", ErrInvalidConfig)
	}
	return nil
}
