package imaging

import (
	"context"
	"fmt"
	"time"

	"github.com/VinhGH/Lost-Found-PLatform-sub001/helper"
)

// ProviderConfig selects and configures the vision backend.
type ProviderConfig struct {
	Provider     string // "openai", "gemini" or "" for none
	OpenAIAPIKey string
	OpenAIModel  string
	GeminiAPIKey string
	GeminiModel  string
	FetchTimeout time.Duration
	S3           *S3Config
}

// NewProviderConfigFromEnv reads VISION_PROVIDER, OPENAI_* and GEMINI_*
// environment variables.
func NewProviderConfigFromEnv() *ProviderConfig {
	return &ProviderConfig{
		Provider:     helper.GetEnvString("VISION_PROVIDER", ""),
		OpenAIAPIKey: helper.GetEnvString("OPENAI_API_KEY", ""),
		OpenAIModel:  helper.GetEnvString("OPENAI_VISION_MODEL", "gpt-4o-mini"),
		GeminiAPIKey: helper.GetEnvString("GEMINI_API_KEY", ""),
		GeminiModel:  helper.GetEnvString("GEMINI_VISION_MODEL", "gemini-2.0-flash"),
		FetchTimeout: helper.GetEnvDuration("VISION_FETCH_TIMEOUT", 15*time.Second),
		S3:           NewS3ConfigFromEnv(),
	}
}

// NewPairScoreFunc builds the PairScoreFunc for the configured provider.
// It returns nil without error if no provider is configured.
func NewPairScoreFunc(ctx context.Context, config *ProviderConfig) (PairScoreFunc, error) {
	if config.Provider == "" {
		return nil, nil
	}

	fetcher := &URLFetcher{HTTP: NewHTTPFetcher(config.FetchTimeout)}
	if config.S3 != nil {
		s3, err := NewMinioFetcher(config.S3)
		if err != nil {
			return nil, helper.NewError("minio fetcher", err)
		}
		fetcher.S3 = s3
	}

	switch config.Provider {
	case "openai":
		if config.OpenAIAPIKey == "" {
			return nil, helper.NewError("openai scorer", fmt.Errorf("OPENAI_API_KEY is not set"))
		}
		return NewOpenAIPairScorer(config.OpenAIAPIKey, config.OpenAIModel, fetcher), nil
	case "gemini":
		if config.GeminiAPIKey == "" {
			return nil, helper.NewError("gemini scorer", fmt.Errorf("GEMINI_API_KEY is not set"))
		}
		score, err := NewGeminiPairScorer(ctx, config.GeminiAPIKey, config.GeminiModel, fetcher)
		if err != nil {
			return nil, helper.NewError("gemini scorer", err)
		}
		return score, nil
	default:
		return nil, helper.NewError("vision provider", fmt.Errorf("unknown provider %q", config.Provider))
	}
}
