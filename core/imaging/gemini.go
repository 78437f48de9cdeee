package imaging

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// NewGeminiPairScorer compares two images with a Gemini model. Both images are
// downloaded with fetcher and sent inline.
func NewGeminiPairScorer(ctx context.Context, apiKey string, modelName string, fetcher Fetcher) (PairScoreFunc, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
	}

	return func(ctx context.Context, urlA string, urlB string) (float64, error) {
		dataA, mimeA, err := fetcher.Fetch(ctx, urlA)
		if err != nil {
			return 0, err
		}
		dataB, mimeB, err := fetcher.Fetch(ctx, urlB)
		if err != nil {
			return 0, err
		}

		parts := []*genai.Part{
			genai.NewPartFromText(similarityPrompt),
			genai.NewPartFromBytes(dataA, mimeA),
			genai.NewPartFromBytes(dataB, mimeB),
		}
		contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

		resp, err := client.Models.GenerateContent(ctx, modelName, contents, config)
		if err != nil {
			return 0, fmt.Errorf("gemini generate content: %w", err)
		}

		return parseSimilarity(resp.Text())
	}, nil
}
