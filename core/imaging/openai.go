package imaging

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// NewOpenAIPairScorer compares two images with an OpenAI vision model.
// http(s) URLs are passed to the API as is, other URLs are downloaded with
// fetcher and sent inline.
func NewOpenAIPairScorer(apiKey string, modelName string, fetcher Fetcher) PairScoreFunc {
	client := openai.NewClient(option.WithAPIKey(apiKey))

	return func(ctx context.Context, urlA string, urlB string) (float64, error) {
		imageA, err := openAIImageURL(ctx, urlA, fetcher)
		if err != nil {
			return 0, err
		}
		imageB, err := openAIImageURL(ctx, urlB, fetcher)
		if err != nil {
			return 0, err
		}

		completion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: openai.ChatModel(modelName),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
					openai.TextContentPart(similarityPrompt),
					openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: imageA, Detail: "low"}),
					openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: imageB, Detail: "low"}),
				}),
			},
			Temperature: openai.Float(0),
		})
		if err != nil {
			return 0, fmt.Errorf("openai chat completion: %w", err)
		}
		if len(completion.Choices) == 0 {
			return 0, fmt.Errorf("openai returned no choices")
		}

		return parseSimilarity(completion.Choices[0].Message.Content)
	}
}

func openAIImageURL(ctx context.Context, imageURL string, fetcher Fetcher) (string, error) {
	if strings.HasPrefix(imageURL, "http://") || strings.HasPrefix(imageURL, "https://") {
		return imageURL, nil
	}
	if fetcher == nil {
		return "", fmt.Errorf("cannot inline image %s without a fetcher", imageURL)
	}

	data, mimeType, err := fetcher.Fetch(ctx, imageURL)
	if err != nil {
		return "", err
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
