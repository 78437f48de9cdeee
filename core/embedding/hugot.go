package embedding

import (
	"fmt"

	"github.com/VinhGH/Lost-Found-PLatform-sub001/helper"
	"github.com/knights-analytics/hugot"
)

// DefaultLoader returns a LoadFunc running a sentence transformer with hugot's
// Go backend. The multilingual MiniLM model produces 384-dimensional embeddings
// and handles Vietnamese post texts.
func DefaultLoader(modelName string) LoadFunc {
	return func() (*Model, error) {
		// Prepare model (download if needed)
		modelPath, err := helper.PrepareModel(modelName, "onnx/model.onnx")
		if err != nil {
			return nil, err
		}

		session, err := hugot.NewGoSession()
		if err != nil {
			return nil, fmt.Errorf("failed to create hugot session: %w", err)
		}

		config := hugot.FeatureExtractionConfig{
			ModelPath: modelPath,
			Name:      "post-embedder-pipeline",
		}
		sentencePipeline, err := hugot.NewPipeline(session, config)
		if err != nil {
			if destroyErr := session.Destroy(); destroyErr != nil {
				return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
			}
			return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
		}

		embed := func(text string) ([]float32, error) {
			result, err := sentencePipeline.RunPipeline([]string{text})
			if err != nil {
				return nil, fmt.Errorf("failed to generate embedding: %w", err)
			}

			if len(result.Embeddings) == 0 {
				return nil, fmt.Errorf("no embedding generated")
			}

			return result.Embeddings[0], nil
		}

		return &Model{
			Name:  modelName,
			Embed: embed,
			Close: session.Destroy,
		}, nil
	}
}
