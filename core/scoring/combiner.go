package scoring

import (
	"math"

	"github.com/VinhGH/Lost-Found-PLatform-sub001/model"
)

// Combiner merges text and image similarity into the final score and decides
// whether a pair is a match.
type Combiner struct {
	textWeight  float64
	imageWeight float64
	threshold   float64
}

// NewCombiner creates a Combiner from the scoring part of config.
func NewCombiner(config model.MatchConfig) *Combiner {
	return &Combiner{
		textWeight:  config.TextWeight,
		imageWeight: config.ImageWeight,
		threshold:   config.SimilarityThreshold,
	}
}

// Combine returns the final similarity. Without images the text similarity is
// used as is rather than weighted against a zero image score.
func (c *Combiner) Combine(textSim float64, hasImages bool, imageSim float64) float64 {
	if !hasImages {
		return clamp(textSim)
	}
	return clamp(c.textWeight*textSim + c.imageWeight*imageSim)
}

// IsAccepted reports whether finalSim is strictly above the threshold.
func (c *Combiner) IsAccepted(finalSim float64) bool {
	return finalSim > c.threshold
}

// Score builds the full score breakdown of a pair.
func (c *Combiner) Score(textSim float64, hasImages bool, imageSim float64) model.SimilarityScore {
	score := model.SimilarityScore{
		TextSimilarity: clamp(textSim),
		HasImages:      hasImages,
	}
	if hasImages {
		imageSim = clamp(imageSim)
		score.ImageSimilarity = &imageSim
	}
	score.FinalSimilarity = c.Combine(score.TextSimilarity, hasImages, imageSim)
	return score
}

// Threshold returns the acceptance threshold.
func (c *Combiner) Threshold() float64 {
	return c.threshold
}

// clamp maps a similarity into [0,1]. Negative cosine similarity carries no
// matching signal and counts as 0.
func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
