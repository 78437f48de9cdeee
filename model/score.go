package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/VinhGH/Lost-Found-PLatform-sub001/helper"
)

// SimilarityScore is the score breakdown of a candidate pair.
// ImageSimilarity is nil when the pair has no image signal.
type SimilarityScore struct {
	TextSimilarity  float64  `json:"text_similarity"`
	ImageSimilarity *float64 `json:"image_similarity,omitempty"`
	HasImages       bool     `json:"has_images"`
	FinalSimilarity float64  `json:"final_similarity"`
}

// Value implements the driver.Valuer interface for JSONB storage
func (s SimilarityScore) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements the sql.Scanner interface for JSONB retrieval
func (s *SimilarityScore) Scan(value interface{}) error {
	if value == nil {
		*s = SimilarityScore{}
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return helper.NewError("byte assertion", errors.New("type assertion to []byte failed"))
	}

	return json.Unmarshal(b, s)
}

// AcceptedMatch is a candidate pair whose final similarity passed the threshold.
// Post1 is always the lost post and Post2 the found post.
type AcceptedMatch struct {
	Post1 *Post           `json:"post1"`
	Post2 *Post           `json:"post2"`
	Score SimilarityScore `json:"score"`
}

// NewAcceptedMatch creates an accepted match from a candidate pair and its score.
func NewAcceptedMatch(pair *CandidatePair, score SimilarityScore) *AcceptedMatch {
	return &AcceptedMatch{
		Post1: pair.Lost,
		Post2: pair.Found,
		Score: score,
	}
}

// Key returns the order-independent key of the matched pair.
func (a *AcceptedMatch) Key() string {
	return PairKey(a.Post1.ID, a.Post2.ID)
}
