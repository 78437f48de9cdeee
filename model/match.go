package model

import (
	"time"

	"github.com/google/uuid"
)

// MatchStatus is the lifecycle state of a persisted match.
type MatchStatus string

const (
	MatchStatusPending   MatchStatus = "pending"
	MatchStatusConfirmed MatchStatus = "confirmed"
	MatchStatusDismissed MatchStatus = "dismissed"
)

// Match is a persisted lost/found match.
type Match struct {
	ID              int64           `json:"id"`
	RID             uuid.UUID       `json:"rid"`
	Post1ID         int64           `json:"post1_id"`
	Post2ID         int64           `json:"post2_id"`
	ConfidenceScore float64         `json:"confidence_score"`
	Score           SimilarityScore `json:"score"`
	Status          MatchStatus     `json:"status"`
	MatchedAt       time.Time       `json:"matched_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewMatch builds the match record written for an accepted pair.
func NewMatch(accepted *AcceptedMatch) *Match {
	return &Match{
		Post1ID:         accepted.Post1.ID,
		Post2ID:         accepted.Post2.ID,
		ConfidenceScore: accepted.Score.FinalSimilarity,
		Score:           accepted.Score,
		Status:          MatchStatusPending,
	}
}

// MatchCreatedEvent is emitted once for every newly persisted match.
type MatchCreatedEvent struct {
	MatchID         int64     `json:"match_id"`
	MatchRID        uuid.UUID `json:"match_rid"`
	Post1ID         int64     `json:"post1_id"`
	Post2ID         int64     `json:"post2_id"`
	Post1Title      string    `json:"post1_title"`
	Post2Title      string    `json:"post2_title"`
	Owner1AccountID int64     `json:"owner1_account_id"`
	Owner2AccountID int64     `json:"owner2_account_id"`
	ConfidenceScore float64   `json:"confidence_score"`
	MatchedAt       time.Time `json:"matched_at"`
}

// NewMatchCreatedEvent combines the persisted match with its participants.
func NewMatchCreatedEvent(match *Match, accepted *AcceptedMatch) *MatchCreatedEvent {
	return &MatchCreatedEvent{
		MatchID:         match.ID,
		MatchRID:        match.RID,
		Post1ID:         accepted.Post1.ID,
		Post2ID:         accepted.Post2.ID,
		Post1Title:      accepted.Post1.Title,
		Post2Title:      accepted.Post2.Title,
		Owner1AccountID: accepted.Post1.OwnerAccountID,
		Owner2AccountID: accepted.Post2.OwnerAccountID,
		ConfidenceScore: match.ConfidenceScore,
		MatchedAt:       match.MatchedAt,
	}
}
