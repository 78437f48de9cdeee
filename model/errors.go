package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrModelUnavailable means the embedding model failed to load. Scans abort on it.
	ErrModelUnavailable = errors.New("embedding model unavailable")
	// ErrEmbeddingFailed means the model was loaded but failed for a single text.
	ErrEmbeddingFailed = errors.New("embedding failed")
	// ErrImageScoring means a single image pair could not be compared.
	ErrImageScoring = errors.New("image scoring failed")
	// ErrDuplicateMatch means a match for the same pair of posts already exists.
	ErrDuplicateMatch = errors.New("match already recorded")
	// ErrPostNotApproved means a scan was requested for a post that is not approved.
	ErrPostNotApproved = errors.New("post is not approved")
	// ErrInvalidPair means two posts cannot form a lost/found candidate pair.
	ErrInvalidPair = errors.New("invalid candidate pair")
	// ErrInvalidConfig means the match configuration failed validation.
	ErrInvalidConfig = errors.New("invalid match configuration")
)

// MatchFailure is a single accepted match that could not be persisted.
type MatchFailure struct {
	Post1ID int64 `json:"post1_id"`
	Post2ID int64 `json:"post2_id"`
	Err     error `json:"-"`
}

// PartialPersistenceError reports the matches of a batch that failed to persist.
// Matches not listed were recorded.
type PartialPersistenceError struct {
	Attempted int
	Failures  []MatchFailure
}

func (e *PartialPersistenceError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, fmt.Sprintf("(%d, %d): %v", f.Post1ID, f.Post2ID, f.Err))
	}
	return fmt.Sprintf("failed to persist %d of %d matches: %s", len(e.Failures), e.Attempted, strings.Join(msgs, "; "))
}

// Unwrap exposes the individual failure causes to errors.Is and errors.As.
func (e *PartialPersistenceError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
