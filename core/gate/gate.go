package gate

import (
	"context"
	"errors"
	"log/slog"

	"github.com/VinhGH/Lost-Found-PLatform-sub001/model"
)

// MatchStore writes match records. InsertMatch returns false without error if
// a match for the same unordered pair already exists.
type MatchStore interface {
	InsertMatch(ctx context.Context, match *model.Match) (bool, error)
}

// Notifier is informed about every newly created match.
type Notifier interface {
	MatchCreated(ctx context.Context, event *model.MatchCreatedEvent) error
}

// Gate records accepted matches exactly once per unordered post pair.
type Gate struct {
	store    MatchStore
	notifier Notifier
	log      *slog.Logger
}

// NewGate creates a Gate. notifier may be nil.
func NewGate(store MatchStore, notifier Notifier, logger *slog.Logger) *Gate {
	return &Gate{
		store:    store,
		notifier: notifier,
		log:      logger,
	}
}

// SetNotifier replaces the notifier.
func (g *Gate) SetNotifier(notifier Notifier) {
	g.notifier = notifier
}

// RecordMatches writes one match per accepted pair. Pairs that are already
// recorded count as success. A failing write does not stop the others: the
// result lists what was persisted and the error is a
// *model.PartialPersistenceError describing the failures.
// If ctx is done the remaining pairs are reported as failed; matches written
// before stay valid.
func (g *Gate) RecordMatches(ctx context.Context, accepted []*model.AcceptedMatch) (*model.PersistResult, error) {
	result := &model.PersistResult{
		Persisted: []*model.Match{},
	}

	seen := make(map[string]bool, len(accepted))
	attempted := 0

	for _, a := range accepted {
		if a == nil || a.Post1 == nil || a.Post2 == nil {
			continue
		}
		if seen[a.Key()] {
			result.AlreadyRecorded++
			continue
		}
		seen[a.Key()] = true
		attempted++

		if err := ctx.Err(); err != nil {
			result.Failures = append(result.Failures, model.MatchFailure{Post1ID: a.Post1.ID, Post2ID: a.Post2.ID, Err: err})
			continue
		}

		match := model.NewMatch(a)
		created, err := g.store.InsertMatch(ctx, match)
		if err != nil && !errors.Is(err, model.ErrDuplicateMatch) {
			g.log.Error(
				"Failed to persist match",
				slog.Int64("post1_id", a.Post1.ID),
				slog.Int64("post2_id", a.Post2.ID),
				slog.Any("error", err),
			)
			result.Failures = append(result.Failures, model.MatchFailure{Post1ID: a.Post1.ID, Post2ID: a.Post2.ID, Err: err})
			continue
		}
		if err != nil || !created {
			g.log.Debug("Match already recorded", slog.String("pair", a.Key()))
			result.AlreadyRecorded++
			continue
		}

		result.Persisted = append(result.Persisted, match)
		g.log.Info(
			"Persisted match",
			slog.Int64("match_id", match.ID),
			slog.Int64("post1_id", match.Post1ID),
			slog.Int64("post2_id", match.Post2ID),
			slog.Float64("confidence_score", match.ConfidenceScore),
		)

		g.notify(ctx, match, a)
	}

	if len(result.Failures) > 0 {
		return result, &model.PartialPersistenceError{
			Attempted: attempted,
			Failures:  result.Failures,
		}
	}

	return result, nil
}

// notify never fails the write; the match stays recorded either way.
func (g *Gate) notify(ctx context.Context, match *model.Match, accepted *model.AcceptedMatch) {
	if g.notifier == nil {
		return
	}

	if err := g.notifier.MatchCreated(ctx, model.NewMatchCreatedEvent(match, accepted)); err != nil {
		g.log.Warn("Failed to notify about match", slog.Int64("match_id", match.ID), slog.Any("error", err))
	}
}
