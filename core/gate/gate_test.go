package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/VinhGH/Lost-Found-PLatform-sub001/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// memoryStore enforces uniqueness per unordered pair like the matches table.
type memoryStore struct {
	mu      sync.Mutex
	matches map[string]*model.Match
	nextID  int64
	fail    map[string]error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{matches: map[string]*model.Match{}, fail: map[string]error{}}
}

func (s *memoryStore) InsertMatch(ctx context.Context, match *model.Match) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := model.PairKey(match.Post1ID, match.Post2ID)
	if err, ok := s.fail[key]; ok {
		return false, err
	}
	if _, ok := s.matches[key]; ok {
		return false, nil
	}
	s.nextID++
	match.ID = s.nextID
	s.matches[key] = match
	return true, nil
}

type recordingNotifier struct {
	events []*model.MatchCreatedEvent
	err    error
}

func (n *recordingNotifier) MatchCreated(ctx context.Context, event *model.MatchCreatedEvent) error {
	n.events = append(n.events, event)
	return n.err
}

func accepted(lostID, foundID int64, final float64) *model.AcceptedMatch {
	return &model.AcceptedMatch{
		Post1: &model.Post{ID: lostID, Kind: model.PostKindLost, Title: fmt.Sprintf("Lost %d", lostID), OwnerAccountID: lostID * 10},
		Post2: &model.Post{ID: foundID, Kind: model.PostKindFound, Title: fmt.Sprintf("Found %d", foundID), OwnerAccountID: foundID * 10},
		Score: model.SimilarityScore{TextSimilarity: final, FinalSimilarity: final},
	}
}

func TestRecordMatches(t *testing.T) {
	t.Run("Accepted pairs are written with the final similarity", func(t *testing.T) {
		store := newMemoryStore()
		g := NewGate(store, nil, testLogger())

		result, err := g.RecordMatches(context.Background(), []*model.AcceptedMatch{accepted(1, 2, 0.42), accepted(3, 4, 0.8)})
		require.NoError(t, err)
		require.Len(t, result.Persisted, 2)
		assert.Equal(t, 0.42, result.Persisted[0].ConfidenceScore)
		assert.Equal(t, int64(1), result.Persisted[0].Post1ID)
		assert.Equal(t, int64(2), result.Persisted[0].Post2ID)
		assert.Equal(t, model.MatchStatusPending, result.Persisted[0].Status)
		assert.Zero(t, result.AlreadyRecorded)
	})

	t.Run("Recording twice creates one match", func(t *testing.T) {
		store := newMemoryStore()
		g := NewGate(store, nil, testLogger())

		first, err := g.RecordMatches(context.Background(), []*model.AcceptedMatch{accepted(1, 2, 0.5)})
		require.NoError(t, err)
		second, err := g.RecordMatches(context.Background(), []*model.AcceptedMatch{accepted(1, 2, 0.5)})
		require.NoError(t, err)

		assert.Len(t, first.Persisted, 1)
		assert.Empty(t, second.Persisted)
		assert.Equal(t, 1, second.AlreadyRecorded)
		assert.Len(t, store.matches, 1)
	})

	t.Run("Duplicates within one call are written once", func(t *testing.T) {
		store := newMemoryStore()
		g := NewGate(store, nil, testLogger())

		result, err := g.RecordMatches(context.Background(), []*model.AcceptedMatch{accepted(1, 2, 0.5), accepted(1, 2, 0.5)})
		require.NoError(t, err)
		assert.Len(t, result.Persisted, 1)
		assert.Equal(t, 1, result.AlreadyRecorded)
	})

	t.Run("Duplicate error from the store counts as recorded", func(t *testing.T) {
		store := newMemoryStore()
		store.fail[model.PairKey(1, 2)] = fmt.Errorf("insert: %w", model.ErrDuplicateMatch)
		g := NewGate(store, nil, testLogger())

		result, err := g.RecordMatches(context.Background(), []*model.AcceptedMatch{accepted(1, 2, 0.5)})
		require.NoError(t, err)
		assert.Equal(t, 1, result.AlreadyRecorded)
	})

	t.Run("Partial failure keeps the successful writes", func(t *testing.T) {
		store := newMemoryStore()
		store.fail[model.PairKey(3, 4)] = errors.New("connection reset")
		g := NewGate(store, nil, testLogger())

		result, err := g.RecordMatches(context.Background(), []*model.AcceptedMatch{
			accepted(1, 2, 0.5), accepted(3, 4, 0.6), accepted(5, 6, 0.7),
		})
		require.Error(t, err)

		var partial *model.PartialPersistenceError
		require.ErrorAs(t, err, &partial)
		assert.Equal(t, 3, partial.Attempted)
		require.Len(t, partial.Failures, 1)
		assert.Equal(t, int64(3), partial.Failures[0].Post1ID)
		assert.Equal(t, int64(4), partial.Failures[0].Post2ID)

		require.NotNil(t, result)
		assert.Len(t, result.Persisted, 2)
		assert.Len(t, result.Failures, 1)
		assert.Len(t, store.matches, 2)
	})

	t.Run("Canceled context fails the remaining pairs", func(t *testing.T) {
		store := newMemoryStore()
		g := NewGate(store, nil, testLogger())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := g.RecordMatches(ctx, []*model.AcceptedMatch{accepted(1, 2, 0.5)})
		var partial *model.PartialPersistenceError
		require.ErrorAs(t, err, &partial)
		assert.ErrorIs(t, partial.Failures[0].Err, context.Canceled)
		assert.Empty(t, result.Persisted)
		assert.Empty(t, store.matches)
	})

	t.Run("Empty input", func(t *testing.T) {
		g := NewGate(newMemoryStore(), nil, testLogger())

		result, err := g.RecordMatches(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, result.Persisted)
	})
}

func TestRecordMatchesNotifications(t *testing.T) {
	t.Run("Only new matches are announced", func(t *testing.T) {
		notifier := &recordingNotifier{}
		g := NewGate(newMemoryStore(), notifier, testLogger())

		_, err := g.RecordMatches(context.Background(), []*model.AcceptedMatch{accepted(1, 2, 0.5)})
		require.NoError(t, err)
		_, err = g.RecordMatches(context.Background(), []*model.AcceptedMatch{accepted(1, 2, 0.5)})
		require.NoError(t, err)

		require.Len(t, notifier.events, 1)
		event := notifier.events[0]
		assert.Equal(t, int64(1), event.MatchID)
		assert.Equal(t, "Lost 1", event.Post1Title)
		assert.Equal(t, "Found 2", event.Post2Title)
		assert.Equal(t, int64(10), event.Owner1AccountID)
		assert.Equal(t, int64(20), event.Owner2AccountID)
		assert.Equal(t, 0.5, event.ConfidenceScore)
	})

	t.Run("Notifier failure does not undo the match", func(t *testing.T) {
		store := newMemoryStore()
		notifier := &recordingNotifier{err: errors.New("queue down")}
		g := NewGate(store, notifier, testLogger())

		result, err := g.RecordMatches(context.Background(), []*model.AcceptedMatch{accepted(1, 2, 0.5)})
		require.NoError(t, err)
		assert.Len(t, result.Persisted, 1)
		assert.Len(t, store.matches, 1)
	})

	t.Run("SetNotifier replaces the notifier", func(t *testing.T) {
		notifier := &recordingNotifier{}
		g := NewGate(newMemoryStore(), nil, testLogger())
		g.SetNotifier(notifier)

		_, err := g.RecordMatches(context.Background(), []*model.AcceptedMatch{accepted(1, 2, 0.5)})
		require.NoError(t, err)
		assert.Len(t, notifier.events, 1)
	})
}
