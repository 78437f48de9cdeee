package database

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/VinhGH/Lost-Found-PLatform-sub001/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertPostPair(t *testing.T, postsDbHandler *PostsDBHandler) (*model.Post, *model.Post) {
	t.Helper()
	ctx := context.Background()

	lost := newTestPost(model.PostKindLost, 401, model.PostStatusApproved)
	found := newTestPost(model.PostKindFound, 402, model.PostStatusApproved)
	require.NoError(t, postsDbHandler.InsertPost(ctx, lost))
	require.NoError(t, postsDbHandler.InsertPost(ctx, found))

	t.Cleanup(func() {
		postsDbHandler.DeletePost(context.Background(), lost.ID)
		postsDbHandler.DeletePost(context.Background(), found.ID)
	})

	return lost, found
}

func newTestMatch(post1ID, post2ID int64, confidence float64) *model.Match {
	imageSim := 0.9
	return &model.Match{
		Post1ID:         post1ID,
		Post2ID:         post2ID,
		ConfidenceScore: confidence,
		Score: model.SimilarityScore{
			TextSimilarity:  0.25,
			ImageSimilarity: &imageSim,
			HasImages:       true,
			FinalSimilarity: confidence,
		},
	}
}

func TestMatchesNewMatchesDBHandler(t *testing.T) {
	database := initDB(t)

	t.Run("Valid call NewMatchesDBHandler", func(t *testing.T) {
		_, err := NewPostsDBHandler(database, true)
		require.NoError(t, err)

		matchesDbHandler, err := NewMatchesDBHandler(database, true)
		assert.NoError(t, err)
		require.NotNil(t, matchesDbHandler)
	})

	t.Run("Invalid call NewMatchesDBHandler with nil database", func(t *testing.T) {
		_, err := NewMatchesDBHandler(nil, false)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "database connection is nil")
	})
}

func TestMatchesInsert(t *testing.T) {
	database := initDB(t)
	ctx := context.Background()

	// Needed because a match references posts
	postsDbHandler, err := NewPostsDBHandler(database, true)
	require.NoError(t, err)
	matchesDbHandler, err := NewMatchesDBHandler(database, true)
	require.NoError(t, err)

	t.Run("Insert match", func(t *testing.T) {
		lost, found := insertPostPair(t, postsDbHandler)
		match := newTestMatch(lost.ID, found.ID, 0.575)

		created, err := matchesDbHandler.InsertMatch(ctx, match)
		require.NoError(t, err)
		assert.True(t, created)
		assert.NotZero(t, match.ID)
		assert.NotEqual(t, uuid.Nil, match.RID)
		assert.Equal(t, model.MatchStatusPending, match.Status)
		assert.WithinDuration(t, time.Now(), match.MatchedAt, 2*time.Second)
		require.NotNil(t, match.Score.ImageSimilarity)
		assert.Equal(t, 0.9, *match.Score.ImageSimilarity)
	})

	t.Run("Same pair in either order is not inserted twice", func(t *testing.T) {
		lost, found := insertPostPair(t, postsDbHandler)

		created, err := matchesDbHandler.InsertMatch(ctx, newTestMatch(lost.ID, found.ID, 0.5))
		require.NoError(t, err)
		assert.True(t, created)

		created, err = matchesDbHandler.InsertMatch(ctx, newTestMatch(lost.ID, found.ID, 0.6))
		require.NoError(t, err)
		assert.False(t, created)

		created, err = matchesDbHandler.InsertMatch(ctx, newTestMatch(found.ID, lost.ID, 0.7))
		require.NoError(t, err)
		assert.False(t, created)

		matches, err := matchesDbHandler.SelectMatchesByPost(ctx, lost.ID)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, 0.5, matches[0].ConfidenceScore)
	})

	t.Run("Concurrent inserts of one pair create one match", func(t *testing.T) {
		lost, found := insertPostPair(t, postsDbHandler)

		var wg sync.WaitGroup
		var mu sync.Mutex
		createdCount := 0
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				created, err := matchesDbHandler.InsertMatch(ctx, newTestMatch(lost.ID, found.ID, 0.5))
				if err != nil {
					assert.ErrorIs(t, err, model.ErrDuplicateMatch)
					return
				}
				if created {
					mu.Lock()
					createdCount++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, createdCount)
	})

	t.Run("Confidence outside the unit interval is rejected", func(t *testing.T) {
		lost, found := insertPostPair(t, postsDbHandler)
		_, err := matchesDbHandler.InsertMatch(ctx, newTestMatch(lost.ID, found.ID, 1.5))
		assert.Error(t, err)
	})
}

func TestMatchesSelectUpdateDelete(t *testing.T) {
	database := initDB(t)
	ctx := context.Background()

	postsDbHandler, err := NewPostsDBHandler(database, true)
	require.NoError(t, err)
	matchesDbHandler, err := NewMatchesDBHandler(database, true)
	require.NoError(t, err)

	lost, found := insertPostPair(t, postsDbHandler)
	match := newTestMatch(lost.ID, found.ID, 0.42)
	_, err = matchesDbHandler.InsertMatch(ctx, match)
	require.NoError(t, err)

	t.Run("Select match", func(t *testing.T) {
		selected, err := matchesDbHandler.SelectMatch(ctx, match.RID)
		require.NoError(t, err)
		assert.Equal(t, match.ID, selected.ID)
		assert.Equal(t, lost.ID, selected.Post1ID)
		assert.Equal(t, found.ID, selected.Post2ID)
		assert.Equal(t, 0.42, selected.ConfidenceScore)
	})

	t.Run("Select matches by either post", func(t *testing.T) {
		byLost, err := matchesDbHandler.SelectMatchesByPost(ctx, lost.ID)
		require.NoError(t, err)
		byFound, err := matchesDbHandler.SelectMatchesByPost(ctx, found.ID)
		require.NoError(t, err)
		assert.Len(t, byLost, 1)
		assert.Len(t, byFound, 1)
	})

	t.Run("Recently matched post ids", func(t *testing.T) {
		ids, err := matchesDbHandler.SelectPostIDsWithRecentMatches(ctx, 24*time.Hour)
		require.NoError(t, err)
		assert.True(t, ids[lost.ID])
		assert.True(t, ids[found.ID])
	})

	t.Run("Old matches are outside the window", func(t *testing.T) {
		_, err := database.Instance.ExecContext(ctx, `UPDATE matches SET matched_at = NOW() - INTERVAL '2 days' WHERE rid = $1`, match.RID)
		require.NoError(t, err)

		ids, err := matchesDbHandler.SelectPostIDsWithRecentMatches(ctx, 24*time.Hour)
		require.NoError(t, err)
		assert.False(t, ids[lost.ID])
	})

	t.Run("Update match", func(t *testing.T) {
		updated, err := matchesDbHandler.UpdateMatch(ctx, match.RID, model.MatchStatusConfirmed, 0.9)
		require.NoError(t, err)
		assert.Equal(t, model.MatchStatusConfirmed, updated.Status)
		assert.Equal(t, 0.9, updated.ConfidenceScore)
		assert.True(t, updated.UpdatedAt.After(updated.MatchedAt))
	})

	t.Run("Update missing match", func(t *testing.T) {
		_, err := matchesDbHandler.UpdateMatch(ctx, uuid.New(), model.MatchStatusConfirmed, 0.9)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Delete match", func(t *testing.T) {
		require.NoError(t, matchesDbHandler.DeleteMatch(ctx, match.RID))
		_, err := matchesDbHandler.SelectMatch(ctx, match.RID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
