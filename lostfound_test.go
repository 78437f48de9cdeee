package lostfound

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/VinhGH/Lost-Found-PLatform-sub001/core/embedding"
	"github.com/VinhGH/Lost-Found-PLatform-sub001/core/notify"
	"github.com/VinhGH/Lost-Found-PLatform-sub001/core/queue"
	"github.com/VinhGH/Lost-Found-PLatform-sub001/helper"
	"github.com/VinhGH/Lost-Found-PLatform-sub001/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEmbedder creates a deterministic bag of words embedder for testing.
// Texts sharing no words are orthogonal, identical texts are identical.
func testEmbedder(dimension int) embedding.LoadFunc {
	return func() (*embedding.Model, error) {
		return &embedding.Model{
			Name: "test-bow",
			Embed: func(text string) ([]float32, error) {
				vector := make([]float32, dimension)
				for _, word := range strings.Fields(text) {
					h := fnv.New32a()
					_, _ = h.Write([]byte(word))
					vector[h.Sum32()%uint32(dimension)]++
				}
				return vector, nil
			},
		}, nil
	}
}

func initMatcher(t *testing.T) *Matcher {
	helper.SetTestDatabaseConfigEnvs(t, dbPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err, "failed to create database configuration")

	m, err := NewMatcher(dbConfig, model.DefaultMatchConfig())
	require.NoError(t, err, "failed to create matcher")
	m.SetEmbedder("test-bow", testEmbedder(m.Config.EmbeddingDim))

	// Isolate tests sharing the container
	_, err = m.DB.Instance.Exec(`TRUNCATE matches, posts RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	t.Cleanup(func() {
		m.Close()
	})

	return m
}

func insertPost(t *testing.T, m *Matcher, kind model.PostKind, owner int64, status model.PostStatus, title string, images ...string) *model.Post {
	t.Helper()
	post := &model.Post{
		Kind:           kind,
		Title:          title,
		OwnerAccountID: owner,
		Status:         status,
		ImageURLs:      images,
	}
	require.NoError(t, m.Posts.InsertPost(context.Background(), post))
	return post
}

func TestNewMatcher(t *testing.T) {
	helper.SetTestDatabaseConfigEnvs(t, dbPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err)

	t.Run("Valid call NewMatcher", func(t *testing.T) {
		m, err := NewMatcher(dbConfig, model.DefaultMatchConfig())
		require.NoError(t, err, "Expected NewMatcher to not return an error")
		require.NotNil(t, m)
		assert.NotNil(t, m.DB)
		assert.NotNil(t, m.Posts)
		assert.NotNil(t, m.Matches)
		assert.NotNil(t, m.Embeddings)
		assert.NotNil(t, m.Scanner)
		assert.NotNil(t, m.Gate)
		assert.Nil(t, m.Images, "Expected image scoring to be disabled initially")
		assert.False(t, m.Embedder.Loaded(), "Expected the model to load lazily")

		assert.NoError(t, m.Close())
	})

	t.Run("Invalid config", func(t *testing.T) {
		config := model.DefaultMatchConfig()
		config.TextWeight = 0.8

		_, err := NewMatcher(dbConfig, config)
		assert.ErrorIs(t, err, model.ErrInvalidConfig)
	})

	t.Run("Matcher with nil database handles Close gracefully", func(t *testing.T) {
		m := &Matcher{}
		assert.NoError(t, m.Close())
	})
}

func TestScanPost(t *testing.T) {
	m := initMatcher(t)
	ctx := context.Background()

	events := notify.NewChannelNotifier(10)
	m.SetNotifier(events)

	lost := insertPost(t, m, model.PostKindLost, 1, model.PostStatusApproved, "Mất ví da màu nâu")
	sameOwner := insertPost(t, m, model.PostKindFound, 1, model.PostStatusApproved, "Mất ví da màu nâu")
	found := insertPost(t, m, model.PostKindFound, 2, model.PostStatusApproved, "Nhặt được ví da màu đen")
	unrelated := insertPost(t, m, model.PostKindFound, 3, model.PostStatusApproved, "Xe đạp")
	pending := insertPost(t, m, model.PostKindFound, 4, model.PostStatusPending, "Mất ví da màu nâu")

	t.Run("Matches are recorded once with participants announced", func(t *testing.T) {
		report, err := m.ScanPost(ctx, lost.ID)
		require.NoError(t, err)

		assert.Equal(t, model.ScanTriggerPost, report.Trigger)
		assert.Equal(t, 2, report.Candidates, "Expected only approved found posts of other owners")
		require.Len(t, report.Persisted, 1)
		assert.Equal(t, lost.ID, report.Persisted[0].Post1ID)
		assert.Equal(t, found.ID, report.Persisted[0].Post2ID)
		assert.Greater(t, report.Persisted[0].ConfidenceScore, m.Config.SimilarityThreshold)

		event := <-events.Events()
		assert.Equal(t, int64(1), event.Owner1AccountID)
		assert.Equal(t, int64(2), event.Owner2AccountID)
		assert.Equal(t, lost.Title, event.Post1Title)
		assert.Equal(t, found.Title, event.Post2Title)

		for _, id := range []int64{sameOwner.ID, unrelated.ID, pending.ID} {
			matches, err := m.Matches.SelectMatchesByPost(ctx, id)
			require.NoError(t, err)
			assert.Empty(t, matches, "Post %d should not be matched", id)
		}
	})

	t.Run("Scanning the other side again records nothing new", func(t *testing.T) {
		report, err := m.ScanPost(ctx, found.ID)
		require.NoError(t, err)
		assert.Empty(t, report.Persisted)
		assert.Equal(t, 1, report.AlreadyRecorded)
		assert.Len(t, events.Events(), 0)

		matches, err := m.Matches.SelectMatchesByPost(ctx, lost.ID)
		require.NoError(t, err)
		assert.Len(t, matches, 1)
	})

	t.Run("Unapproved post is rejected", func(t *testing.T) {
		_, err := m.ScanPost(ctx, pending.ID)
		assert.ErrorIs(t, err, model.ErrPostNotApproved)
	})

	t.Run("Missing post", func(t *testing.T) {
		_, err := m.ScanPost(ctx, 999999)
		assert.Error(t, err)
	})

	t.Run("Text embeddings are cached", func(t *testing.T) {
		vector, err := m.Embeddings.SelectEmbedding(ctx, embedding.ContentHash(embedding.PostText(lost)), "test-bow")
		require.NoError(t, err)
		assert.Len(t, vector, m.Config.EmbeddingDim)
	})
}

func TestScanPostWithImages(t *testing.T) {
	m := initMatcher(t)
	ctx := context.Background()

	var mu sync.Mutex
	calls := 0
	m.SetImageScorer(func(ctx context.Context, urlA string, urlB string) (float64, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if strings.Contains(urlA+urlB, "broken") {
			return 0, errors.New("timeout")
		}
		return 0.9, nil
	})

	lost := insertPost(t, m, model.PostKindLost, 1, model.PostStatusApproved, "Ô màu xanh", "s3://posts/l1.jpg", "s3://posts/broken.jpg")
	found := insertPost(t, m, model.PostKindFound, 2, model.PostStatusApproved, "Nhặt được dù", "s3://posts/f1.jpg")

	t.Run("Image similarity rescues a weak text match", func(t *testing.T) {
		report, err := m.ScanPost(ctx, found.ID)
		require.NoError(t, err)
		require.Len(t, report.Accepted, 1)

		score := report.Accepted[0].Score
		assert.True(t, score.HasImages)
		require.NotNil(t, score.ImageSimilarity)
		assert.Equal(t, 0.9, *score.ImageSimilarity)
		assert.InDelta(t, 0.5*score.TextSimilarity+0.45, score.FinalSimilarity, 1e-9)

		require.Len(t, report.Persisted, 1)
		assert.Equal(t, lost.ID, report.Persisted[0].Post1ID)
		assert.Equal(t, 2, calls)
	})
}

func TestScanAll(t *testing.T) {
	m := initMatcher(t)
	ctx := context.Background()

	lost := insertPost(t, m, model.PostKindLost, 1, model.PostStatusApproved, "Mất điện thoại iphone đen")
	found := insertPost(t, m, model.PostKindFound, 2, model.PostStatusApproved, "Nhặt được điện thoại iphone đen")
	stale := insertPost(t, m, model.PostKindFound, 3, model.PostStatusApproved, "Nhặt được điện thoại iphone đen")
	_, err := m.DB.Instance.Exec(`UPDATE posts SET created_at = NOW() - INTERVAL '40 days', approved_at = NOW() - INTERVAL '40 days' WHERE id = $1`, stale.ID)
	require.NoError(t, err)

	t.Run("Sweep records matches among recent posts", func(t *testing.T) {
		report, err := m.ScanAll(ctx)
		require.NoError(t, err)

		assert.Equal(t, model.ScanTriggerBatch, report.Trigger)
		assert.Equal(t, 2, report.Candidates)
		assert.Zero(t, report.Excluded)
		require.Len(t, report.Persisted, 1)
		assert.Equal(t, lost.ID, report.Persisted[0].Post1ID)
		assert.Equal(t, found.ID, report.Persisted[0].Post2ID)
	})

	t.Run("Recently matched posts are excluded from the next sweep", func(t *testing.T) {
		report, err := m.ScanAll(ctx)
		require.NoError(t, err)

		assert.Equal(t, 2, report.Excluded)
		assert.Zero(t, report.Candidates)
		assert.Empty(t, report.Accepted)
	})

	t.Run("Unavailable model aborts the sweep", func(t *testing.T) {
		insertPost(t, m, model.PostKindLost, 5, model.PostStatusApproved, "Mất chìa khóa xe máy")
		insertPost(t, m, model.PostKindFound, 6, model.PostStatusApproved, "Nhặt được chìa khóa")

		m.SetEmbedder("broken-model", func() (*embedding.Model, error) {
			return nil, errors.New("onnx runtime missing")
		})

		_, err := m.ScanAll(ctx)
		assert.ErrorIs(t, err, model.ErrModelUnavailable)
	})
}

type failingDispatcher struct{}

func (failingDispatcher) DispatchScan(ctx context.Context, postID int64) error {
	return errors.New("redis down")
}

func TestApprovePost(t *testing.T) {
	m := initMatcher(t)
	ctx := context.Background()

	insertPost(t, m, model.PostKindLost, 1, model.PostStatusApproved, "Mất thẻ sinh viên")

	t.Run("Approval dispatches the scan", func(t *testing.T) {
		found := insertPost(t, m, model.PostKindFound, 2, model.PostStatusPending, "Nhặt được thẻ sinh viên")
		dispatcher := queue.NewInlineDispatcher(m.ScanPostTask, time.Minute, m.log)

		post, err := m.ApprovePost(ctx, found.ID, dispatcher)
		require.NoError(t, err)
		assert.Equal(t, model.PostStatusApproved, post.Status)
		assert.NotNil(t, post.ApprovedAt)

		require.NoError(t, dispatcher.Wait(ctx))
		assert.Len(t, dispatcher.Errors(), 0)

		matches, err := m.Matches.SelectMatchesByPost(ctx, found.ID)
		require.NoError(t, err)
		assert.Len(t, matches, 1)
	})

	t.Run("Dispatch failure does not fail the approval", func(t *testing.T) {
		found := insertPost(t, m, model.PostKindFound, 3, model.PostStatusPending, "Thẻ sinh viên")

		post, err := m.ApprovePost(ctx, found.ID, failingDispatcher{})
		require.NoError(t, err)
		assert.Equal(t, model.PostStatusApproved, post.Status)
	})

	t.Run("Failing background scan does not fail the approval", func(t *testing.T) {
		found := insertPost(t, m, model.PostKindFound, 4, model.PostStatusPending, "Thẻ")
		dispatcher := queue.NewInlineDispatcher(func(ctx context.Context, postID int64) error {
			return model.ErrModelUnavailable
		}, time.Minute, m.log)

		_, err := m.ApprovePost(ctx, found.ID, dispatcher)
		require.NoError(t, err)
		require.NoError(t, dispatcher.Wait(ctx))
		assert.ErrorIs(t, <-dispatcher.Errors(), model.ErrModelUnavailable)
	})

	t.Run("Missing post", func(t *testing.T) {
		_, err := m.ApprovePost(ctx, 999999, nil)
		assert.Error(t, err)
	})
}
