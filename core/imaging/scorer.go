package imaging

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/VinhGH/Lost-Found-PLatform-sub001/model"
	"github.com/patrickmn/go-cache"
)

// PairScoreFunc compares two images and returns their similarity. This is
// the external vision call that gets cached and rate limited.
type PairScoreFunc func(ctx context.Context, urlA string, urlB string) (float64, error)

// Scorer scores image similarity between posts. It is safe for concurrent
// use and its rate limiter is shared by all callers.
type Scorer struct {
	score   PairScoreFunc
	cache   *cache.Cache
	limiter *rateLimiter
	log     *slog.Logger
}

// NewScorer creates a Scorer calling score at most rateLimitPerMinute times
// per minute and caching successful scores for cacheTTL.
func NewScorer(score PairScoreFunc, rateLimitPerMinute int, cacheTTL time.Duration, logger *slog.Logger) *Scorer {
	return &Scorer{
		score:   score,
		cache:   cache.New(cacheTTL, 2*cacheTTL),
		limiter: newRateLimiter(rateLimitPerMinute),
		log:     logger,
	}
}

// ScoreImagePair returns the similarity of two images in [0,1]. Scores are
// cached under an order-independent key. Failures are not cached.
func (s *Scorer) ScoreImagePair(ctx context.Context, urlA string, urlB string) (float64, error) {
	key := pairCacheKey(urlA, urlB)
	if cached, found := s.cache.Get(key); found {
		return cached.(float64), nil
	}

	if err := s.limiter.wait(ctx); err != nil {
		return 0, err
	}

	similarity, err := s.score(ctx, urlA, urlB)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", model.ErrImageScoring, err)
	}
	if math.IsNaN(similarity) {
		return 0, fmt.Errorf("%w: similarity is NaN", model.ErrImageScoring)
	}
	similarity = math.Max(0, math.Min(1, similarity))

	s.cache.Set(key, similarity, cache.DefaultExpiration)

	return similarity, nil
}

// AnalyzeImageSetSimilarity returns the highest similarity over all image
// pairs of the two posts. It returns 0 if either post has no images or every
// pair failed. Only context cancellation is returned as an error.
func (s *Scorer) AnalyzeImageSetSimilarity(ctx context.Context, post1 *model.Post, post2 *model.Post) (float64, error) {
	if !post1.HasImages() || !post2.HasImages() {
		return 0, nil
	}

	best := 0.0
	for _, urlA := range post1.ImageURLs {
		for _, urlB := range post2.ImageURLs {
			if err := ctx.Err(); err != nil {
				return 0, err
			}

			similarity, err := s.ScoreImagePair(ctx, urlA, urlB)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return 0, ctxErr
				}
				s.log.Warn(
					"Skipping image pair",
					slog.Int64("post1_id", post1.ID),
					slog.Int64("post2_id", post2.ID),
					slog.String("image1", urlA),
					slog.String("image2", urlB),
					slog.Any("error", err),
				)
				continue
			}

			best = math.Max(best, similarity)
		}
	}

	return best, nil
}

// CachedPairs returns the number of cached image pair scores.
func (s *Scorer) CachedPairs() int {
	return s.cache.ItemCount()
}

// pairCacheKey joins the sorted URLs with a NUL byte, which a valid URL never
// contains.
func pairCacheKey(urlA string, urlB string) string {
	if urlA > urlB {
		urlA, urlB = urlB, urlA
	}
	return urlA + "\x00" + urlB
}
