package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/VinhGH/Lost-Found-PLatform-sub001/core/embedding"
	"github.com/VinhGH/Lost-Found-PLatform-sub001/core/scoring"
	"github.com/VinhGH/Lost-Found-PLatform-sub001/model"
	"golang.org/x/sync/errgroup"
)

// TextEmbedder produces unit-length embeddings for post texts.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ImageSetScorer compares the image sets of two posts.
type ImageSetScorer interface {
	AnalyzeImageSetSimilarity(ctx context.Context, post1 *model.Post, post2 *model.Post) (float64, error)
}

// Scanner finds accepted lost/found matches among posts. It does not read or
// write persisted matches.
type Scanner struct {
	embedder TextEmbedder
	images   ImageSetScorer
	combiner *scoring.Combiner
	config   model.MatchConfig
	now      func() time.Time
	log      *slog.Logger
}

// NewScanner creates a Scanner. images may be nil, in which case every pair is
// scored on text alone.
func NewScanner(embedder TextEmbedder, images ImageSetScorer, config model.MatchConfig, logger *slog.Logger) *Scanner {
	return &Scanner{
		embedder: embedder,
		images:   images,
		combiner: scoring.NewCombiner(config),
		config:   config,
		now:      time.Now,
		log:      logger,
	}
}

// ScanBatch scores every lost/found pair among the approved posts active
// within the recency window and returns the accepted matches. Callers exclude
// posts with recent matches before calling.
func (s *Scanner) ScanBatch(ctx context.Context, posts []*model.Post) ([]*model.AcceptedMatch, error) {
	now := s.now()

	eligible := make([]*model.Post, 0, len(posts))
	seen := make(map[int64]bool, len(posts))
	for _, post := range posts {
		if post == nil || seen[post.ID] {
			continue
		}
		if !post.IsRecent(now, s.config.RecencyWindow) || !post.IsApproved() {
			continue
		}
		seen[post.ID] = true
		eligible = append(eligible, post)
	}

	pairs := make([]*model.CandidatePair, 0)
	for i := 0; i < len(eligible); i++ {
		for j := i + 1; j < len(eligible); j++ {
			pair, err := model.NewCandidatePair(eligible[i], eligible[j])
			if err != nil {
				// Same kind or same owner
				continue
			}
			pairs = append(pairs, pair)
		}
	}

	s.log.Info(
		"Starting batch scan",
		slog.Int("posts", len(posts)),
		slog.Int("eligible", len(eligible)),
		slog.Int("pairs", len(pairs)),
	)

	return s.scorePairs(ctx, pairs)
}

// ScanSinglePost scores newPost against the opposite-kind candidates and
// returns the accepted matches. Candidates of the same kind or owner, or that
// are not approved, are skipped. No recency filter is applied.
func (s *Scanner) ScanSinglePost(ctx context.Context, newPost *model.Post, candidates []*model.Post) ([]*model.AcceptedMatch, error) {
	if newPost == nil {
		return nil, fmt.Errorf("%w: nil post", model.ErrInvalidPair)
	}
	if !newPost.IsApproved() {
		return nil, fmt.Errorf("%w: post %d has status %s", model.ErrPostNotApproved, newPost.ID, newPost.Status)
	}

	pairs := make([]*model.CandidatePair, 0, len(candidates))
	seen := make(map[int64]bool, len(candidates))
	for _, candidate := range candidates {
		if candidate == nil || seen[candidate.ID] || !candidate.IsApproved() {
			continue
		}
		pair, err := model.NewCandidatePair(newPost, candidate)
		if err != nil {
			continue
		}
		seen[candidate.ID] = true
		pairs = append(pairs, pair)
	}

	s.log.Info(
		"Starting single post scan",
		slog.Int64("post_id", newPost.ID),
		slog.String("kind", string(newPost.Kind)),
		slog.Int("candidates", len(candidates)),
		slog.Int("pairs", len(pairs)),
	)

	if len(pairs) == 0 {
		return []*model.AcceptedMatch{}, nil
	}

	vectors, failed, err := s.embedPosts(ctx, pairs)
	if err != nil {
		return nil, err
	}
	// A failed embedding of the new post fails the whole scan
	if err, ok := failed[newPost.ID]; ok {
		return nil, fmt.Errorf("embed post %d: %w", newPost.ID, err)
	}

	return s.scoreEmbedded(ctx, pairs, vectors)
}

// scorePairs embeds every post once, then scores the pairs with bounded
// concurrency. A post whose embedding fails is skipped with all its pairs.
// Model unavailability and context errors abort the scan.
func (s *Scanner) scorePairs(ctx context.Context, pairs []*model.CandidatePair) ([]*model.AcceptedMatch, error) {
	if len(pairs) == 0 {
		return []*model.AcceptedMatch{}, nil
	}

	vectors, _, err := s.embedPosts(ctx, pairs)
	if err != nil {
		return nil, err
	}

	return s.scoreEmbedded(ctx, pairs, vectors)
}

func (s *Scanner) scoreEmbedded(ctx context.Context, pairs []*model.CandidatePair, vectors map[int64][]float32) ([]*model.AcceptedMatch, error) {

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.ScanConcurrency)

	var mu sync.Mutex
	accepted := make([]*model.AcceptedMatch, 0)
	skipped := 0

	for _, pair := range pairs {
		lostVector, okLost := vectors[pair.Lost.ID]
		foundVector, okFound := vectors[pair.Found.ID]
		if !okLost || !okFound {
			skipped++
			continue
		}

		g.Go(func() error {
			score, err := s.scorePair(gctx, pair, lostVector, foundVector)
			if err != nil {
				return err
			}
			if !s.combiner.IsAccepted(score.FinalSimilarity) {
				return nil
			}

			mu.Lock()
			accepted = append(accepted, model.NewAcceptedMatch(pair, score))
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortMatches(accepted)

	s.log.Info(
		"Finished scan",
		slog.Int("pairs", len(pairs)),
		slog.Int("skipped", skipped),
		slog.Int("accepted", len(accepted)),
	)

	return accepted, nil
}

func (s *Scanner) scorePair(ctx context.Context, pair *model.CandidatePair, lostVector, foundVector []float32) (model.SimilarityScore, error) {
	textSim := embedding.CosineSimilarity(lostVector, foundVector)

	hasImages := s.images != nil && pair.HasImages()
	imageSim := 0.0
	if hasImages {
		var err error
		imageSim, err = s.images.AnalyzeImageSetSimilarity(ctx, pair.Lost, pair.Found)
		if err != nil {
			return model.SimilarityScore{}, err
		}
	}

	score := s.combiner.Score(textSim, hasImages, imageSim)

	s.log.Debug(
		"Scored pair",
		slog.Int64("lost_id", pair.Lost.ID),
		slog.Int64("found_id", pair.Found.ID),
		slog.Float64("text_similarity", score.TextSimilarity),
		slog.Float64("image_similarity", imageSim),
		slog.Bool("has_images", hasImages),
		slog.Float64("final_similarity", score.FinalSimilarity),
	)

	return score, nil
}

// embedPosts returns the vectors of all posts in pairs and the per-post
// embedding failures.
func (s *Scanner) embedPosts(ctx context.Context, pairs []*model.CandidatePair) (map[int64][]float32, map[int64]error, error) {
	posts := make(map[int64]*model.Post)
	for _, pair := range pairs {
		posts[pair.Lost.ID] = pair.Lost
		posts[pair.Found.ID] = pair.Found
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.ScanConcurrency)

	var mu sync.Mutex
	vectors := make(map[int64][]float32, len(posts))
	failed := make(map[int64]error)

	for id, post := range posts {
		g.Go(func() error {
			vector, err := s.embedder.Embed(gctx, embedding.PostText(post))
			if err != nil {
				if errors.Is(err, model.ErrEmbeddingFailed) {
					s.log.Warn("Skipping post with failed embedding", slog.Int64("post_id", id), slog.Any("error", err))
					mu.Lock()
					failed[id] = err
					mu.Unlock()
					return nil
				}
				return err
			}

			mu.Lock()
			vectors[id] = vector
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return vectors, failed, nil
}

// sortMatches orders by final similarity, best first, then by post ids.
func sortMatches(matches []*model.AcceptedMatch) {
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score.FinalSimilarity != b.Score.FinalSimilarity {
			return a.Score.FinalSimilarity > b.Score.FinalSimilarity
		}
		if a.Post1.ID != b.Post1.ID {
			return a.Post1.ID < b.Post1.ID
		}
		return a.Post2.ID < b.Post2.ID
	})
}
