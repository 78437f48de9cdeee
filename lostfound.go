package lostfound

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/VinhGH/Lost-Found-PLatform-sub001/core/embedding"
	"github.com/VinhGH/Lost-Found-PLatform-sub001/core/gate"
	"github.com/VinhGH/Lost-Found-PLatform-sub001/core/imaging"
	"github.com/VinhGH/Lost-Found-PLatform-sub001/core/notify"
	"github.com/VinhGH/Lost-Found-PLatform-sub001/core/queue"
	"github.com/VinhGH/Lost-Found-PLatform-sub001/core/scanner"
	"github.com/VinhGH/Lost-Found-PLatform-sub001/database"
	"github.com/VinhGH/Lost-Found-PLatform-sub001/helper"
	"github.com/VinhGH/Lost-Found-PLatform-sub001/model"
	loadSql "github.com/VinhGH/Lost-Found-PLatform-sub001/sql"
)

// Matcher wires the post store, the scoring pipeline and the match store.
type Matcher struct {
	DB         *helper.Database
	Posts      *database.PostsDBHandler
	Matches    *database.MatchesDBHandler
	Embeddings *database.EmbeddingsDBHandler
	Embedder   *embedding.Embedder
	Images     *imaging.Scorer // Optional, nil scores text only
	Scanner    *scanner.Scanner
	Gate       *gate.Gate
	Config     model.MatchConfig
	// Logging
	log *slog.Logger
}

// NewMatcher creates a Matcher with all handlers initialized. The default
// embedding model is loaded on the first scan, not here.
func NewMatcher(dbConfig *helper.DatabaseConfiguration, config model.MatchConfig) (*Matcher, error) {
	if err := config.Validate(); err != nil {
		return nil, helper.NewError("validate config", err)
	}

	// Logger
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	// Initialize database
	db := helper.NewDatabase("lostfound", dbConfig, logger)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Posts first, matches reference them
	posts, err := database.NewPostsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create posts handler", err)
	}

	matches, err := database.NewMatchesDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create matches handler", err)
	}

	embeddings, err := database.NewEmbeddingsDBHandler(db, config.EmbeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create embeddings handler", err)
	}

	m := &Matcher{
		DB:         db,
		Posts:      posts,
		Matches:    matches,
		Embeddings: embeddings,
		Config:     config,
		log:        logger,
	}
	m.Gate = gate.NewGate(matches, notify.NewLogNotifier(logger), logger)
	m.SetEmbedder(config.EmbeddingModel, embedding.DefaultLoader(config.EmbeddingModel))

	return m, nil
}

// Close releases the embedding model and closes the database connection
func (m *Matcher) Close() error {
	if m.Embedder != nil {
		if err := m.Embedder.Close(); err != nil {
			m.log.Warn("Failed to release embedding model", slog.Any("error", err))
		}
	}
	if m.DB != nil && m.DB.Instance != nil {
		return m.DB.Instance.Close()
	}
	return nil
}

// SetEmbedder replaces the embedding backend. Cached embeddings are scoped by
// modelName.
func (m *Matcher) SetEmbedder(modelName string, load embedding.LoadFunc) {
	m.Embedder = embedding.NewEmbedder(load, m.log)
	m.Config.EmbeddingModel = modelName
	m.rebuildScanner()
}

// SetImageScorer enables image scoring with score. A nil score disables it.
func (m *Matcher) SetImageScorer(score imaging.PairScoreFunc) {
	if score == nil {
		m.Images = nil
	} else {
		m.Images = imaging.NewScorer(score, m.Config.RateLimitPerMinute, m.Config.CacheTTL, m.log)
	}
	m.rebuildScanner()
}

// SetNotifier replaces the notifier informed about new matches.
func (m *Matcher) SetNotifier(notifier gate.Notifier) {
	m.Gate.SetNotifier(notifier)
}

func (m *Matcher) rebuildScanner() {
	var textEmbedder scanner.TextEmbedder = m.Embedder
	if m.Embeddings != nil {
		textEmbedder = embedding.NewCachedEmbedder(m.Embedder, m.Embeddings, m.Config.EmbeddingModel, m.log)
	}

	var images scanner.ImageSetScorer
	if m.Images != nil {
		images = m.Images
	}

	m.Scanner = scanner.NewScanner(textEmbedder, images, m.Config, m.log)
}

// ScanPost matches an approved post against all approved posts of the other
// kind and records the accepted matches. On partial persistence failure the
// report is returned together with a *model.PartialPersistenceError.
func (m *Matcher) ScanPost(ctx context.Context, postID int64) (*model.ScanReport, error) {
	ctx, cancel := context.WithTimeout(ctx, m.Config.ScanTimeout)
	defer cancel()

	report := &model.ScanReport{
		Trigger:   model.ScanTriggerPost,
		PostID:    postID,
		StartedAt: time.Now(),
	}

	post, err := m.Posts.SelectPost(ctx, postID)
	if err != nil {
		return nil, helper.NewError("select post", err)
	}
	if !post.IsApproved() {
		return nil, helper.NewError("scan post", fmt.Errorf("post %d: %w", postID, model.ErrPostNotApproved))
	}

	candidates, err := m.Posts.SelectApprovedOppositeKindPosts(ctx, post.Kind, post.OwnerAccountID)
	if err != nil {
		return nil, helper.NewError("select candidates", err)
	}
	report.Candidates = len(candidates)

	accepted, err := m.Scanner.ScanSinglePost(ctx, post, candidates)
	if err != nil {
		return nil, helper.NewError("scan post", err)
	}
	report.Accepted = accepted

	return m.record(ctx, report)
}

// ScanAll runs the periodic sweep: approved posts active within the recency
// window, minus posts matched within the recent match window, are scanned
// against each other and the accepted matches recorded.
func (m *Matcher) ScanAll(ctx context.Context) (*model.ScanReport, error) {
	ctx, cancel := context.WithTimeout(ctx, m.Config.ScanTimeout)
	defer cancel()

	report := &model.ScanReport{
		Trigger:   model.ScanTriggerBatch,
		StartedAt: time.Now(),
	}

	posts, err := m.Posts.SelectRecentApprovedPosts(ctx, m.Config.RecencyWindow)
	if err != nil {
		return nil, helper.NewError("select recent posts", err)
	}

	recentlyMatched, err := m.Matches.SelectPostIDsWithRecentMatches(ctx, m.Config.RecentMatchWindow)
	if err != nil {
		return nil, helper.NewError("select recently matched posts", err)
	}

	candidates := make([]*model.Post, 0, len(posts))
	for _, post := range posts {
		if recentlyMatched[post.ID] {
			report.Excluded++
			continue
		}
		candidates = append(candidates, post)
	}
	report.Candidates = len(candidates)

	accepted, err := m.Scanner.ScanBatch(ctx, candidates)
	if err != nil {
		return nil, helper.NewError("scan batch", err)
	}
	report.Accepted = accepted

	return m.record(ctx, report)
}

// ApprovePost approves a post and hands its scan to dispatcher. Dispatch
// failures are logged and never fail the approval.
func (m *Matcher) ApprovePost(ctx context.Context, postID int64, dispatcher queue.Dispatcher) (*model.Post, error) {
	post, err := m.Posts.UpdatePostStatus(ctx, postID, model.PostStatusApproved)
	if err != nil {
		return nil, helper.NewError("approve post", err)
	}

	m.log.Info("Approved post", slog.Int64("post_id", post.ID), slog.String("kind", string(post.Kind)))

	if dispatcher == nil {
		m.log.Warn("No dispatcher, skipping match scan", slog.Int64("post_id", post.ID))
		return post, nil
	}
	if err := dispatcher.DispatchScan(ctx, post.ID); err != nil {
		m.log.Error("Failed to dispatch match scan", slog.Int64("post_id", post.ID), slog.Any("error", err))
	}

	return post, nil
}

// ScanPostTask adapts ScanPost to a queue.ScanFunc.
func (m *Matcher) ScanPostTask(ctx context.Context, postID int64) error {
	_, err := m.ScanPost(ctx, postID)
	return err
}

// ScanAllTask adapts ScanAll to a schedule.SweepFunc.
func (m *Matcher) ScanAllTask(ctx context.Context) error {
	_, err := m.ScanAll(ctx)
	return err
}

func (m *Matcher) record(ctx context.Context, report *model.ScanReport) (*model.ScanReport, error) {
	result, err := m.Gate.RecordMatches(ctx, report.Accepted)
	report.ApplyPersistResult(result)
	report.Duration = time.Since(report.StartedAt)

	m.log.Info(
		"Scan finished",
		slog.String("trigger", string(report.Trigger)),
		slog.Int64("post_id", report.PostID),
		slog.Int("candidates", report.Candidates),
		slog.Int("excluded", report.Excluded),
		slog.Int("accepted", len(report.Accepted)),
		slog.Int("persisted", len(report.Persisted)),
		slog.Int("already_recorded", report.AlreadyRecorded),
		slog.Int("failures", len(report.Failures)),
		slog.Duration("duration", report.Duration),
	)

	if err != nil {
		return report, helper.NewError("record matches", err)
	}
	return report, nil
}
