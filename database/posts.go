package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/VinhGH/Lost-Found-PLatform-sub001/helper"
	"github.com/VinhGH/Lost-Found-PLatform-sub001/model"
	loadSql "github.com/VinhGH/Lost-Found-PLatform-sub001/sql"
	"github.com/lib/pq"
)

// ErrNotFound is returned when a selected row does not exist.
var ErrNotFound = errors.New("not found")

// PostsDBHandlerFunctions defines the interface for Posts database operations.
type PostsDBHandlerFunctions interface {
	InsertPost(ctx context.Context, post *model.Post) error
	SelectPost(ctx context.Context, id int64) (*model.Post, error)
	UpdatePostStatus(ctx context.Context, id int64, status model.PostStatus) (*model.Post, error)
	SelectApprovedOppositeKindPosts(ctx context.Context, kind model.PostKind, excludingOwnerID int64) ([]*model.Post, error)
	SelectRecentApprovedPosts(ctx context.Context, window time.Duration) ([]*model.Post, error)
	DeletePost(ctx context.Context, id int64) error
}

// PostsDBHandler handles post-related database operations
type PostsDBHandler struct {
	db *helper.Database
}

// NewPostsDBHandler creates a new posts database handler.
// It initializes the database connection and loads post-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewPostsDBHandler(db *helper.Database, force bool) (*PostsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	postsDbHandler := &PostsDBHandler{
		db: db,
	}

	err := loadSql.LoadPostsSql(postsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load posts sql", err)
	}

	err = postsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized PostsDBHandler")

	return postsDbHandler, nil
}

// CreateTable creates the 'posts' table in the database.
// If the table already exists, it does not create it again.
func (h *PostsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_posts();`)
	if err != nil {
		log.Panicf("error initializing posts table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table posts")

	return nil
}

// InsertPost inserts a new post and fills its generated fields.
func (h *PostsDBHandler) InsertPost(ctx context.Context, post *model.Post) error {
	if !post.Kind.Valid() {
		return helper.NewError("post validation", fmt.Errorf("invalid post kind %q", post.Kind))
	}
	if post.Status == "" {
		post.Status = model.PostStatusPending
	}

	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_post($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		post.Kind,
		post.Title,
		post.ItemName,
		post.Description,
		post.Location,
		post.Category,
		post.OwnerAccountID,
		post.Status,
		pq.Array(post.ImageURLs),
	)

	inserted, err := scanPost(row)
	if err != nil {
		return helper.NewError("scan", err)
	}
	*post = *inserted

	return nil
}

// SelectPost returns the post with the given id.
func (h *PostsDBHandler) SelectPost(ctx context.Context, id int64) (*model.Post, error) {
	row := h.db.Instance.QueryRowContext(ctx, `SELECT * FROM select_post($1)`, id)

	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helper.NewError("select post", fmt.Errorf("post %d: %w", id, ErrNotFound))
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return post, nil
}

// UpdatePostStatus sets the moderation status. Approving sets approved_at.
func (h *PostsDBHandler) UpdatePostStatus(ctx context.Context, id int64, status model.PostStatus) (*model.Post, error) {
	row := h.db.Instance.QueryRowContext(ctx, `SELECT * FROM update_post_status($1, $2)`, id, status)

	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helper.NewError("update post status", fmt.Errorf("post %d: %w", id, ErrNotFound))
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return post, nil
}

// SelectApprovedOppositeKindPosts returns approved posts of the other kind
// that do not belong to excludingOwnerID.
func (h *PostsDBHandler) SelectApprovedOppositeKindPosts(ctx context.Context, kind model.PostKind, excludingOwnerID int64) ([]*model.Post, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_approved_opposite_kind_posts($1, $2)`, kind, excludingOwnerID)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// SelectRecentApprovedPosts returns approved posts created or approved within window.
func (h *PostsDBHandler) SelectRecentApprovedPosts(ctx context.Context, window time.Duration) ([]*model.Post, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_recent_approved_posts($1::interval)`, intervalString(window))
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// DeletePost deletes a post and, by cascade, its matches.
func (h *PostsDBHandler) DeletePost(ctx context.Context, id int64) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT delete_post($1)`, id)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*model.Post, error) {
	post := &model.Post{}
	var approvedAt sql.NullTime
	var imageURLs []string

	err := row.Scan(
		&post.ID,
		&post.Kind,
		&post.Title,
		&post.ItemName,
		&post.Description,
		&post.Location,
		&post.Category,
		&post.OwnerAccountID,
		&post.Status,
		pq.Array(&imageURLs),
		&post.CreatedAt,
		&approvedAt,
		&post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if approvedAt.Valid {
		post.ApprovedAt = &approvedAt.Time
	}
	post.ImageURLs = imageURLs
	if post.ImageURLs == nil {
		post.ImageURLs = []string{}
	}

	return post, nil
}

func scanPosts(rows *sql.Rows) ([]*model.Post, error) {
	posts := []*model.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return posts, nil
}

// intervalString formats d as a PostgreSQL interval literal.
func intervalString(d time.Duration) string {
	return fmt.Sprintf("%d milliseconds", d.Milliseconds())
}
