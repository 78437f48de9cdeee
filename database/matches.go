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
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// MatchesDBHandlerFunctions defines the interface for Matches database operations.
type MatchesDBHandlerFunctions interface {
	InsertMatch(ctx context.Context, match *model.Match) (bool, error)
	SelectMatch(ctx context.Context, rid uuid.UUID) (*model.Match, error)
	SelectMatchesByPost(ctx context.Context, postID int64) ([]*model.Match, error)
	SelectPostIDsWithRecentMatches(ctx context.Context, window time.Duration) (map[int64]bool, error)
	UpdateMatch(ctx context.Context, rid uuid.UUID, status model.MatchStatus, confidenceScore float64) (*model.Match, error)
	DeleteMatch(ctx context.Context, rid uuid.UUID) error
}

// MatchesDBHandler handles match-related database operations
type MatchesDBHandler struct {
	db *helper.Database
}

// NewMatchesDBHandler creates a new matches database handler.
// The posts table must exist before, matches reference it.
// If force is true, it will reload the SQL functions even if they already exist.
func NewMatchesDBHandler(db *helper.Database, force bool) (*MatchesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	matchesDbHandler := &MatchesDBHandler{
		db: db,
	}

	err := loadSql.LoadMatchesSql(matchesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load matches sql", err)
	}

	err = matchesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized MatchesDBHandler")

	return matchesDbHandler, nil
}

// CreateTable creates the 'matches' table with its unordered pair index.
func (h *MatchesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_matches();`)
	if err != nil {
		log.Panicf("error initializing matches table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table matches")

	return nil
}

// InsertMatch inserts a match unless the unordered pair is already recorded.
// It returns true if a new row was written and fills the generated fields.
func (h *MatchesDBHandler) InsertMatch(ctx context.Context, match *model.Match) (bool, error) {
	if match.Status == "" {
		match.Status = model.MatchStatusPending
	}

	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_match($1, $2, $3, $4, $5)`,
		match.Post1ID,
		match.Post2ID,
		match.ConfidenceScore,
		match.Score,
		match.Status,
	)

	err := scanMatchInto(row, match)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if isUniqueViolation(err) {
		return false, helper.NewError("insert match", fmt.Errorf("pair (%d, %d): %w", match.Post1ID, match.Post2ID, model.ErrDuplicateMatch))
	}
	if err != nil {
		return false, helper.NewError("scan", err)
	}

	return true, nil
}

// SelectMatch returns the match with the given rid.
func (h *MatchesDBHandler) SelectMatch(ctx context.Context, rid uuid.UUID) (*model.Match, error) {
	row := h.db.Instance.QueryRowContext(ctx, `SELECT * FROM select_match($1)`, rid)

	match := &model.Match{}
	err := scanMatchInto(row, match)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helper.NewError("select match", fmt.Errorf("match %s: %w", rid, ErrNotFound))
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return match, nil
}

// SelectMatchesByPost returns all matches a post takes part in, best first.
func (h *MatchesDBHandler) SelectMatchesByPost(ctx context.Context, postID int64) ([]*model.Match, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_matches_by_post($1)`, postID)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	matches := []*model.Match{}
	for rows.Next() {
		match := &model.Match{}
		if err := scanMatchInto(rows, match); err != nil {
			return nil, helper.NewError("scan", err)
		}
		matches = append(matches, match)
	}

	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return matches, nil
}

// SelectPostIDsWithRecentMatches returns the ids of posts matched within window.
func (h *MatchesDBHandler) SelectPostIDsWithRecentMatches(ctx context.Context, window time.Duration) (map[int64]bool, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_post_ids_with_recent_matches($1::interval)`, intervalString(window))
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	ids := map[int64]bool{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, helper.NewError("scan", err)
		}
		ids[id] = true
	}

	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return ids, nil
}

// UpdateMatch changes the status and confidence of a match.
func (h *MatchesDBHandler) UpdateMatch(ctx context.Context, rid uuid.UUID, status model.MatchStatus, confidenceScore float64) (*model.Match, error) {
	row := h.db.Instance.QueryRowContext(ctx, `SELECT * FROM update_match($1, $2, $3)`, rid, status, confidenceScore)

	match := &model.Match{}
	err := scanMatchInto(row, match)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helper.NewError("update match", fmt.Errorf("match %s: %w", rid, ErrNotFound))
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return match, nil
}

// DeleteMatch deletes a match.
func (h *MatchesDBHandler) DeleteMatch(ctx context.Context, rid uuid.UUID) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT delete_match($1)`, rid)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

func scanMatchInto(row rowScanner, match *model.Match) error {
	return row.Scan(
		&match.ID,
		&match.RID,
		&match.Post1ID,
		&match.Post2ID,
		&match.ConfidenceScore,
		&match.Score,
		&match.Status,
		&match.MatchedAt,
		&match.UpdatedAt,
	)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
