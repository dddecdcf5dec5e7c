package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/community-service/internal/domain"
	"github.com/spec-kit/community-service/pkg/util"
)

// FeatureRequestFilter captures listing parameters.
type FeatureRequestFilter struct {
	Status *domain.FeatureRequestStatus
	Limit  int
	Offset int
}

// FeatureRequestUpdate describes a partial update; nil fields are untouched.
type FeatureRequestUpdate struct {
	Title       *string
	Description *string
	Status      *domain.FeatureRequestStatus
}

// TopVotedFeature is a stats projection of a highly voted request.
type TopVotedFeature struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Votes int    `json:"votes"`
}

// RecentFeature is a stats projection of a recently filed request.
type RecentFeature struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// FeatureRequestStats is the aggregate rollup for feature requests.
type FeatureRequestStats struct {
	Total    int               `json:"total"`
	ByStatus map[string]int    `json:"by_status"`
	TopVoted []TopVotedFeature `json:"top_voted"`
	Recent   []RecentFeature   `json:"recent"`
}

// FeatureRequestRepository encapsulates feature request persistence,
// including the vote relation.
type FeatureRequestRepository interface {
	Create(ctx context.Context, req *domain.FeatureRequest) error
	GetByID(ctx context.Context, id int64) (*domain.FeatureRequest, error)
	List(ctx context.Context, filter FeatureRequestFilter) ([]domain.FeatureRequest, error)
	Update(ctx context.Context, id int64, update FeatureRequestUpdate) error
	VoteFor(ctx context.Context, requestID, userID int64) error
	RemoveVote(ctx context.Context, requestID, userID int64) error
	Stats(ctx context.Context) (*FeatureRequestStats, error)
}

type featureRequestRepository struct {
	db *sql.DB
}

// NewFeatureRequestRepository instantiates the repository.
func NewFeatureRequestRepository(db *sql.DB) FeatureRequestRepository {
	return &featureRequestRepository{db: db}
}

const featureRequestSchema = `
CREATE TABLE IF NOT EXISTS feature_requests (
    request_id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'new',
    votes INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
)`

const featureVoteSchema = `
CREATE TABLE IF NOT EXISTS feature_request_votes (
    vote_id INTEGER PRIMARY KEY AUTOINCREMENT,
    request_id INTEGER NOT NULL,
    user_id INTEGER NOT NULL,
    created_at TEXT NOT NULL,
    UNIQUE(request_id, user_id)
)`

func ensureFeatureSchema(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, featureRequestSchema); err != nil {
		return fmt.Errorf("ensure feature_requests schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, featureVoteSchema); err != nil {
		return fmt.Errorf("ensure feature_request_votes schema: %w", err)
	}
	return nil
}

func (r *featureRequestRepository) Create(ctx context.Context, req *domain.FeatureRequest) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin feature request create: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ensureFeatureSchema(ctx, tx); err != nil {
		return err
	}

	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now
	if req.Status == "" {
		req.Status = domain.FeatureStatusNew
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO feature_requests (user_id, title, description, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         RETURNING request_id`,
		req.UserID, req.Title, req.Description, req.Status, formatTime(now), formatTime(now),
	).Scan(&req.ID)
	if err != nil {
		return fmt.Errorf("insert feature request: %w", err)
	}

	return tx.Commit()
}

const featureRequestColumns = `request_id, user_id, title, description, status, votes, created_at, updated_at`

func (r *featureRequestRepository) GetByID(ctx context.Context, id int64) (*domain.FeatureRequest, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+featureRequestColumns+` FROM feature_requests WHERE request_id = ?`, id)
	req, err := scanFeatureRequest(row.Scan)
	if err == sql.ErrNoRows || isNoSuchTable(err) {
		return nil, util.NewNotFound("feature request", map[string]any{"request_id": id})
	}
	if err != nil {
		return nil, fmt.Errorf("get feature request: %w", err)
	}
	return req, nil
}

func (r *featureRequestRepository) List(ctx context.Context, filter FeatureRequestFilter) ([]domain.FeatureRequest, error) {
	exists, err := tableExists(ctx, r.db, "feature_requests")
	if err != nil {
		return nil, fmt.Errorf("check feature_requests table: %w", err)
	}
	if !exists {
		return []domain.FeatureRequest{}, nil
	}

	query := `SELECT ` + featureRequestColumns + ` FROM feature_requests`
	args := []any{}
	if filter.Status != nil {
		query += " WHERE status = ?"
		args = append(args, *filter.Status)
	}
	// most supported first, recency breaks ties
	query += " ORDER BY votes DESC, created_at DESC, request_id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list feature requests: %w", err)
	}
	defer rows.Close()

	result := []domain.FeatureRequest{}
	for rows.Next() {
		req, err := scanFeatureRequest(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *req)
	}
	return result, rows.Err()
}

func (r *featureRequestRepository) Update(ctx context.Context, id int64, update FeatureRequestUpdate) error {
	setParts := []string{}
	args := []any{}
	if update.Title != nil {
		setParts = append(setParts, "title = ?")
		args = append(args, *update.Title)
	}
	if update.Description != nil {
		setParts = append(setParts, "description = ?")
		args = append(args, *update.Description)
	}
	if update.Status != nil {
		setParts = append(setParts, "status = ?")
		args = append(args, *update.Status)
	}
	if len(setParts) == 0 {
		return util.NewValidationError("no fields to update", nil)
	}
	setParts = append(setParts, "updated_at = ?")
	args = append(args, formatTime(time.Now().UTC()), id)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin feature request update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ensureFeatureSchema(ctx, tx); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE feature_requests SET "+strings.Join(setParts, ", ")+" WHERE request_id = ?", args...)
	if err != nil {
		return fmt.Errorf("update feature request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return util.NewNotFound("feature request", map[string]any{"request_id": id})
	}

	return tx.Commit()
}

// VoteFor records a vote and recomputes the derived count in one
// transaction. The unique (request_id, user_id) index is the guard
// against double voting under concurrency.
func (r *featureRequestRepository) VoteFor(ctx context.Context, requestID, userID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin vote: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ensureFeatureSchema(ctx, tx); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO feature_request_votes (request_id, user_id, created_at) VALUES (?, ?, ?)",
		requestID, userID, formatTime(time.Now().UTC()))
	if isUniqueViolation(err) {
		return util.NewDuplicateVote(requestID, userID)
	}
	if err != nil {
		return fmt.Errorf("insert vote: %w", err)
	}

	if err := r.recomputeVotes(ctx, tx, requestID); err != nil {
		return err
	}
	return tx.Commit()
}

// RemoveVote deletes a vote and recomputes the count. Absent votes (or
// an absent request) are a no-op failure rather than an error.
func (r *featureRequestRepository) RemoveVote(ctx context.Context, requestID, userID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin vote removal: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ensureFeatureSchema(ctx, tx); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		"DELETE FROM feature_request_votes WHERE request_id = ? AND user_id = ?",
		requestID, userID)
	if err != nil {
		return fmt.Errorf("delete vote: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return util.NewNotFound("vote", map[string]any{"request_id": requestID, "user_id": userID})
	}

	if err := r.recomputeVotes(ctx, tx, requestID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *featureRequestRepository) recomputeVotes(ctx context.Context, tx *sql.Tx, requestID int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE feature_requests
         SET votes = (SELECT COUNT(*) FROM feature_request_votes WHERE request_id = ?),
             updated_at = ?
         WHERE request_id = ?`,
		requestID, formatTime(time.Now().UTC()), requestID)
	if err != nil {
		return fmt.Errorf("recompute vote count: %w", err)
	}
	return nil
}

func (r *featureRequestRepository) Stats(ctx context.Context) (*FeatureRequestStats, error) {
	stats := &FeatureRequestStats{
		ByStatus: map[string]int{},
		TopVoted: []TopVotedFeature{},
		Recent:   []RecentFeature{},
	}

	exists, err := tableExists(ctx, r.db, "feature_requests")
	if err != nil {
		return nil, fmt.Errorf("check feature_requests table: %w", err)
	}
	if !exists {
		return stats, nil
	}

	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feature_requests").Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("count feature requests: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM feature_requests GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("group feature requests by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.ByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	top, err := r.db.QueryContext(ctx,
		"SELECT request_id, title, votes FROM feature_requests ORDER BY votes DESC LIMIT 5")
	if err != nil {
		return nil, fmt.Errorf("top voted feature requests: %w", err)
	}
	defer top.Close()
	for top.Next() {
		var entry TopVotedFeature
		if err := top.Scan(&entry.ID, &entry.Title, &entry.Votes); err != nil {
			return nil, err
		}
		stats.TopVoted = append(stats.TopVoted, entry)
	}
	if err := top.Err(); err != nil {
		return nil, err
	}

	recent, err := r.db.QueryContext(ctx,
		"SELECT request_id, title, created_at FROM feature_requests ORDER BY created_at DESC, request_id DESC LIMIT 5")
	if err != nil {
		return nil, fmt.Errorf("recent feature requests: %w", err)
	}
	defer recent.Close()
	for recent.Next() {
		var (
			entry     RecentFeature
			createdAt string
		)
		if err := recent.Scan(&entry.ID, &entry.Title, &createdAt); err != nil {
			return nil, err
		}
		if entry.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		stats.Recent = append(stats.Recent, entry)
	}
	return stats, recent.Err()
}

func scanFeatureRequest(scan func(dest ...any) error) (*domain.FeatureRequest, error) {
	var (
		req       domain.FeatureRequest
		createdAt string
		updatedAt string
	)
	if err := scan(&req.ID, &req.UserID, &req.Title, &req.Description,
		&req.Status, &req.Votes, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if req.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if req.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &req, nil
}
