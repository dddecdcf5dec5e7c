package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/spec-kit/community-service/internal/domain"
	"github.com/spec-kit/community-service/pkg/util"
)

// FeedbackFilter captures feedback listing parameters.
type FeedbackFilter struct {
	Type   *domain.FeedbackType
	Limit  int
	Offset int
}

// FeedbackStats is the aggregate rollup for feedback.
type FeedbackStats struct {
	Total         int            `json:"total"`
	ByType        map[string]int `json:"by_type"`
	AverageRating float64        `json:"average_rating"`
	RecentCount   int            `json:"recent_count"`
}

// FeedbackRepository encapsulates feedback persistence.
type FeedbackRepository interface {
	Create(ctx context.Context, fb *domain.Feedback) error
	GetByID(ctx context.Context, id int64) (*domain.Feedback, error)
	List(ctx context.Context, filter FeedbackFilter) ([]domain.Feedback, error)
	Stats(ctx context.Context) (*FeedbackStats, error)
}

type feedbackRepository struct {
	db *sql.DB
}

// NewFeedbackRepository instantiates the repository.
func NewFeedbackRepository(db *sql.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

const feedbackSchema = `
CREATE TABLE IF NOT EXISTS feedback (
    feedback_id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    feedback_type TEXT NOT NULL,
    content TEXT NOT NULL,
    rating INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
)`

func (r *feedbackRepository) Create(ctx context.Context, fb *domain.Feedback) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin feedback create: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, feedbackSchema); err != nil {
		return fmt.Errorf("ensure feedback schema: %w", err)
	}

	fb.CreatedAt = time.Now().UTC()
	err = tx.QueryRowContext(ctx,
		`INSERT INTO feedback (user_id, feedback_type, content, rating, created_at)
         VALUES (?, ?, ?, ?, ?)
         RETURNING feedback_id`,
		fb.UserID, fb.Type, fb.Content, fb.Rating, formatTime(fb.CreatedAt),
	).Scan(&fb.ID)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}

	return tx.Commit()
}

func (r *feedbackRepository) GetByID(ctx context.Context, id int64) (*domain.Feedback, error) {
	var (
		fb        domain.Feedback
		createdAt string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT feedback_id, user_id, feedback_type, content, rating, created_at
         FROM feedback WHERE feedback_id = ?`, id,
	).Scan(&fb.ID, &fb.UserID, &fb.Type, &fb.Content, &fb.Rating, &createdAt)
	if err == sql.ErrNoRows || isNoSuchTable(err) {
		return nil, util.NewNotFound("feedback", map[string]any{"feedback_id": id})
	}
	if err != nil {
		return nil, fmt.Errorf("get feedback: %w", err)
	}
	if fb.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &fb, nil
}

func (r *feedbackRepository) List(ctx context.Context, filter FeedbackFilter) ([]domain.Feedback, error) {
	exists, err := tableExists(ctx, r.db, "feedback")
	if err != nil {
		return nil, fmt.Errorf("check feedback table: %w", err)
	}
	if !exists {
		return []domain.Feedback{}, nil
	}

	query := `SELECT feedback_id, user_id, feedback_type, content, rating, created_at FROM feedback`
	args := []any{}
	if filter.Type != nil {
		query += " WHERE feedback_type = ?"
		args = append(args, *filter.Type)
	}
	query += " ORDER BY created_at DESC, feedback_id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	result := []domain.Feedback{}
	for rows.Next() {
		var (
			fb        domain.Feedback
			createdAt string
		)
		if err := rows.Scan(&fb.ID, &fb.UserID, &fb.Type, &fb.Content, &fb.Rating, &createdAt); err != nil {
			return nil, err
		}
		if fb.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		result = append(result, fb)
	}
	return result, rows.Err()
}

func (r *feedbackRepository) Stats(ctx context.Context) (*FeedbackStats, error) {
	stats := &FeedbackStats{ByType: map[string]int{}}

	exists, err := tableExists(ctx, r.db, "feedback")
	if err != nil {
		return nil, fmt.Errorf("check feedback table: %w", err)
	}
	if !exists {
		return stats, nil
	}

	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feedback").Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("count feedback: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT feedback_type, COUNT(*) FROM feedback GROUP BY feedback_type")
	if err != nil {
		return nil, fmt.Errorf("group feedback by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			kind  string
			count int
		)
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		stats.ByType[kind] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var avg float64
	if err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(AVG(rating), 0) FROM feedback WHERE rating > 0").Scan(&avg); err != nil {
		return nil, fmt.Errorf("average rating: %w", err)
	}
	stats.AverageRating = round1(avg)

	cutoff := formatTime(time.Now().AddDate(0, 0, -30))
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM feedback WHERE created_at > ?", cutoff).Scan(&stats.RecentCount); err != nil {
		return nil, fmt.Errorf("recent feedback count: %w", err)
	}

	return stats, nil
}
