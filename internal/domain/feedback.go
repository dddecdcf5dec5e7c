package domain

import "time"

// FeedbackType enumerates the kinds of feedback a user can submit.
type FeedbackType string

const (
	FeedbackTypeBug     FeedbackType = "bug"
	FeedbackTypeFeature FeedbackType = "feature"
	FeedbackTypeGeneral FeedbackType = "general"
)

// Valid reports whether the value is a known feedback type.
func (t FeedbackType) Valid() bool {
	switch t {
	case FeedbackTypeBug, FeedbackTypeFeature, FeedbackTypeGeneral:
		return true
	}
	return false
}

// Feedback is a single immutable feedback submission.
// Rating 0 means unrated; only general feedback collects a rating.
type Feedback struct {
	ID        int64
	UserID    int64
	Type      FeedbackType
	Content   string
	Rating    int
	CreatedAt time.Time
}
