package domain

import "time"

// FeatureRequestStatus enumerates lifecycle states for feature requests.
type FeatureRequestStatus string

const (
	FeatureStatusNew         FeatureRequestStatus = "new"
	FeatureStatusUnderReview FeatureRequestStatus = "under_review"
	FeatureStatusPlanned     FeatureRequestStatus = "planned"
	FeatureStatusInProgress  FeatureRequestStatus = "in_progress"
	FeatureStatusCompleted   FeatureRequestStatus = "completed"
	FeatureStatusDeclined    FeatureRequestStatus = "declined"
)

// Valid reports whether the value is a known status.
func (s FeatureRequestStatus) Valid() bool {
	switch s {
	case FeatureStatusNew, FeatureStatusUnderReview, FeatureStatusPlanned,
		FeatureStatusInProgress, FeatureStatusCompleted, FeatureStatusDeclined:
		return true
	}
	return false
}

// FeatureRequest is a user-submitted feature with community voting.
// Votes is derived from the vote relation and recomputed on every vote
// mutation; it is never written directly.
type FeatureRequest struct {
	ID          int64
	UserID      int64
	Title       string
	Description string
	Status      FeatureRequestStatus
	Votes       int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
