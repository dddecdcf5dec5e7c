package events

import (
	"time"

	"github.com/spec-kit/community-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventFeedbackCreated       EventType = "feedback_created"
	EventFeatureRequestCreated EventType = "feature_request_created"
	EventFeatureVoteCast       EventType = "feature_vote_cast"
	EventFeatureVoteRemoved    EventType = "feature_vote_removed"
	EventTicketCreated         EventType = "ticket_created"
	EventTicketStatusChanged   EventType = "ticket_status_changed"
	EventTicketResponseAdded   EventType = "ticket_response_added"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    int64       `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// FeedbackCreatedPayload payload.
type FeedbackCreatedPayload struct {
	Feedback domain.Feedback `json:"feedback"`
}

// FeatureRequestCreatedPayload payload.
type FeatureRequestCreatedPayload struct {
	Request domain.FeatureRequest `json:"request"`
}

// FeatureVotePayload payload for cast and removed votes.
type FeatureVotePayload struct {
	RequestID int64 `json:"request_id"`
	VoterID   int64 `json:"voter_id"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Ticket domain.SupportTicket `json:"ticket"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	TicketID  int64               `json:"ticket_id"`
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketResponseAddedPayload payload.
type TicketResponseAddedPayload struct {
	TicketID   int64 `json:"ticket_id"`
	ResponseID int64 `json:"response_id"`
	IsStaff    bool  `json:"is_staff"`
}
