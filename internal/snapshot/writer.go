package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spec-kit/community-service/internal/config"
	"github.com/spec-kit/community-service/internal/domain"
)

// Writer emits immutable point-in-time JSON records of created
// entities, one file per entity, independent of the relational store.
// It is a best-effort side channel for external analysis and backup;
// callers never treat a write failure as a creation failure.
type Writer struct {
	dir string
}

// NewWriter builds a writer rooted at the configured snapshot directory.
func NewWriter(cfg config.SnapshotConfig) *Writer {
	return &Writer{dir: cfg.Dir}
}

type feedbackRecord struct {
	FeedbackID int64  `json:"feedback_id"`
	UserID     int64  `json:"user_id"`
	Type       string `json:"feedback_type"`
	Content    string `json:"content"`
	Rating     int    `json:"rating"`
	CreatedAt  string `json:"created_at"`
}

type featureRequestRecord struct {
	RequestID   int64  `json:"request_id"`
	UserID      int64  `json:"user_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Votes       int    `json:"votes"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type ticketRecord struct {
	TicketID    int64   `json:"ticket_id"`
	UserID      int64   `json:"user_id"`
	Subject     string  `json:"subject"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
	ResolvedAt  *string `json:"resolved_at"`
}

// WriteFeedback snapshots a feedback entry under feedback/.
func (w *Writer) WriteFeedback(fb domain.Feedback) error {
	record := feedbackRecord{
		FeedbackID: fb.ID,
		UserID:     fb.UserID,
		Type:       string(fb.Type),
		Content:    fb.Content,
		Rating:     fb.Rating,
		CreatedAt:  fb.CreatedAt.Format(time.RFC3339),
	}
	return w.write("feedback", string(fb.Type), fb.ID, fb.CreatedAt, record)
}

// WriteFeatureRequest snapshots a request under feature_requests/.
func (w *Writer) WriteFeatureRequest(req domain.FeatureRequest) error {
	record := featureRequestRecord{
		RequestID:   req.ID,
		UserID:      req.UserID,
		Title:       req.Title,
		Description: req.Description,
		Status:      string(req.Status),
		Votes:       req.Votes,
		CreatedAt:   req.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   req.UpdatedAt.Format(time.RFC3339),
	}
	return w.write("feature_requests", "request", req.ID, req.CreatedAt, record)
}

// WriteTicket snapshots a ticket under support_tickets/.
func (w *Writer) WriteTicket(ticket domain.SupportTicket) error {
	record := ticketRecord{
		TicketID:    ticket.ID,
		UserID:      ticket.UserID,
		Subject:     ticket.Subject,
		Description: ticket.Description,
		Status:      string(ticket.Status),
		Priority:    string(ticket.Priority),
		CreatedAt:   ticket.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   ticket.UpdatedAt.Format(time.RFC3339),
	}
	if ticket.ResolvedAt != nil {
		resolved := ticket.ResolvedAt.Format(time.RFC3339)
		record.ResolvedAt = &resolved
	}
	return w.write("support_tickets", "ticket", ticket.ID, ticket.CreatedAt, record)
}

func (w *Writer) write(kind, qualifier string, id int64, createdAt time.Time, record any) error {
	dir := filepath.Join(w.dir, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s_%d.json", createdAt.UTC().Format("20060102"), qualifier, id)
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
