package domain

import "time"

// TicketStatus enumerates lifecycle states for support tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// Valid reports whether the value is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Valid reports whether the value is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// PriorityRank maps a priority to its queue position. Lower ranks sort
// first; unknown values sort last.
func PriorityRank(p TicketPriority) int {
	switch p {
	case TicketPriorityUrgent:
		return 1
	case TicketPriorityHigh:
		return 2
	case TicketPriorityMedium:
		return 3
	case TicketPriorityLow:
		return 4
	}
	return 5
}

// SupportTicket is the aggregate for a user help request. ResolvedAt is
// set when the ticket transitions into resolved and is never cleared.
type SupportTicket struct {
	ID          int64
	UserID      int64
	Subject     string
	Description string
	Status      TicketStatus
	Priority    TicketPriority
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ResolvedAt  *time.Time
}

// TicketResponse is one message in a ticket's append-only thread.
type TicketResponse struct {
	ID        int64
	TicketID  int64
	UserID    int64
	IsStaff   bool
	Content   string
	CreatedAt time.Time
}
