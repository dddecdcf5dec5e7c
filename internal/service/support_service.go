package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/community-service/internal/domain"
	"github.com/spec-kit/community-service/internal/events"
	"github.com/spec-kit/community-service/internal/repository"
	"github.com/spec-kit/community-service/pkg/util"
)

// SupportService coordinates support tickets and their response threads.
type SupportService struct {
	tickets    repository.SupportTicketRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// SupportDependencies bundles collaborators for the service.
type SupportDependencies struct {
	TicketRepo repository.SupportTicketRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// TicketSubmission describes a completed support ticket draft.
type TicketSubmission struct {
	Subject     string
	Description string
	Priority    domain.TicketPriority
}

// TicketDetail pairs a ticket with its response thread.
type TicketDetail struct {
	Ticket    *domain.SupportTicket
	Responses []domain.TicketResponse
}

// NewSupportService constructs the service.
func NewSupportService(deps SupportDependencies) *SupportService {
	return &SupportService{
		tickets:    deps.TicketRepo,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// CreateTicket opens a new support ticket.
func (s *SupportService) CreateTicket(ctx context.Context, userID int64, input TicketSubmission) (*domain.SupportTicket, error) {
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		return nil, util.NewValidationError("subject is required", nil)
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, util.NewValidationError("description is required", nil)
	}
	if input.Priority != "" && !input.Priority.Valid() {
		return nil, util.NewValidationError("unknown ticket priority", map[string]any{"priority": input.Priority})
	}

	ticket := &domain.SupportTicket{
		UserID:      userID,
		Subject:     subject,
		Description: description,
		Status:      domain.TicketStatusOpen,
		Priority:    input.Priority,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, storeFailure(s.logger, "failed to create ticket", err, zap.Int64("user_id", userID))
	}
	s.logger.Info("support ticket opened",
		zap.Int64("ticket_id", ticket.ID),
		zap.Int64("user_id", userID),
		zap.String("priority", string(ticket.Priority)))
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:    events.EventTicketCreated,
		UserID:  userID,
		Payload: events.TicketCreatedPayload{Ticket: *ticket},
	})
	return ticket, nil
}

// GetTicketForUser returns a ticket with its thread. Requesters only
// see their own tickets unless they hold staff access.
func (s *SupportService) GetTicketForUser(ctx context.Context, requester *domain.User, ticketID int64) (*TicketDetail, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, storeFailure(s.logger, "failed to get ticket", err, zap.Int64("ticket_id", ticketID))
	}
	if ticket.UserID != requester.ID && !requester.IsAdmin {
		return nil, util.NewForbidden("ticket belongs to another user", map[string]any{"ticket_id": ticketID})
	}
	responses, err := s.tickets.ListResponses(ctx, ticketID)
	if err != nil {
		return nil, storeFailure(s.logger, "failed to list ticket responses", err, zap.Int64("ticket_id", ticketID))
	}
	return &TicketDetail{Ticket: ticket, Responses: responses}, nil
}

// ListUserTickets returns the requester's own tickets, newest first.
func (s *SupportService) ListUserTickets(ctx context.Context, userID int64, limit, offset int) ([]domain.SupportTicket, error) {
	return s.ListTickets(ctx, repository.TicketFilter{UserID: &userID, Limit: limit, Offset: offset})
}

// ListTickets returns tickets matching the filter.
func (s *SupportService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.SupportTicket, error) {
	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, storeFailure(s.logger, "failed to list tickets", err)
	}
	return tickets, nil
}

// UpdateTicket applies a status or priority change and reports status
// transitions on the event bus.
func (s *SupportService) UpdateTicket(ctx context.Context, actor *domain.User, ticketID int64, update repository.TicketUpdate) (*domain.SupportTicket, error) {
	if update.Status != nil && !update.Status.Valid() {
		return nil, util.NewValidationError("unknown ticket status", map[string]any{"status": *update.Status})
	}
	if update.Priority != nil && !update.Priority.Valid() {
		return nil, util.NewValidationError("unknown ticket priority", map[string]any{"priority": *update.Priority})
	}

	before, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, storeFailure(s.logger, "failed to get ticket for update", err, zap.Int64("ticket_id", ticketID))
	}
	if before.UserID != actor.ID && !actor.IsAdmin {
		return nil, util.NewForbidden("ticket belongs to another user", map[string]any{"ticket_id": ticketID})
	}

	if err := s.tickets.Update(ctx, ticketID, update); err != nil {
		return nil, storeFailure(s.logger, "failed to update ticket", err, zap.Int64("ticket_id", ticketID))
	}
	after, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, storeFailure(s.logger, "failed to reload ticket", err, zap.Int64("ticket_id", ticketID))
	}

	if update.Status != nil && before.Status != after.Status {
		s.logger.Info("ticket status changed",
			zap.Int64("ticket_id", ticketID),
			zap.String("from", string(before.Status)),
			zap.String("to", string(after.Status)))
		publishEvent(ctx, s.dispatcher, events.Event{
			Type:   events.EventTicketStatusChanged,
			UserID: actor.ID,
			Payload: events.TicketStatusChangedPayload{
				TicketID:  ticketID,
				OldStatus: before.Status,
				NewStatus: after.Status,
			},
		})
	}
	return after, nil
}

// AddResponse appends a message to a ticket thread. Non-staff authors
// may only respond on their own tickets.
func (s *SupportService) AddResponse(ctx context.Context, author *domain.User, ticketID int64, content string) (*domain.TicketResponse, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, util.NewValidationError("response content is required", nil)
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, storeFailure(s.logger, "failed to get ticket for response", err, zap.Int64("ticket_id", ticketID))
	}
	if ticket.UserID != author.ID && !author.IsAdmin {
		return nil, util.NewForbidden("ticket belongs to another user", map[string]any{"ticket_id": ticketID})
	}

	resp := &domain.TicketResponse{
		TicketID: ticketID,
		UserID:   author.ID,
		IsStaff:  author.IsAdmin && ticket.UserID != author.ID,
		Content:  content,
	}
	if err := s.tickets.AddResponse(ctx, resp); err != nil {
		return nil, storeFailure(s.logger, "failed to add ticket response", err, zap.Int64("ticket_id", ticketID))
	}
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:   events.EventTicketResponseAdded,
		UserID: author.ID,
		Payload: events.TicketResponseAddedPayload{
			TicketID:   ticketID,
			ResponseID: resp.ID,
			IsStaff:    resp.IsStaff,
		},
	})
	return resp, nil
}
