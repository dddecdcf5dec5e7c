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

// TicketFilter captures ticket listing parameters.
type TicketFilter struct {
	UserID   *int64
	Status   *domain.TicketStatus
	Priority *domain.TicketPriority
	Limit    int
	Offset   int
}

// TicketUpdate describes a partial update; nil fields are untouched.
type TicketUpdate struct {
	Status   *domain.TicketStatus
	Priority *domain.TicketPriority
}

// SupportStats is the aggregate rollup for support tickets.
type SupportStats struct {
	Total              int            `json:"total"`
	ByStatus           map[string]int `json:"by_status"`
	ByPriority         map[string]int `json:"by_priority"`
	AvgResolutionHours float64        `json:"avg_resolution_time"`
	OpenTickets        int            `json:"open_tickets"`
}

// SupportTicketRepository encapsulates ticket and response persistence.
type SupportTicketRepository interface {
	Create(ctx context.Context, ticket *domain.SupportTicket) error
	GetByID(ctx context.Context, id int64) (*domain.SupportTicket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.SupportTicket, error)
	Update(ctx context.Context, id int64, update TicketUpdate) error
	AddResponse(ctx context.Context, resp *domain.TicketResponse) error
	ListResponses(ctx context.Context, ticketID int64) ([]domain.TicketResponse, error)
	Stats(ctx context.Context) (*SupportStats, error)
}

type supportTicketRepository struct {
	db *sql.DB
}

// NewSupportTicketRepository instantiates the repository.
func NewSupportTicketRepository(db *sql.DB) SupportTicketRepository {
	return &supportTicketRepository{db: db}
}

const supportTicketSchema = `
CREATE TABLE IF NOT EXISTS support_tickets (
    ticket_id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    subject TEXT NOT NULL,
    description TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'open',
    priority TEXT NOT NULL DEFAULT 'medium',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    resolved_at TEXT
)`

const ticketResponseSchema = `
CREATE TABLE IF NOT EXISTS ticket_responses (
    response_id INTEGER PRIMARY KEY AUTOINCREMENT,
    ticket_id INTEGER NOT NULL,
    user_id INTEGER NOT NULL,
    is_staff INTEGER NOT NULL DEFAULT 0,
    content TEXT NOT NULL,
    created_at TEXT NOT NULL
)`

func ensureTicketSchema(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, supportTicketSchema); err != nil {
		return fmt.Errorf("ensure support_tickets schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, ticketResponseSchema); err != nil {
		return fmt.Errorf("ensure ticket_responses schema: %w", err)
	}
	return nil
}

func (r *supportTicketRepository) Create(ctx context.Context, ticket *domain.SupportTicket) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ticket create: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ensureTicketSchema(ctx, tx); err != nil {
		return err
	}

	now := time.Now().UTC()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusOpen
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO support_tickets (user_id, subject, description, status, priority, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         RETURNING ticket_id`,
		ticket.UserID, ticket.Subject, ticket.Description, ticket.Status, ticket.Priority,
		formatTime(now), formatTime(now),
	).Scan(&ticket.ID)
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}

	return tx.Commit()
}

const ticketColumns = `ticket_id, user_id, subject, description, status, priority, created_at, updated_at, resolved_at`

func (r *supportTicketRepository) GetByID(ctx context.Context, id int64) (*domain.SupportTicket, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM support_tickets WHERE ticket_id = ?`, id)
	ticket, err := scanTicket(row.Scan)
	if err == sql.ErrNoRows || isNoSuchTable(err) {
		return nil, util.NewNotFound("support ticket", map[string]any{"ticket_id": id})
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return ticket, nil
}

func (r *supportTicketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.SupportTicket, error) {
	exists, err := tableExists(ctx, r.db, "support_tickets")
	if err != nil {
		return nil, fmt.Errorf("check support_tickets table: %w", err)
	}
	if !exists {
		return []domain.SupportTicket{}, nil
	}

	query := `SELECT ` + ticketColumns + ` FROM support_tickets`
	conditions := []string{}
	args := []any{}
	if filter.UserID != nil {
		conditions = append(conditions, "user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.Priority != nil {
		conditions = append(conditions, "priority = ?")
		args = append(args, *filter.Priority)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	// Priority-filtered listings are queue views: fixed priority rank
	// first, then recency. Everything else is plain recency.
	query += " ORDER BY "
	if filter.Priority != nil {
		query += `CASE priority
            WHEN 'urgent' THEN 1
            WHEN 'high' THEN 2
            WHEN 'medium' THEN 3
            WHEN 'low' THEN 4
            ELSE 5 END, `
	}
	query += "created_at DESC, ticket_id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	result := []domain.SupportTicket{}
	for rows.Next() {
		ticket, err := scanTicket(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

// Update applies a partial update and stamps updated_at. Transitioning
// into resolved stamps resolved_at; a repeated resolved transition
// overwrites it, matching the store's historical behavior.
func (r *supportTicketRepository) Update(ctx context.Context, id int64, update TicketUpdate) error {
	setParts := []string{}
	args := []any{}
	now := formatTime(time.Now().UTC())
	if update.Status != nil {
		setParts = append(setParts, "status = ?")
		args = append(args, *update.Status)
		if *update.Status == domain.TicketStatusResolved {
			setParts = append(setParts, "resolved_at = ?")
			args = append(args, now)
		}
	}
	if update.Priority != nil {
		setParts = append(setParts, "priority = ?")
		args = append(args, *update.Priority)
	}
	if len(setParts) == 0 {
		return util.NewValidationError("no fields to update", nil)
	}
	setParts = append(setParts, "updated_at = ?")
	args = append(args, now, id)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ticket update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ensureTicketSchema(ctx, tx); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE support_tickets SET "+strings.Join(setParts, ", ")+" WHERE ticket_id = ?", args...)
	if err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return util.NewNotFound("support ticket", map[string]any{"ticket_id": id})
	}

	return tx.Commit()
}

// AddResponse appends to the ticket thread and bumps the parent's
// updated_at in the same transaction.
func (r *supportTicketRepository) AddResponse(ctx context.Context, resp *domain.TicketResponse) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin response create: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ensureTicketSchema(ctx, tx); err != nil {
		return err
	}

	resp.CreatedAt = time.Now().UTC()
	isStaff := 0
	if resp.IsStaff {
		isStaff = 1
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO ticket_responses (ticket_id, user_id, is_staff, content, created_at)
         VALUES (?, ?, ?, ?, ?)
         RETURNING response_id`,
		resp.TicketID, resp.UserID, isStaff, resp.Content, formatTime(resp.CreatedAt),
	).Scan(&resp.ID)
	if err != nil {
		return fmt.Errorf("insert response: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE support_tickets SET updated_at = ? WHERE ticket_id = ?",
		formatTime(resp.CreatedAt), resp.TicketID); err != nil {
		return fmt.Errorf("bump ticket updated_at: %w", err)
	}

	return tx.Commit()
}

func (r *supportTicketRepository) ListResponses(ctx context.Context, ticketID int64) ([]domain.TicketResponse, error) {
	exists, err := tableExists(ctx, r.db, "ticket_responses")
	if err != nil {
		return nil, fmt.Errorf("check ticket_responses table: %w", err)
	}
	if !exists {
		return []domain.TicketResponse{}, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT response_id, ticket_id, user_id, is_staff, content, created_at
         FROM ticket_responses
         WHERE ticket_id = ?
         ORDER BY created_at ASC, response_id ASC`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()

	result := []domain.TicketResponse{}
	for rows.Next() {
		var (
			resp      domain.TicketResponse
			isStaff   int
			createdAt string
		)
		if err := rows.Scan(&resp.ID, &resp.TicketID, &resp.UserID, &isStaff, &resp.Content, &createdAt); err != nil {
			return nil, err
		}
		resp.IsStaff = isStaff != 0
		if resp.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		result = append(result, resp)
	}
	return result, rows.Err()
}

func (r *supportTicketRepository) Stats(ctx context.Context) (*SupportStats, error) {
	stats := &SupportStats{
		ByStatus:   map[string]int{},
		ByPriority: map[string]int{},
	}

	exists, err := tableExists(ctx, r.db, "support_tickets")
	if err != nil {
		return nil, fmt.Errorf("check support_tickets table: %w", err)
	}
	if !exists {
		return stats, nil
	}

	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM support_tickets").Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("count tickets: %w", err)
	}

	if err := r.groupCount(ctx, "status", stats.ByStatus); err != nil {
		return nil, err
	}
	if err := r.groupCount(ctx, "priority", stats.ByPriority); err != nil {
		return nil, err
	}

	var avg float64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(AVG((julianday(resolved_at) - julianday(created_at)) * 24), 0)
         FROM support_tickets
         WHERE resolved_at IS NOT NULL`).Scan(&avg); err != nil {
		return nil, fmt.Errorf("average resolution time: %w", err)
	}
	stats.AvgResolutionHours = round1(avg)

	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM support_tickets WHERE status IN ('open', 'in_progress')").Scan(&stats.OpenTickets); err != nil {
		return nil, fmt.Errorf("open ticket count: %w", err)
	}

	return stats, nil
}

func (r *supportTicketRepository) groupCount(ctx context.Context, column string, dest map[string]int) error {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+column+", COUNT(*) FROM support_tickets GROUP BY "+column)
	if err != nil {
		return fmt.Errorf("group tickets by %s: %w", column, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key   string
			count int
		)
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		dest[key] = count
	}
	return rows.Err()
}

func scanTicket(scan func(dest ...any) error) (*domain.SupportTicket, error) {
	var (
		ticket     domain.SupportTicket
		createdAt  string
		updatedAt  string
		resolvedAt sql.NullString
	)
	if err := scan(&ticket.ID, &ticket.UserID, &ticket.Subject, &ticket.Description,
		&ticket.Status, &ticket.Priority, &createdAt, &updatedAt, &resolvedAt); err != nil {
		return nil, err
	}
	var err error
	if ticket.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if ticket.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if ticket.ResolvedAt, err = parseNullTime(resolvedAt); err != nil {
		return nil, err
	}
	return &ticket, nil
}
