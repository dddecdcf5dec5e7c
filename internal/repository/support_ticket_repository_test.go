package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/community-service/internal/domain"
	"github.com/spec-kit/community-service/pkg/util"
)

func createTicket(t *testing.T, repo SupportTicketRepository, userID int64, subject string, priority domain.TicketPriority) *domain.SupportTicket {
	t.Helper()
	ticket := &domain.SupportTicket{
		UserID:      userID,
		Subject:     subject,
		Description: "details of " + subject,
		Priority:    priority,
	}
	require.NoError(t, repo.Create(context.Background(), ticket))
	return ticket
}

func TestTicketCreateDefaults(t *testing.T) {
	repo := NewSupportTicketRepository(newTestDB(t))

	ticket := &domain.SupportTicket{UserID: 5, Subject: "cannot log in", Description: "details"}
	require.NoError(t, repo.Create(context.Background(), ticket))
	assert.Positive(t, ticket.ID)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)

	got, err := repo.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ResolvedAt)
}

func TestTicketUpdateStampsResolvedAt(t *testing.T) {
	repo := NewSupportTicketRepository(newTestDB(t))
	ctx := context.Background()

	ticket := createTicket(t, repo, 1, "slow dashboard", domain.TicketPriorityHigh)

	resolved := domain.TicketStatusResolved
	require.NoError(t, repo.Update(ctx, ticket.ID, TicketUpdate{Status: &resolved}))

	got, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, got.Status)
	require.NotNil(t, got.ResolvedAt)
	assert.False(t, got.ResolvedAt.IsZero())
}

func TestTicketReResolveOverwritesResolvedAt(t *testing.T) {
	repo := NewSupportTicketRepository(newTestDB(t))
	ctx := context.Background()

	ticket := createTicket(t, repo, 1, "flaky import", domain.TicketPriorityMedium)

	resolved := domain.TicketStatusResolved
	require.NoError(t, repo.Update(ctx, ticket.ID, TicketUpdate{Status: &resolved}))
	first, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, first.ResolvedAt)

	// timestamps carry millisecond precision
	time.Sleep(5 * time.Millisecond)

	require.NoError(t, repo.Update(ctx, ticket.ID, TicketUpdate{Status: &resolved}))
	second, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, second.ResolvedAt)
	assert.True(t, second.ResolvedAt.After(*first.ResolvedAt),
		"re-resolving restamps the resolution time")
}

func TestTicketUpdateNonResolveKeepsResolvedAtEmpty(t *testing.T) {
	repo := NewSupportTicketRepository(newTestDB(t))
	ctx := context.Background()

	ticket := createTicket(t, repo, 1, "slow dashboard", domain.TicketPriorityLow)

	inProgress := domain.TicketStatusInProgress
	require.NoError(t, repo.Update(ctx, ticket.ID, TicketUpdate{Status: &inProgress}))

	got, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, got.Status)
	assert.Nil(t, got.ResolvedAt)
}

func TestTicketUpdatePriorityOnly(t *testing.T) {
	repo := NewSupportTicketRepository(newTestDB(t))
	ctx := context.Background()

	ticket := createTicket(t, repo, 1, "broken export", domain.TicketPriorityLow)

	urgent := domain.TicketPriorityUrgent
	require.NoError(t, repo.Update(ctx, ticket.ID, TicketUpdate{Priority: &urgent}))

	got, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityUrgent, got.Priority)
	assert.Equal(t, domain.TicketStatusOpen, got.Status)
}

func TestTicketListFilterByUser(t *testing.T) {
	repo := NewSupportTicketRepository(newTestDB(t))
	ctx := context.Background()

	mine := createTicket(t, repo, 1, "mine", domain.TicketPriorityMedium)
	createTicket(t, repo, 2, "theirs", domain.TicketPriorityMedium)

	userID := int64(1)
	tickets, err := repo.List(ctx, TicketFilter{UserID: &userID})
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, mine.ID, tickets[0].ID)
}

func TestTicketListNewestFirst(t *testing.T) {
	repo := NewSupportTicketRepository(newTestDB(t))
	ctx := context.Background()

	older := createTicket(t, repo, 1, "older", domain.TicketPriorityUrgent)
	newer := createTicket(t, repo, 1, "newer", domain.TicketPriorityLow)

	tickets, err := repo.List(ctx, TicketFilter{})
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	// no priority filter: plain recency, urgency does not jump the list
	assert.Equal(t, newer.ID, tickets[0].ID)
	assert.Equal(t, older.ID, tickets[1].ID)
}

func TestUrgentTicketCreatedLaterListsFirst(t *testing.T) {
	repo := NewSupportTicketRepository(newTestDB(t))
	ctx := context.Background()

	low := createTicket(t, repo, 1, "minor annoyance", domain.TicketPriorityLow)
	urgent := createTicket(t, repo, 2, "production down", domain.TicketPriorityUrgent)

	tickets, err := repo.List(ctx, TicketFilter{})
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, urgent.ID, tickets[0].ID)
	assert.Equal(t, low.ID, tickets[1].ID)
}

func TestTicketListPriorityFilterRanksQueue(t *testing.T) {
	repo := NewSupportTicketRepository(newTestDB(t))
	ctx := context.Background()

	urgent := createTicket(t, repo, 1, "on fire", domain.TicketPriorityUrgent)

	priority := domain.TicketPriorityUrgent
	tickets, err := repo.List(ctx, TicketFilter{Priority: &priority})
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, urgent.ID, tickets[0].ID)
}

func TestAddResponseBumpsTicket(t *testing.T) {
	repo := NewSupportTicketRepository(newTestDB(t))
	ctx := context.Background()

	ticket := createTicket(t, repo, 1, "question", domain.TicketPriorityMedium)

	resp := &domain.TicketResponse{TicketID: ticket.ID, UserID: 99, IsStaff: true, Content: "have you tried restarting?"}
	require.NoError(t, repo.AddResponse(ctx, resp))
	assert.Positive(t, resp.ID)

	got, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.False(t, got.UpdatedAt.Before(ticket.UpdatedAt))

	responses, err := repo.ListResponses(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.True(t, responses[0].IsStaff)
	assert.Equal(t, "have you tried restarting?", responses[0].Content)
}

func TestListResponsesOldestFirst(t *testing.T) {
	repo := NewSupportTicketRepository(newTestDB(t))
	ctx := context.Background()

	ticket := createTicket(t, repo, 1, "question", domain.TicketPriorityMedium)
	for _, content := range []string{"first", "second", "third"} {
		require.NoError(t, repo.AddResponse(ctx, &domain.TicketResponse{
			TicketID: ticket.ID, UserID: 1, Content: content,
		}))
	}

	responses, err := repo.ListResponses(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, responses, 3)
	assert.Equal(t, "first", responses[0].Content)
	assert.Equal(t, "third", responses[2].Content)
}

func TestTicketGetMissing(t *testing.T) {
	repo := NewSupportTicketRepository(newTestDB(t))

	_, err := repo.GetByID(context.Background(), 7)
	assert.True(t, util.HasCode(err, util.CodeNotFound))
}

func TestSupportStats(t *testing.T) {
	repo := NewSupportTicketRepository(newTestDB(t))
	ctx := context.Background()

	createTicket(t, repo, 1, "open one", domain.TicketPriorityLow)
	second := createTicket(t, repo, 2, "solved one", domain.TicketPriorityHigh)

	resolved := domain.TicketStatusResolved
	require.NoError(t, repo.Update(ctx, second.ID, TicketUpdate{Status: &resolved}))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, map[string]int{"open": 1, "resolved": 1}, stats.ByStatus)
	assert.Equal(t, map[string]int{"low": 1, "high": 1}, stats.ByPriority)
	assert.Equal(t, 1, stats.OpenTickets)
	assert.GreaterOrEqual(t, stats.AvgResolutionHours, 0.0)
}

func TestSupportStatsEmptyStore(t *testing.T) {
	repo := NewSupportTicketRepository(newTestDB(t))

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 0, stats.OpenTickets)
	assert.Equal(t, 0.0, stats.AvgResolutionHours)
}
