package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/community-service/internal/directory"
	"github.com/spec-kit/community-service/internal/domain"
	"github.com/spec-kit/community-service/internal/events"
	"github.com/spec-kit/community-service/internal/repository"
	"github.com/spec-kit/community-service/pkg/util"
)

func newStatsFixture(t *testing.T) (*StatsService, *FeedbackService, *SupportService) {
	t.Helper()
	db := newTestDB(t)
	dispatcher := events.NewInMemoryDispatcher()
	logger := zap.NewNop()

	feedbackRepo := repository.NewFeedbackRepository(db)
	featureRepo := repository.NewFeatureRequestRepository(db)
	ticketRepo := repository.NewSupportTicketRepository(db)

	stats := NewStatsService(StatsDependencies{
		FeedbackRepo: feedbackRepo,
		FeatureRepo:  featureRepo,
		TicketRepo:   ticketRepo,
		Directory:    directory.NewStatic([]int64{9}),
		Logger:       logger,
	})
	feedback := NewFeedbackService(FeedbackDependencies{
		FeedbackRepo: feedbackRepo,
		FeatureRepo:  featureRepo,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	support := NewSupportService(SupportDependencies{
		TicketRepo: ticketRepo,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	return stats, feedback, support
}

func TestCommunityStatsRequiresAdmin(t *testing.T) {
	stats, _, _ := newStatsFixture(t)

	_, err := stats.CommunityStats(context.Background(), 1)
	assert.True(t, util.HasCode(err, util.CodeForbidden))
}

func TestCommunityStatsEmptyStore(t *testing.T) {
	stats, _, _ := newStatsFixture(t)

	rollup, err := stats.CommunityStats(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, 0, rollup.Feedback.Total)
	assert.Equal(t, 0, rollup.Features.Total)
	assert.Equal(t, 0, rollup.Support.Total)
}

func TestCommunityStatsRollup(t *testing.T) {
	stats, feedback, support := newStatsFixture(t)
	ctx := context.Background()

	_, err := feedback.SubmitFeedback(ctx, 1, FeedbackSubmission{
		Type: domain.FeedbackTypeGeneral, Content: "nice", Rating: 4,
	})
	require.NoError(t, err)

	result, err := feedback.SubmitFeedback(ctx, 2, FeedbackSubmission{
		Type: domain.FeedbackTypeFeature, Content: "please add exports",
	})
	require.NoError(t, err)
	require.NotNil(t, result.DerivedRequest)

	_, err = support.CreateTicket(ctx, 3, TicketSubmission{
		Subject: "help", Description: "stuck", Priority: domain.TicketPriorityUrgent,
	})
	require.NoError(t, err)

	rollup, err := stats.CommunityStats(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, 2, rollup.Feedback.Total)
	assert.Equal(t, 4.0, rollup.Feedback.AverageRating)
	assert.Equal(t, 1, rollup.Features.Total)
	require.NotEmpty(t, rollup.Features.TopVoted)
	assert.Equal(t, 1, rollup.Features.TopVoted[0].Votes)
	assert.Equal(t, 1, rollup.Support.Total)
	assert.Equal(t, 1, rollup.Support.OpenTickets)
	assert.Equal(t, map[string]int{"urgent": 1}, rollup.Support.ByPriority)
}
