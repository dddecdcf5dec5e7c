package dialog

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/community-service/internal/directory"
	"github.com/spec-kit/community-service/internal/domain"
	"github.com/spec-kit/community-service/internal/events"
	"github.com/spec-kit/community-service/internal/gateway"
	"github.com/spec-kit/community-service/internal/observability"
	"github.com/spec-kit/community-service/internal/repository"
	"github.com/spec-kit/community-service/internal/service"

	_ "modernc.org/sqlite"
)

// fakeGateway records outbound messages instead of delivering them.
type fakeGateway struct {
	mu      sync.Mutex
	texts   []string
	choices [][][]gateway.Choice
}

func (g *fakeGateway) Prompt(_ context.Context, _ int64, text string, choices [][]gateway.Choice) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.texts = append(g.texts, text)
	g.choices = append(g.choices, choices)
	return nil
}

func (g *fakeGateway) Notify(_ context.Context, _ int64, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.texts = append(g.texts, text)
	g.choices = append(g.choices, nil)
	return nil
}

func (g *fakeGateway) last(t *testing.T) string {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	require.NotEmpty(t, g.texts)
	return g.texts[len(g.texts)-1]
}

type fixture struct {
	dispatcher *Dispatcher
	gateway    *fakeGateway
	metrics    *observability.Metrics
	feedback   repository.FeedbackRepository
	features   repository.FeatureRequestRepository
	tickets    repository.SupportTicketRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	logger := zap.NewNop()
	bus := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	users := directory.NewStatic([]int64{999})

	feedbackRepo := repository.NewFeedbackRepository(db)
	featureRepo := repository.NewFeatureRequestRepository(db)
	ticketRepo := repository.NewSupportTicketRepository(db)

	gw := &fakeGateway{}
	d := NewDispatcher(Dependencies{
		Gateway: gw,
		Users:   users,
		FeedbackService: service.NewFeedbackService(service.FeedbackDependencies{
			FeedbackRepo: feedbackRepo,
			FeatureRepo:  featureRepo,
			Dispatcher:   bus,
			Logger:       logger,
		}),
		FeatureService: service.NewFeatureService(service.FeatureDependencies{
			FeatureRepo: featureRepo,
			Dispatcher:  bus,
			Logger:      logger,
		}),
		SupportService: service.NewSupportService(service.SupportDependencies{
			TicketRepo: ticketRepo,
			Dispatcher: bus,
			Logger:     logger,
		}),
		StatsService: service.NewStatsService(service.StatsDependencies{
			FeedbackRepo: feedbackRepo,
			FeatureRepo:  featureRepo,
			TicketRepo:   ticketRepo,
			Directory:    users,
			Logger:       logger,
		}),
		Metrics: metrics,
		Logger:  logger,
	})
	return &fixture{
		dispatcher: d,
		gateway:    gw,
		metrics:    metrics,
		feedback:   feedbackRepo,
		features:   featureRepo,
		tickets:    ticketRepo,
	}
}

func (f *fixture) selection(t *testing.T, userID int64, data string) bool {
	t.Helper()
	handled, err := f.dispatcher.HandleSelection(context.Background(), userID, data)
	require.NoError(t, err)
	return handled
}

func (f *fixture) text(t *testing.T, userID int64, text string) bool {
	t.Helper()
	handled, err := f.dispatcher.HandleText(context.Background(), userID, text)
	require.NoError(t, err)
	return handled
}

func TestBugFeedbackFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.dispatcher.StartWorkflow(ctx, WorkflowFeedback, 1))
	assert.True(t, f.selection(t, 1, "feedback_bug"))
	assert.True(t, f.text(t, 1, "the save button crashes the app"))

	entries, err := f.feedback.List(ctx, repository.FeedbackFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.FeedbackTypeBug, entries[0].Type)
	assert.Equal(t, 0, entries[0].Rating)

	// bug reports never spawn feature requests
	requests, err := f.features.List(ctx, repository.FeatureRequestFilter{})
	require.NoError(t, err)
	assert.Empty(t, requests)

	assert.Equal(t, int64(1), f.metrics.WorkflowCount(string(WorkflowFeedback), "completed"))
	assert.False(t, f.text(t, 1, "stray message"), "finished workflow consumes no more input")
}

func TestGeneralFeedbackCollectsRating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.dispatcher.StartWorkflow(ctx, WorkflowFeedback, 1))
	f.selection(t, 1, "feedback_general")
	f.text(t, 1, "love the new dashboard")
	f.selection(t, 1, "rating_4")

	entries, err := f.feedback.List(ctx, repository.FeedbackFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 4, entries[0].Rating)
}

func TestFeatureFeedbackSpawnsRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.dispatcher.StartWorkflow(ctx, WorkflowFeedback, 1))
	f.selection(t, 1, "feedback_feature")
	f.text(t, 1, "Add CSV export\nSo I can analyze my data offline.")

	requests, err := f.features.List(ctx, repository.FeatureRequestFilter{})
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "Add CSV export", requests[0].Title)
	assert.Equal(t, 1, requests[0].Votes)
	assert.Contains(t, f.gateway.last(t), "feature request #")
}

func TestFeatureWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.dispatcher.StartWorkflow(ctx, WorkflowFeature, 5))
	f.text(t, 5, "Dark mode")
	f.text(t, 5, "The white theme hurts at night.")

	requests, err := f.features.List(ctx, repository.FeatureRequestFilter{})
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "Dark mode", requests[0].Title)
	assert.Equal(t, 1, requests[0].Votes, "submitter's vote is automatic")
	assert.Equal(t, int64(1), f.metrics.WorkflowCount(string(WorkflowFeature), "completed"))
}

func TestSupportWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.dispatcher.StartWorkflow(ctx, WorkflowSupport, 7))
	f.text(t, 7, "Cannot reset password")
	f.text(t, 7, "The reset email never arrives.")
	f.selection(t, 7, "priority_urgent")

	tickets, err := f.tickets.List(ctx, repository.TicketFilter{})
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "Cannot reset password", tickets[0].Subject)
	assert.Equal(t, domain.TicketPriorityUrgent, tickets[0].Priority)
	assert.Contains(t, f.gateway.last(t), "Support ticket #")
}

func TestCancelDiscardsDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.dispatcher.StartWorkflow(ctx, WorkflowSupport, 7))
	f.text(t, 7, "Half-written subject")
	assert.True(t, f.selection(t, 7, "cancel_support"))

	tickets, err := f.tickets.List(ctx, repository.TicketFilter{})
	require.NoError(t, err)
	assert.Empty(t, tickets)
	assert.Equal(t, int64(1), f.metrics.WorkflowCount(string(WorkflowSupport), "aborted"))
	assert.False(t, f.text(t, 7, "more text"), "cancelled workflow is gone")
}

func TestInvalidInputRepromptsWithoutStateLoss(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.dispatcher.StartWorkflow(ctx, WorkflowFeedback, 1))
	f.selection(t, 1, "feedback_general")
	f.text(t, 1, "solid product")

	// out-of-range rating re-prompts, then a valid one still lands
	f.selection(t, 1, "rating_9")
	f.selection(t, 1, "rating_5")

	entries, err := f.feedback.List(ctx, repository.FeedbackFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 5, entries[0].Rating)
}

func TestBlankTextReprompts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.dispatcher.StartWorkflow(ctx, WorkflowFeature, 1))
	assert.True(t, f.text(t, 1, "   "))
	f.text(t, 1, "Real title")
	f.text(t, 1, "Real description")

	requests, err := f.features.List(ctx, repository.FeatureRequestFilter{})
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "Real title", requests[0].Title)
}

func TestRestartReplacesDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.dispatcher.StartWorkflow(ctx, WorkflowFeature, 1))
	f.text(t, 1, "Forgotten title")
	require.NoError(t, f.dispatcher.StartWorkflow(ctx, WorkflowFeature, 1))
	f.text(t, 1, "Fresh title")
	f.text(t, 1, "Fresh description")

	requests, err := f.features.List(ctx, repository.FeatureRequestFilter{})
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "Fresh title", requests[0].Title)
}

func TestConcurrentWorkflowsPerUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.dispatcher.StartWorkflow(ctx, WorkflowFeedback, 1))
	require.NoError(t, f.dispatcher.StartWorkflow(ctx, WorkflowFeature, 1))

	// feedback is still waiting on a type selection, so text goes to the
	// feature flow
	f.text(t, 1, "Title for the feature flow")
	f.selection(t, 1, "feedback_bug")
	f.text(t, 1, "and this lands in the feedback flow")

	entries, err := f.feedback.List(ctx, repository.FeedbackFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "and this lands in the feedback flow", entries[0].Content)
}

func TestConcurrentTextDeliveriesSerialize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.dispatcher.StartWorkflow(ctx, WorkflowFeature, 1))

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.dispatcher.HandleText(ctx, 1, "concurrent delivery")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// one delivery lands as the title, the other as the description;
	// exactly one request is filed either way
	requests, err := f.features.List(ctx, repository.FeatureRequestFilter{})
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "concurrent delivery", requests[0].Title)
	assert.Equal(t, int64(1), f.metrics.WorkflowCount(string(WorkflowFeature), "completed"))
}

func TestConcurrentRatingTapsStoreOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.dispatcher.StartWorkflow(ctx, WorkflowFeedback, 1))
	f.selection(t, 1, "feedback_general")
	f.text(t, 1, "great app")

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.dispatcher.HandleSelection(ctx, 1, "rating_5")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	entries, err := f.feedback.List(ctx, repository.FeedbackFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 5, entries[0].Rating)
}

func TestStaleSelectionIgnored(t *testing.T) {
	f := newFixture(t)

	assert.False(t, f.selection(t, 1, "rating_5"))
	assert.False(t, f.selection(t, 1, "cancel_feedback"))
}

func TestVoteCommands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.dispatcher.StartWorkflow(ctx, WorkflowFeature, 1))
	f.text(t, 1, "Webhooks")
	f.text(t, 1, "Notify my server on changes.")

	requests, err := f.features.List(ctx, repository.FeatureRequestFilter{})
	require.NoError(t, err)
	require.Len(t, requests, 1)
	id := requests[0].ID

	handled, err := f.dispatcher.HandleCommand(ctx, 2, "vote", []string{"1"})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Contains(t, f.gateway.last(t), "2 vote(s)")

	// voting twice is refused politely
	_, err = f.dispatcher.HandleCommand(ctx, 2, "vote", []string{"1"})
	require.NoError(t, err)
	assert.Contains(t, f.gateway.last(t), "already voted")

	// withdrawing restores the count
	_, err = f.dispatcher.HandleCommand(ctx, 2, "unvote", []string{"1"})
	require.NoError(t, err)
	assert.Contains(t, f.gateway.last(t), "1 vote(s)")

	// withdrawing again is a no-op message
	_, err = f.dispatcher.HandleCommand(ctx, 2, "unvote", []string{"1"})
	require.NoError(t, err)
	assert.Contains(t, f.gateway.last(t), "haven't voted")

	current, err := f.features.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, current.Votes)
}

func TestTicketStatusCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.dispatcher.StartWorkflow(ctx, WorkflowSupport, 7))
	f.text(t, 7, "Sync broken")
	f.text(t, 7, "Changes are not syncing between devices.")
	f.selection(t, 7, "priority_high")

	_, err := f.dispatcher.HandleCommand(ctx, 7, "ticketstatus", nil)
	require.NoError(t, err)
	assert.Contains(t, f.gateway.last(t), "Sync broken")

	// another user cannot peek at the ticket
	_, err = f.dispatcher.HandleCommand(ctx, 8, "ticketstatus", []string{"1"})
	require.NoError(t, err)
	assert.Contains(t, f.gateway.last(t), "belongs to someone else")

	// owner resolves through the button
	assert.True(t, f.selection(t, 7, "resolve_1"))
	ticket, err := f.tickets.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, ticket.Status)
	assert.NotNil(t, ticket.ResolvedAt)
}

func TestCommunityStatsCommandGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.dispatcher.HandleCommand(ctx, 1, "communitystats", nil)
	require.NoError(t, err)
	assert.Contains(t, f.gateway.last(t), "only available to admins")

	_, err = f.dispatcher.HandleCommand(ctx, 999, "communitystats", nil)
	require.NoError(t, err)
	assert.Contains(t, f.gateway.last(t), "Community Statistics")
}

func TestUnknownCommandNotHandled(t *testing.T) {
	f := newFixture(t)

	handled, err := f.dispatcher.HandleCommand(context.Background(), 1, "weather", nil)
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestCancelCommandClearsAllFlows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.dispatcher.StartWorkflow(ctx, WorkflowFeedback, 1))
	require.NoError(t, f.dispatcher.StartWorkflow(ctx, WorkflowSupport, 1))

	_, err := f.dispatcher.HandleCommand(ctx, 1, "cancel", nil)
	require.NoError(t, err)
	assert.False(t, f.text(t, 1, "anything"))

	_, err = f.dispatcher.HandleCommand(ctx, 1, "cancel", nil)
	require.NoError(t, err)
	assert.Contains(t, f.gateway.last(t), "Nothing to cancel")
}

func TestPromptChoicesCarrySelectionData(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.dispatcher.StartWorkflow(context.Background(), WorkflowFeedback, 1))

	f.gateway.mu.Lock()
	defer f.gateway.mu.Unlock()
	require.NotEmpty(t, f.gateway.choices)
	flat := []string{}
	for _, row := range f.gateway.choices[0] {
		for _, choice := range row {
			flat = append(flat, choice.Data)
		}
	}
	assert.Contains(t, strings.Join(flat, " "), "feedback_bug")
	assert.Contains(t, strings.Join(flat, " "), "cancel_feedback")
}
