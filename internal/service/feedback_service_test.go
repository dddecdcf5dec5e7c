package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/community-service/internal/domain"
	"github.com/spec-kit/community-service/internal/events"
	"github.com/spec-kit/community-service/internal/repository"
	"github.com/spec-kit/community-service/pkg/util"
)

func newFeedbackFixture(t *testing.T) (*FeedbackService, repository.FeatureRequestRepository, *eventRecorder) {
	t.Helper()
	db := newTestDB(t)
	dispatcher := events.NewInMemoryDispatcher()
	recorder := newEventRecorder(dispatcher)
	featureRepo := repository.NewFeatureRequestRepository(db)

	svc := NewFeedbackService(FeedbackDependencies{
		FeedbackRepo: repository.NewFeedbackRepository(db),
		FeatureRepo:  featureRepo,
		Dispatcher:   dispatcher,
		Logger:       zap.NewNop(),
	})
	return svc, featureRepo, recorder
}

func TestTitleFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"short", "Add dark mode", "Add dark mode"},
		{"first line only", "Add dark mode\nIt would be easier on the eyes", "Add dark mode"},
		{"long line truncated", strings.Repeat("a", 80), strings.Repeat("a", 50) + "..."},
		{"exactly at limit", strings.Repeat("b", 50), strings.Repeat("b", 50) + "..."},
		{"just under limit", strings.Repeat("c", 49), strings.Repeat("c", 49)},
		{"surrounding whitespace", "  trimmed title  \nmore", "trimmed title"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, titleFromContent(tt.content))
		})
	}
}

func TestSubmitFeedbackGeneral(t *testing.T) {
	svc, _, recorder := newFeedbackFixture(t)

	result, err := svc.SubmitFeedback(context.Background(), 100, FeedbackSubmission{
		Type:    domain.FeedbackTypeGeneral,
		Content: "really enjoying the product",
		Rating:  5,
	})
	require.NoError(t, err)
	assert.Positive(t, result.Feedback.ID)
	assert.Equal(t, 5, result.Feedback.Rating)
	assert.Nil(t, result.DerivedRequest)
	assert.Equal(t, []events.EventType{events.EventFeedbackCreated}, recorder.types())
}

func TestSubmitFeedbackValidation(t *testing.T) {
	svc, _, _ := newFeedbackFixture(t)
	ctx := context.Background()

	_, err := svc.SubmitFeedback(ctx, 1, FeedbackSubmission{Type: "spam", Content: "x"})
	assert.True(t, util.HasCode(err, util.CodeValidationFailed))

	_, err = svc.SubmitFeedback(ctx, 1, FeedbackSubmission{Type: domain.FeedbackTypeBug, Content: "   "})
	assert.True(t, util.HasCode(err, util.CodeValidationFailed))

	_, err = svc.SubmitFeedback(ctx, 1, FeedbackSubmission{Type: domain.FeedbackTypeGeneral, Content: "ok", Rating: 6})
	assert.True(t, util.HasCode(err, util.CodeValidationFailed))
}

func TestSubmitFeedbackFeatureDerivesRequest(t *testing.T) {
	svc, featureRepo, recorder := newFeedbackFixture(t)
	ctx := context.Background()

	content := "Add CSV export\nWe need to pull the data into spreadsheets."
	result, err := svc.SubmitFeedback(ctx, 42, FeedbackSubmission{
		Type:    domain.FeedbackTypeFeature,
		Content: content,
	})
	require.NoError(t, err)
	require.NotNil(t, result.DerivedRequest)
	assert.Equal(t, "Add CSV export", result.DerivedRequest.Title)
	assert.Equal(t, content, result.DerivedRequest.Description)
	assert.Equal(t, 1, result.DerivedRequest.Votes)

	stored, err := featureRepo.GetByID(ctx, result.DerivedRequest.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Votes, "the submitter's vote is already counted")
	assert.Equal(t, int64(42), stored.UserID)

	assert.Equal(t, []events.EventType{
		events.EventFeedbackCreated,
		events.EventFeatureRequestCreated,
		events.EventFeatureVoteCast,
	}, recorder.types())
}
