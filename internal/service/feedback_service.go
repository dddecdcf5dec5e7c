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

// featureTitleLimit is the maximum visible title length when a title is
// auto-derived from feedback content.
const featureTitleLimit = 50

// FeedbackService coordinates feedback submission.
type FeedbackService struct {
	feedback   repository.FeedbackRepository
	features   repository.FeatureRequestRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// FeedbackDependencies bundles collaborators for the service.
type FeedbackDependencies struct {
	FeedbackRepo repository.FeedbackRepository
	FeatureRepo  repository.FeatureRequestRepository
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// FeedbackSubmission describes a completed feedback draft.
type FeedbackSubmission struct {
	Type    domain.FeedbackType
	Content string
	Rating  int
}

// FeedbackResult reports what a submission produced. DerivedRequest is
// set when feature-type feedback auto-created a feature request.
type FeedbackResult struct {
	Feedback       *domain.Feedback
	DerivedRequest *domain.FeatureRequest
}

// NewFeedbackService constructs the service.
func NewFeedbackService(deps FeedbackDependencies) *FeedbackService {
	return &FeedbackService{
		feedback:   deps.FeedbackRepo,
		features:   deps.FeatureRepo,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// SubmitFeedback stores a feedback entry. Feature-type feedback also
// derives a feature request from the same content and casts the
// submitter's vote on it, so a suggestion never needs to be filed twice.
func (s *FeedbackService) SubmitFeedback(ctx context.Context, userID int64, input FeedbackSubmission) (*FeedbackResult, error) {
	if !input.Type.Valid() {
		return nil, util.NewValidationError("unknown feedback type", map[string]any{"type": input.Type})
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, util.NewValidationError("feedback content is required", nil)
	}
	if input.Rating < 0 || input.Rating > 5 {
		return nil, util.NewValidationError("rating must be between 0 and 5", map[string]any{"rating": input.Rating})
	}

	fb := &domain.Feedback{
		UserID:  userID,
		Type:    input.Type,
		Content: content,
		Rating:  input.Rating,
	}
	if err := s.feedback.Create(ctx, fb); err != nil {
		return nil, storeFailure(s.logger, "failed to create feedback", err, zap.Int64("user_id", userID))
	}
	s.logger.Info("feedback recorded",
		zap.Int64("feedback_id", fb.ID),
		zap.Int64("user_id", userID),
		zap.String("type", string(fb.Type)))
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:    events.EventFeedbackCreated,
		UserID:  userID,
		Payload: events.FeedbackCreatedPayload{Feedback: *fb},
	})

	result := &FeedbackResult{Feedback: fb}
	if input.Type == domain.FeedbackTypeFeature {
		result.DerivedRequest = s.deriveFeatureRequest(ctx, userID, content)
	}
	return result, nil
}

// deriveFeatureRequest files a feature request on behalf of the
// submitter. The feedback row is already committed, so failures here
// are logged and absorbed rather than unwinding the submission.
func (s *FeedbackService) deriveFeatureRequest(ctx context.Context, userID int64, content string) *domain.FeatureRequest {
	req := &domain.FeatureRequest{
		UserID:      userID,
		Title:       titleFromContent(content),
		Description: content,
		Status:      domain.FeatureStatusNew,
	}
	if err := s.features.Create(ctx, req); err != nil {
		s.logger.Error("failed to derive feature request from feedback",
			zap.Int64("user_id", userID), zap.Error(err))
		return nil
	}
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:    events.EventFeatureRequestCreated,
		UserID:  userID,
		Payload: events.FeatureRequestCreatedPayload{Request: *req},
	})

	if err := s.features.VoteFor(ctx, req.ID, userID); err != nil {
		s.logger.Error("failed to cast submitter vote on derived request",
			zap.Int64("request_id", req.ID), zap.Int64("user_id", userID), zap.Error(err))
	} else {
		req.Votes = 1
		publishEvent(ctx, s.dispatcher, events.Event{
			Type:    events.EventFeatureVoteCast,
			UserID:  userID,
			Payload: events.FeatureVotePayload{RequestID: req.ID, VoterID: userID},
		})
	}
	return req
}

// ListFeedback returns feedback entries, newest first.
func (s *FeedbackService) ListFeedback(ctx context.Context, filter repository.FeedbackFilter) ([]domain.Feedback, error) {
	entries, err := s.feedback.List(ctx, filter)
	if err != nil {
		return nil, storeFailure(s.logger, "failed to list feedback", err)
	}
	return entries, nil
}

// titleFromContent derives a request title from free-form content: the
// first line, cut at the visible-length limit. A cut at exactly the
// limit carries an ellipsis marker.
func titleFromContent(content string) string {
	line := content
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		line = content[:idx]
	}
	line = strings.TrimSpace(line)
	runes := []rune(line)
	if len(runes) > featureTitleLimit {
		runes = runes[:featureTitleLimit]
	}
	title := string(runes)
	if len(runes) == featureTitleLimit {
		title += "..."
	}
	return title
}
