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

// FeatureService coordinates feature requests and their votes.
type FeatureService struct {
	features   repository.FeatureRequestRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// FeatureDependencies bundles collaborators for the service.
type FeatureDependencies struct {
	FeatureRepo repository.FeatureRequestRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// FeatureSubmission describes a completed feature request draft.
type FeatureSubmission struct {
	Title       string
	Description string
}

// NewFeatureService constructs the service.
func NewFeatureService(deps FeatureDependencies) *FeatureService {
	return &FeatureService{
		features:   deps.FeatureRepo,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// SubmitRequest files a new feature request and casts the submitter's
// own vote, so every request starts with one supporter.
func (s *FeatureService) SubmitRequest(ctx context.Context, userID int64, input FeatureSubmission) (*domain.FeatureRequest, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, util.NewValidationError("title is required", nil)
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, util.NewValidationError("description is required", nil)
	}

	req := &domain.FeatureRequest{
		UserID:      userID,
		Title:       title,
		Description: description,
		Status:      domain.FeatureStatusNew,
	}
	if err := s.features.Create(ctx, req); err != nil {
		return nil, storeFailure(s.logger, "failed to create feature request", err, zap.Int64("user_id", userID))
	}
	s.logger.Info("feature request filed",
		zap.Int64("request_id", req.ID),
		zap.Int64("user_id", userID))
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:    events.EventFeatureRequestCreated,
		UserID:  userID,
		Payload: events.FeatureRequestCreatedPayload{Request: *req},
	})

	if err := s.features.VoteFor(ctx, req.ID, userID); err != nil {
		s.logger.Error("failed to cast submitter vote",
			zap.Int64("request_id", req.ID), zap.Int64("user_id", userID), zap.Error(err))
	} else {
		req.Votes = 1
		publishEvent(ctx, s.dispatcher, events.Event{
			Type:    events.EventFeatureVoteCast,
			UserID:  userID,
			Payload: events.FeatureVotePayload{RequestID: req.ID, VoterID: userID},
		})
	}
	return req, nil
}

// GetRequest fetches a single feature request.
func (s *FeatureService) GetRequest(ctx context.Context, id int64) (*domain.FeatureRequest, error) {
	req, err := s.features.GetByID(ctx, id)
	if err != nil {
		return nil, storeFailure(s.logger, "failed to get feature request", err, zap.Int64("request_id", id))
	}
	return req, nil
}

// ListRequests returns feature requests, most voted first.
func (s *FeatureService) ListRequests(ctx context.Context, filter repository.FeatureRequestFilter) ([]domain.FeatureRequest, error) {
	requests, err := s.features.List(ctx, filter)
	if err != nil {
		return nil, storeFailure(s.logger, "failed to list feature requests", err)
	}
	return requests, nil
}

// UpdateRequest applies a partial update, validating any status change.
func (s *FeatureService) UpdateRequest(ctx context.Context, id int64, update repository.FeatureRequestUpdate) (*domain.FeatureRequest, error) {
	if update.Status != nil && !update.Status.Valid() {
		return nil, util.NewValidationError("unknown feature request status", map[string]any{"status": *update.Status})
	}
	if err := s.features.Update(ctx, id, update); err != nil {
		return nil, storeFailure(s.logger, "failed to update feature request", err, zap.Int64("request_id", id))
	}
	return s.GetRequest(ctx, id)
}

// Vote casts a vote for the given request on behalf of the voter. The
// request must exist; voting twice surfaces the duplicate to the caller.
func (s *FeatureService) Vote(ctx context.Context, requestID, voterID int64) (*domain.FeatureRequest, error) {
	if _, err := s.features.GetByID(ctx, requestID); err != nil {
		return nil, storeFailure(s.logger, "failed to look up feature request for vote", err, zap.Int64("request_id", requestID))
	}
	if err := s.features.VoteFor(ctx, requestID, voterID); err != nil {
		return nil, storeFailure(s.logger, "failed to cast vote", err,
			zap.Int64("request_id", requestID), zap.Int64("user_id", voterID))
	}
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:    events.EventFeatureVoteCast,
		UserID:  voterID,
		Payload: events.FeatureVotePayload{RequestID: requestID, VoterID: voterID},
	})
	return s.GetRequest(ctx, requestID)
}

// Unvote withdraws the voter's vote. A missing vote is reported as a
// not-found outcome without touching the request.
func (s *FeatureService) Unvote(ctx context.Context, requestID, voterID int64) (*domain.FeatureRequest, error) {
	if err := s.features.RemoveVote(ctx, requestID, voterID); err != nil {
		return nil, storeFailure(s.logger, "failed to remove vote", err,
			zap.Int64("request_id", requestID), zap.Int64("user_id", voterID))
	}
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:    events.EventFeatureVoteRemoved,
		UserID:  voterID,
		Payload: events.FeatureVotePayload{RequestID: requestID, VoterID: voterID},
	})
	return s.GetRequest(ctx, requestID)
}
