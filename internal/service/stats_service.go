package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/community-service/internal/directory"
	"github.com/spec-kit/community-service/internal/events"
	"github.com/spec-kit/community-service/internal/persistence"
	"github.com/spec-kit/community-service/internal/repository"
	"github.com/spec-kit/community-service/pkg/util"
)

const statsCacheKey = "community:stats"

// CommunityStats is the combined engagement rollup.
type CommunityStats struct {
	Feedback *repository.FeedbackStats       `json:"feedback"`
	Features *repository.FeatureRequestStats `json:"feature_requests"`
	Support  *repository.SupportStats        `json:"support"`
}

// StatsService aggregates engagement statistics across all three
// stores, with an optional Redis read-through cache invalidated on any
// mutation event.
type StatsService struct {
	feedback  repository.FeedbackRepository
	features  repository.FeatureRequestRepository
	tickets   repository.SupportTicketRepository
	directory directory.Directory
	cache     *persistence.Redis
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// StatsDependencies bundles collaborators for the service.
type StatsDependencies struct {
	FeedbackRepo repository.FeedbackRepository
	FeatureRepo  repository.FeatureRequestRepository
	TicketRepo   repository.SupportTicketRepository
	Directory    directory.Directory
	Cache        *persistence.Redis
	CacheTTL     time.Duration
	Logger       *zap.Logger
}

// NewStatsService constructs the service.
func NewStatsService(deps StatsDependencies) *StatsService {
	return &StatsService{
		feedback:  deps.FeedbackRepo,
		features:  deps.FeatureRepo,
		tickets:   deps.TicketRepo,
		directory: deps.Directory,
		cache:     deps.Cache,
		cacheTTL:  deps.CacheTTL,
		logger:    deps.Logger,
	}
}

// RegisterInvalidation drops the cached rollup whenever any entity is
// created or mutated.
func (s *StatsService) RegisterInvalidation(dispatcher events.Dispatcher) {
	invalidate := func(ctx context.Context, _ events.Event) error {
		s.invalidate(ctx)
		return nil
	}
	for _, eventType := range []events.EventType{
		events.EventFeedbackCreated,
		events.EventFeatureRequestCreated,
		events.EventFeatureVoteCast,
		events.EventFeatureVoteRemoved,
		events.EventTicketCreated,
		events.EventTicketStatusChanged,
		events.EventTicketResponseAdded,
	} {
		dispatcher.Subscribe(eventType, invalidate)
	}
}

// CommunityStats returns the rollup for an admin requester. Non-admins
// are refused before any store access.
func (s *StatsService) CommunityStats(ctx context.Context, requesterID int64) (*CommunityStats, error) {
	user, err := s.directory.GetUser(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin {
		return nil, util.NewForbidden("statistics require admin access", map[string]any{"user_id": requesterID})
	}
	return s.Aggregate(ctx)
}

// Aggregate computes the combined rollup, serving from cache when a
// fresh copy exists.
func (s *StatsService) Aggregate(ctx context.Context) (*CommunityStats, error) {
	if cached := s.fromCache(ctx); cached != nil {
		return cached, nil
	}

	feedbackStats, err := s.feedback.Stats(ctx)
	if err != nil {
		return nil, storeFailure(s.logger, "failed to aggregate feedback stats", err)
	}
	featureStats, err := s.features.Stats(ctx)
	if err != nil {
		return nil, storeFailure(s.logger, "failed to aggregate feature request stats", err)
	}
	supportStats, err := s.tickets.Stats(ctx)
	if err != nil {
		return nil, storeFailure(s.logger, "failed to aggregate support stats", err)
	}

	stats := &CommunityStats{
		Feedback: feedbackStats,
		Features: featureStats,
		Support:  supportStats,
	}
	s.toCache(ctx, stats)
	return stats, nil
}

func (s *StatsService) fromCache(ctx context.Context) *CommunityStats {
	if s.cache == nil || s.cache.Client == nil {
		return nil
	}
	data, err := s.cache.Client.Get(ctx, statsCacheKey).Bytes()
	if err != nil {
		return nil
	}
	var stats CommunityStats
	if err := json.Unmarshal(data, &stats); err != nil {
		s.logger.Warn("discarding malformed cached stats", zap.Error(err))
		return nil
	}
	return &stats
}

func (s *StatsService) toCache(ctx context.Context, stats *CommunityStats) {
	if s.cache == nil || s.cache.Client == nil {
		return
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.cache.Client.Set(ctx, statsCacheKey, data, s.cacheTTL).Err(); err != nil {
		s.logger.Debug("failed to cache stats", zap.Error(err))
	}
}

func (s *StatsService) invalidate(ctx context.Context) {
	if s.cache == nil || s.cache.Client == nil {
		return
	}
	if err := s.cache.Client.Del(ctx, statsCacheKey).Err(); err != nil {
		s.logger.Debug("failed to invalidate cached stats", zap.Error(err))
	}
}
