package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/community-service/internal/domain"
	"github.com/spec-kit/community-service/pkg/util"
)

func TestFeedbackCreateAndGet(t *testing.T) {
	repo := NewFeedbackRepository(newTestDB(t))
	ctx := context.Background()

	fb := &domain.Feedback{
		UserID:  100,
		Type:    domain.FeedbackTypeBug,
		Content: "login button does nothing",
	}
	require.NoError(t, repo.Create(ctx, fb))
	assert.Positive(t, fb.ID)
	assert.False(t, fb.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, fb.ID)
	require.NoError(t, err)
	assert.Equal(t, fb.UserID, got.UserID)
	assert.Equal(t, domain.FeedbackTypeBug, got.Type)
	assert.Equal(t, fb.Content, got.Content)
	assert.Equal(t, 0, got.Rating)
}

func TestFeedbackGetMissing(t *testing.T) {
	repo := NewFeedbackRepository(newTestDB(t))

	_, err := repo.GetByID(context.Background(), 42)
	assert.True(t, util.HasCode(err, util.CodeNotFound))
}

func TestFeedbackListNewestFirst(t *testing.T) {
	repo := NewFeedbackRepository(newTestDB(t))
	ctx := context.Background()

	ids := []int64{}
	for _, content := range []string{"first", "second", "third"} {
		fb := &domain.Feedback{UserID: 1, Type: domain.FeedbackTypeGeneral, Content: content, Rating: 3}
		require.NoError(t, repo.Create(ctx, fb))
		ids = append(ids, fb.ID)
	}

	entries, err := repo.List(ctx, FeedbackFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, ids[2], entries[0].ID)
	assert.Equal(t, ids[1], entries[1].ID)
	assert.Equal(t, ids[0], entries[2].ID)
}

func TestFeedbackListFilterByType(t *testing.T) {
	repo := NewFeedbackRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.Feedback{UserID: 1, Type: domain.FeedbackTypeBug, Content: "a"}))
	require.NoError(t, repo.Create(ctx, &domain.Feedback{UserID: 1, Type: domain.FeedbackTypeGeneral, Content: "b", Rating: 5}))

	bugType := domain.FeedbackTypeBug
	entries, err := repo.List(ctx, FeedbackFilter{Type: &bugType})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.FeedbackTypeBug, entries[0].Type)
}

func TestFeedbackListEmptyStore(t *testing.T) {
	repo := NewFeedbackRepository(newTestDB(t))

	entries, err := repo.List(context.Background(), FeedbackFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFeedbackStatsEmptyStore(t *testing.T) {
	repo := NewFeedbackRepository(newTestDB(t))

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
	assert.Empty(t, stats.ByType)
	assert.Equal(t, 0.0, stats.AverageRating)
	assert.Equal(t, 0, stats.RecentCount)
}

func TestFeedbackStats(t *testing.T) {
	repo := NewFeedbackRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.Feedback{UserID: 1, Type: domain.FeedbackTypeGeneral, Content: "good", Rating: 4}))
	require.NoError(t, repo.Create(ctx, &domain.Feedback{UserID: 2, Type: domain.FeedbackTypeGeneral, Content: "great", Rating: 5}))
	require.NoError(t, repo.Create(ctx, &domain.Feedback{UserID: 3, Type: domain.FeedbackTypeBug, Content: "broken"}))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, map[string]int{"general": 2, "bug": 1}, stats.ByType)
	// unrated entries are excluded from the average
	assert.Equal(t, 4.5, stats.AverageRating)
	assert.Equal(t, 3, stats.RecentCount)
}
