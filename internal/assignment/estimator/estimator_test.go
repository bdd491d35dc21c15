// internal/assignment/estimator/estimator_test.go
package estimator

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assignment-service/internal/common/logger"
	"assignment-service/internal/models"
	"assignment-service/internal/storage/storagetest"
)

func respondedCandidate(assignedAt time.Time, latency time.Duration) *models.AssignmentCandidate {
	respondedAt := assignedAt.Add(latency)
	return &models.AssignmentCandidate{
		AssignedAt:  assignedAt,
		RespondedAt: &respondedAt,
	}
}

func TestEstimate(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		past     []*models.AssignmentCandidate
		expected int64
	}{
		{
			name:     "empty history returns default",
			past:     nil,
			expected: 60000,
		},
		{
			name: "two responses average",
			past: []*models.AssignmentCandidate{
				respondedCandidate(base, 60*time.Second),
				respondedCandidate(base, 120*time.Second),
			},
			expected: 90000,
		},
		{
			name: "null respondedAt is excluded",
			past: []*models.AssignmentCandidate{
				respondedCandidate(base, 60*time.Second),
				{AssignedAt: base},
			},
			expected: 60000,
		},
		{
			name: "only unanswered rows fall back to default",
			past: []*models.AssignmentCandidate{
				{AssignedAt: base},
				{AssignedAt: base.Add(time.Hour)},
			},
			expected: 60000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Estimate(tt.past, 0))
		})
	}
}

func TestEstimate_ConfiguredDefault(t *testing.T) {
	assert.Equal(t, int64(45000), Estimate(nil, 45000))

	// History still wins over the default.
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := []*models.AssignmentCandidate{respondedCandidate(base, 30*time.Second)}
	assert.Equal(t, int64(30000), Estimate(past, 45000))
}

func TestSnapshotProvider_CacheAside(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store := storagetest.NewFake()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.History["dev-1"] = []*models.AssignmentCandidate{
		respondedCandidate(base, 30*time.Second),
		respondedCandidate(base, 90*time.Second),
	}

	provider := NewSnapshotProvider(store, client, 10*time.Minute, 0, logger.NewTestLogger(t))
	ctx := context.Background()

	got := provider.Snapshot(ctx, "dev-1")
	assert.Equal(t, int64(60000), got)

	cached, err := mr.Get("dev:resptime:dev-1")
	require.NoError(t, err)
	assert.Equal(t, "60000", cached)

	// Second call serves the cached value even after history changes.
	store.History["dev-1"] = nil
	assert.Equal(t, int64(60000), provider.Snapshot(ctx, "dev-1"))
}

func TestSnapshotProvider_StoreFailureFallsBackToDefault(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store := storagetest.NewFake()
	store.Errors["ListRespondedCandidates"] = assert.AnError

	provider := NewSnapshotProvider(store, client, time.Minute, 0, logger.NewTestLogger(t))

	assert.Equal(t, DefaultResponseTimeMs, provider.Snapshot(context.Background(), "dev-1"))
}

func TestSnapshotProvider_ConfiguredDefaultForNewDeveloper(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store := storagetest.NewFake()

	provider := NewSnapshotProvider(store, client, time.Minute, 45000, logger.NewTestLogger(t))

	assert.Equal(t, int64(45000), provider.Snapshot(context.Background(), "dev-new"))
}
