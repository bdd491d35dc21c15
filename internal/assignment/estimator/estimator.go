// internal/assignment/estimator/estimator.go
package estimator

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"assignment-service/internal/common/logger"
	"assignment-service/internal/models"
	"assignment-service/internal/storage"
)

// DefaultResponseTimeMs applies when the deployment does not configure
// its own default for developers with no usable response history.
const DefaultResponseTimeMs int64 = 60000

// historyLimit caps how many past responses feed one estimate.
const historyLimit = 50

// Estimate returns a developer's typical response latency in
// milliseconds. Only candidates with both an assignment time and a
// recorded response count; everything else (still pending, expired
// without answering) is excluded. With no usable history defaultMs
// applies; pass a non-positive value to get DefaultResponseTimeMs.
//
// Pure function, no I/O.
func Estimate(past []*models.AssignmentCandidate, defaultMs int64) int64 {
	if defaultMs <= 0 {
		defaultMs = DefaultResponseTimeMs
	}
	var sum int64
	var n int64
	for _, c := range past {
		if c == nil || c.AssignedAt.IsZero() || c.RespondedAt == nil {
			continue
		}
		sum += c.RespondedAt.Sub(c.AssignedAt).Milliseconds()
		n++
	}
	if n == 0 {
		return defaultMs
	}
	return sum / n
}

// SnapshotProvider serves response-time snapshots for batch generation.
// Estimates are cached in redis so generating a batch over a large pool
// does not re-aggregate every developer's history; the stored value on
// each candidate row is still a point-in-time snapshot and is never
// recomputed for already-generated batches.
type SnapshotProvider struct {
	store     storage.Store
	redis     *redis.Client
	ttl       time.Duration
	defaultMs int64
	log       logger.Logger
}

func NewSnapshotProvider(store storage.Store, redisClient *redis.Client, ttl time.Duration, defaultMs int64, log logger.Logger) *SnapshotProvider {
	if defaultMs <= 0 {
		defaultMs = DefaultResponseTimeMs
	}
	return &SnapshotProvider{
		store:     store,
		redis:     redisClient,
		ttl:       ttl,
		defaultMs: defaultMs,
		log:       log,
	}
}

// Snapshot returns the current estimate for a developer, serving from
// cache when possible. Cache failures degrade to a direct computation,
// and history lookup failures degrade to the default value rather than
// blocking batch generation.
func (p *SnapshotProvider) Snapshot(ctx context.Context, developerID string) int64 {
	cacheKey := "dev:resptime:" + developerID
	if p.redis != nil {
		if val, err := p.redis.Get(ctx, cacheKey).Result(); err == nil {
			if ms, err := strconv.ParseInt(val, 10, 64); err == nil {
				return ms
			}
		}
	}

	past, err := p.store.ListRespondedCandidates(ctx, developerID, historyLimit)
	if err != nil {
		p.log.Warn("response history lookup failed, using default estimate", map[string]interface{}{
			"developer_id": developerID,
			"error":        err.Error(),
		})
		return p.defaultMs
	}

	ms := Estimate(past, p.defaultMs)
	if p.redis != nil {
		p.redis.Set(ctx, cacheKey, strconv.FormatInt(ms, 10), p.ttl)
	}
	return ms
}
