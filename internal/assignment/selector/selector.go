// internal/assignment/selector/selector.go
package selector

import (
	"context"
	"time"

	"assignment-service/internal/common/logger"
	"assignment-service/internal/models"
	"assignment-service/internal/pool"
	"assignment-service/internal/storage"
)

// overfetchFactor widens each tier query beyond its quota so that
// deduplication and cross-tier collapses still leave enough candidates
// to fill the batch.
const overfetchFactor = 3

// Snapshotter provides a developer's response-time snapshot at
// selection time.
type Snapshotter interface {
	Snapshot(ctx context.Context, developerID string) int64
}

// Selector produces the raw per-tier candidate lists for a project.
// Output carries no ordering guarantee; downstream stages impose
// determinism.
type Selector struct {
	pool      pool.DeveloperPool
	store     storage.Store
	snapshots Snapshotter
	logger    logger.Logger
}

func New(devPool pool.DeveloperPool, store storage.Store, snapshots Snapshotter, log logger.Logger) *Selector {
	return &Selector{
		pool:      devPool,
		store:     store,
		snapshots: snapshots,
		logger:    log.WithFields(map[string]interface{}{"component": "candidate-selector"}),
	}
}

// Select queries the developer pool once per requested tier, excluding
// developers who already hold an unexpired pending candidate for this
// project, and attaches the response-time snapshot taken now. The same
// developer may appear under multiple tiers; the deduplicator resolves
// that downstream.
func (s *Selector) Select(ctx context.Context, project *models.Project, quota models.TierQuota, now time.Time) ([]models.RawCandidate, error) {
	exclude, err := s.store.ListDevelopersWithPendingCandidate(ctx, project.ID, now)
	if err != nil {
		return nil, err
	}

	var raw []models.RawCandidate
	for _, tier := range []models.TierLevel{models.TierFresher, models.TierMid, models.TierExpert} {
		want := quota.For(tier)
		if want <= 0 {
			continue
		}

		workers, err := s.pool.FindEligibleWorkers(ctx, pool.Query{
			SkillIDs:            project.RequiredSkillIDs,
			Tier:                tier,
			ExcludeDeveloperIDs: exclude,
			Limit:               want * overfetchFactor,
		})
		if err != nil {
			return nil, err
		}

		for _, w := range workers {
			matched := intersect(w.SkillIDs, project.RequiredSkillIDs)
			if len(matched) == 0 {
				continue
			}
			raw = append(raw, models.RawCandidate{
				DeveloperID:         w.DeveloperID,
				Tier:                tier,
				MatchedSkillIDs:     matched,
				UsualResponseTimeMs: s.snapshots.Snapshot(ctx, w.DeveloperID),
			})
		}

		s.logger.Debug("tier query completed", map[string]interface{}{
			"project_id": project.ID,
			"tier":       string(tier),
			"requested":  want,
			"found":      len(workers),
		})
	}

	return raw, nil
}

func intersect(skills, required []string) []string {
	want := make(map[string]struct{}, len(required))
	for _, id := range required {
		want[id] = struct{}{}
	}
	var out []string
	for _, id := range skills {
		if _, ok := want[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
