// internal/assignment/rebalance/rebalance_test.go
package rebalance

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"assignment-service/internal/models"
)

func makePool(fresher, mid, expert int) []models.RawCandidate {
	var out []models.RawCandidate
	add := func(tier models.TierLevel, n int) {
		for i := 0; i < n; i++ {
			out = append(out, models.RawCandidate{
				DeveloperID: fmt.Sprintf("%s-%02d", tier, i),
				Tier:        tier,
			})
		}
	}
	add(models.TierFresher, fresher)
	add(models.TierMid, mid)
	add(models.TierExpert, expert)
	return out
}

func countByTier(candidates []models.RawCandidate) map[models.TierLevel]int {
	counts := map[models.TierLevel]int{}
	for _, c := range candidates {
		counts[c.Tier]++
	}
	return counts
}

func TestRebalance_ExactFit(t *testing.T) {
	pool := makePool(5, 4, 3)
	quota := models.TierQuota{FresherCount: 2, MidCount: 2, ExpertCount: 1}

	got, report := Rebalance(pool, quota)

	counts := countByTier(got)
	assert.Equal(t, 2, counts[models.TierFresher])
	assert.Equal(t, 2, counts[models.TierMid])
	assert.Equal(t, 1, counts[models.TierExpert])
	assert.Len(t, got, 5)
	assert.Equal(t, 0, report.TotalShortfall)
	assert.Equal(t, 0, report.MidPromoted)
	assert.Equal(t, 0, report.FresherPromoted)
}

func TestRebalance_Waterfall(t *testing.T) {
	pool := makePool(10, 3, 1)
	quota := models.TierQuota{FresherCount: 5, MidCount: 5, ExpertCount: 3}

	got, report := Rebalance(pool, quota)

	// Every tier contributes at most its own quota; the expert shortfall
	// is covered by mid candidates and the knock-on mid shortfall by
	// fresher candidates, without inflating any tier's count.
	assert.Len(t, got, 9)
	counts := countByTier(got)
	assert.Equal(t, 1, counts[models.TierExpert])
	assert.Equal(t, 3, counts[models.TierMid])
	assert.Equal(t, 5, counts[models.TierFresher])
	assert.LessOrEqual(t, len(got), len(pool))

	assert.Equal(t, 2, report.MidPromoted)
	assert.Equal(t, 4, report.FresherPromoted)
	assert.Equal(t, quota.Total()-9, report.TotalShortfall)
}

func TestRebalance_UnderSupply(t *testing.T) {
	pool := makePool(1, 1, 0)
	quota := models.TierQuota{FresherCount: 5, MidCount: 5, ExpertCount: 3}

	got, report := Rebalance(pool, quota)

	assert.Len(t, got, 2)
	assert.Equal(t, 11, report.TotalShortfall)
}

func TestRebalance_NeverExceedsQuotaPerTier(t *testing.T) {
	pool := makePool(20, 20, 20)
	quota := models.TierQuota{FresherCount: 3, MidCount: 2, ExpertCount: 1}

	got, report := Rebalance(pool, quota)

	counts := countByTier(got)
	for _, tier := range []models.TierLevel{models.TierFresher, models.TierMid, models.TierExpert} {
		assert.LessOrEqual(t, counts[tier], quota.For(tier))
	}
	assert.Len(t, got, quota.Total())
	assert.Equal(t, 0, report.TotalShortfall)
}

func TestRebalance_Deterministic(t *testing.T) {
	pool := makePool(8, 6, 4)
	quota := models.TierQuota{FresherCount: 3, MidCount: 3, ExpertCount: 2}

	first, _ := Rebalance(pool, quota)
	second, _ := Rebalance(pool, quota)

	assert.Equal(t, first, second)

	// Selection among equals is pinned to developerId order.
	for _, c := range first {
		if c.Tier == models.TierExpert {
			assert.Contains(t, []string{"EXPERT-00", "EXPERT-01"}, c.DeveloperID)
		}
	}
}

func TestRebalance_EmptyInput(t *testing.T) {
	got, report := Rebalance(nil, models.TierQuota{FresherCount: 2, MidCount: 2, ExpertCount: 1})

	assert.Empty(t, got)
	assert.Equal(t, 5, report.TotalShortfall)
}
