// internal/assignment/rebalance/rebalance.go
package rebalance

import (
	"sort"

	"assignment-service/internal/models"
)

// FillReport describes how the tier needs were covered, including
// waterfall promotions: a higher tier's shortfall is conceptually
// satisfied by candidates from the next tier down (EXPERT pulls from
// MID, MID pulls from FRESHER, never upward). Promoted candidates keep
// their real tier label and occupy their own tier's slots, so per-tier
// counts never exceed the requested quotas.
type FillReport struct {
	ExpertFilled    int
	MidFilled       int
	FresherFilled   int
	MidPromoted     int // mid candidates covering expert shortfall
	FresherPromoted int // fresher candidates covering mid shortfall
	TotalShortfall  int
}

// Rebalance trims the deduplicated candidate list to the requested tier
// quotas. Each tier contributes at most its own quota; selection among
// equals is pinned to a stable sort by developerId so the same input
// always yields the same batch. When the pool cannot fill the quotas
// everything available is returned; an under-filled batch is a valid
// outcome, not an error.
//
// Pure function, no I/O.
func Rebalance(candidates []models.RawCandidate, quota models.TierQuota) ([]models.RawCandidate, FillReport) {
	if len(candidates) == 0 {
		return []models.RawCandidate{}, FillReport{TotalShortfall: quota.Total()}
	}

	pools := map[models.TierLevel][]models.RawCandidate{}
	for _, c := range candidates {
		pools[c.Tier] = append(pools[c.Tier], c)
	}

	out := make([]models.RawCandidate, 0, quota.Total())
	kept := map[models.TierLevel]int{}
	for _, tier := range []models.TierLevel{models.TierExpert, models.TierMid, models.TierFresher} {
		pool := pools[tier]
		sort.SliceStable(pool, func(i, j int) bool {
			return pool[i].DeveloperID < pool[j].DeveloperID
		})
		n := quota.For(tier)
		if len(pool) < n {
			n = len(pool)
		}
		out = append(out, pool[:n]...)
		kept[tier] = n
	}

	return out, fillReport(kept, quota)
}

// fillReport applies the waterfall accounting: expert shortfall is
// covered by kept mid candidates beyond what mid itself consumed, then
// mid's resulting shortfall by kept fresher candidates, downward only.
func fillReport(kept map[models.TierLevel]int, quota models.TierQuota) FillReport {
	r := FillReport{
		ExpertFilled:  kept[models.TierExpert],
		MidFilled:     kept[models.TierMid],
		FresherFilled: kept[models.TierFresher],
	}

	expertShort := quota.ExpertCount - r.ExpertFilled
	if expertShort > 0 {
		r.MidPromoted = min(expertShort, r.MidFilled)
	}

	midShort := quota.MidCount - (r.MidFilled - r.MidPromoted)
	if midShort > 0 {
		r.FresherPromoted = min(midShort, r.FresherFilled)
	}

	r.TotalShortfall = quota.Total() - (r.ExpertFilled + r.MidFilled + r.FresherFilled)
	if r.TotalShortfall < 0 {
		r.TotalShortfall = 0
	}
	return r
}
