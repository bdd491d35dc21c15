// internal/models/tier.go
package models

// TierLevel is a developer's experience classification, used both for
// matching and for quota-based fairness.
type TierLevel string

const (
	TierFresher TierLevel = "FRESHER"
	TierMid     TierLevel = "MID"
	TierExpert  TierLevel = "EXPERT"
)

// Rank orders tiers for merge decisions: EXPERT > MID > FRESHER.
func (t TierLevel) Rank() int {
	switch t {
	case TierExpert:
		return 3
	case TierMid:
		return 2
	case TierFresher:
		return 1
	}
	return 0
}

// TierQuota is the requested candidate count per tier for one batch.
type TierQuota struct {
	FresherCount int `json:"fresherCount"`
	MidCount     int `json:"midCount"`
	ExpertCount  int `json:"expertCount"`
}

// Total returns the sum of all tier quotas.
func (q TierQuota) Total() int {
	return q.FresherCount + q.MidCount + q.ExpertCount
}

// For returns the quota for a single tier.
func (q TierQuota) For(tier TierLevel) int {
	switch tier {
	case TierFresher:
		return q.FresherCount
	case TierMid:
		return q.MidCount
	case TierExpert:
		return q.ExpertCount
	}
	return 0
}
