// internal/assignment/dedup/dedup.go
package dedup

import (
	"sort"

	"assignment-service/internal/models"
)

// Deduplicate collapses duplicate developer entries that arise when one
// developer matches several skill queries at different tiers. Merge
// rules, applied pairwise per developer:
//   - keep the higher tier (EXPERT > MID > FRESHER)
//   - union the matched skill sets
//   - keep the lower (better) response-time snapshot
//
// Pure function of its input; output is ordered by developerId so
// downstream stages see a deterministic sequence.
func Deduplicate(candidates []models.RawCandidate, requiredSkillIDs []string) []models.RawCandidate {
	if len(candidates) == 0 {
		return []models.RawCandidate{}
	}

	required := make(map[string]struct{}, len(requiredSkillIDs))
	for _, id := range requiredSkillIDs {
		required[id] = struct{}{}
	}

	merged := make(map[string]models.RawCandidate, len(candidates))
	for _, c := range candidates {
		existing, ok := merged[c.DeveloperID]
		if !ok {
			merged[c.DeveloperID] = normalize(c, required)
			continue
		}
		merged[c.DeveloperID] = merge(existing, normalize(c, required))
	}

	out := make([]models.RawCandidate, 0, len(merged))
	for _, c := range merged {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DeveloperID < out[j].DeveloperID
	})
	return out
}

// normalize drops matched skills that are not part of the project's
// required set; tier queries can surface extra skills from the profile.
func normalize(c models.RawCandidate, required map[string]struct{}) models.RawCandidate {
	if len(required) == 0 {
		return c
	}
	kept := make([]string, 0, len(c.MatchedSkillIDs))
	for _, id := range c.MatchedSkillIDs {
		if _, ok := required[id]; ok {
			kept = append(kept, id)
		}
	}
	c.MatchedSkillIDs = kept
	return c
}

func merge(a, b models.RawCandidate) models.RawCandidate {
	out := a
	if b.Tier.Rank() > a.Tier.Rank() {
		out.Tier = b.Tier
	}
	out.MatchedSkillIDs = unionSkills(a.MatchedSkillIDs, b.MatchedSkillIDs)
	if b.UsualResponseTimeMs < out.UsualResponseTimeMs {
		out.UsualResponseTimeMs = b.UsualResponseTimeMs
	}
	return out
}

func unionSkills(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	for _, s := range b {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
