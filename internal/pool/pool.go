// internal/pool/pool.go
package pool

import (
	"context"

	"assignment-service/internal/models"
)

// Query narrows a pool lookup to one tier. ExcludeDeveloperIDs carries
// developers who already hold a live candidate for the project being
// generated.
type Query struct {
	SkillIDs            []string
	Tier                models.TierLevel
	ExcludeDeveloperIDs []string
	Limit               int
}

// Worker is one pool hit: a developer whose skills intersect the
// requested set and who is marked generally available.
type Worker struct {
	DeveloperID string
	Tier        models.TierLevel
	SkillIDs    []string
}

// DeveloperPool looks up eligible developers for batch generation.
type DeveloperPool interface {
	FindEligibleWorkers(ctx context.Context, q Query) ([]Worker, error)
}
