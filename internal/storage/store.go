// internal/storage/store.go
package storage

import (
	"context"
	"time"

	"assignment-service/internal/models"
)

// Store is the narrow persistence contract consumed by the assignment
// components. Every candidate mutation is a conditional update guarded
// on the current responseStatus; implementations must guarantee that a
// guard miss changes nothing and is reported as such.
type Store interface {
	// Projects
	GetProject(ctx context.Context, projectID string) (*models.Project, error)
	UpdateProjectStatus(ctx context.Context, projectID string, status models.ProjectStatus) error

	// Batch generation
	NextBatchNumber(ctx context.Context, projectID string) (int, error)
	CreateBatch(ctx context.Context, batch *models.AssignmentBatch, candidates []*models.AssignmentCandidate) error
	CloseBatch(ctx context.Context, batchID string) error

	// Candidates
	GetCandidate(ctx context.Context, candidateID string) (*models.AssignmentCandidate, error)
	ListBatchCandidates(ctx context.Context, batchID string) ([]*models.AssignmentCandidate, error)
	ListRespondedCandidates(ctx context.Context, developerID string, limit int) ([]*models.AssignmentCandidate, error)
	ListDevelopersWithPendingCandidate(ctx context.Context, projectID string, now time.Time) ([]string, error)
	FindActionableCandidateByDeveloper(ctx context.Context, developerID string, now time.Time) (*models.AssignmentCandidate, error)

	// Conditional transitions. AcceptCandidate performs the whole winning
	// transaction: flip the row from pending to accepted, invalidate the
	// siblings, close the batch and advance the project. The guard also
	// re-checks the acceptance deadline against the store's own clock,
	// so a call that stalls past the deadline cannot commit. A false
	// return with nil error means the guard missed at commit time.
	AcceptCandidate(ctx context.Context, candidateID string, respondedAt time.Time) (bool, error)
	RejectCandidate(ctx context.Context, candidateID string, respondedAt time.Time) (bool, error)
	ExpireCandidate(ctx context.Context, candidateID string, now time.Time) (bool, error)

	// Sweep support
	ListExpirableCandidates(ctx context.Context, now time.Time, limit int) ([]*models.AssignmentCandidate, error)

	// Developers
	GetDeveloper(ctx context.Context, developerID string) (*models.Developer, error)
	GetDeveloperByPhone(ctx context.Context, phone string) (*models.Developer, error)
}
