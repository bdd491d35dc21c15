// internal/assignment/generator/generator.go
package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"assignment-service/internal/assignment/dedup"
	"assignment-service/internal/assignment/estimator"
	"assignment-service/internal/assignment/rebalance"
	"assignment-service/internal/common/errors"
	"assignment-service/internal/common/logger"
	"assignment-service/internal/common/metrics"
	"assignment-service/internal/models"
	"assignment-service/internal/notify"
	"assignment-service/internal/storage"
)

// CandidateSource yields the raw candidate list for a project.
type CandidateSource interface {
	Select(ctx context.Context, project *models.Project, quota models.TierQuota, now time.Time) ([]models.RawCandidate, error)
}

// NotificationDispatcher queues outbound sends without blocking.
type NotificationDispatcher interface {
	Dispatch(event notify.Event, recipientIDs []string, payload map[string]interface{})
}

// Generator builds assignment batches: selection, deduplication and
// rebalancing are fail-fast; once the batch transaction commits, the
// batch exists regardless of notification outcomes.
type Generator struct {
	store             storage.Store
	source            CandidateSource
	dispatcher        NotificationDispatcher
	acceptanceWindow  time.Duration
	defaultQuota      models.TierQuota
	defaultResponseMs int64
	logger            logger.Logger
	now               func() time.Time
}

func New(store storage.Store, source CandidateSource, dispatcher NotificationDispatcher, acceptanceWindow time.Duration, defaultQuota models.TierQuota, defaultResponseMs int64, log logger.Logger) *Generator {
	return &Generator{
		store:             store,
		source:            source,
		dispatcher:        dispatcher,
		acceptanceWindow:  acceptanceWindow,
		defaultQuota:      defaultQuota,
		defaultResponseMs: defaultResponseMs,
		logger:            log.WithFields(map[string]interface{}{"component": "batch-generator"}),
		now:               time.Now,
	}
}

// Generate creates a system-rotation batch for the project using the
// configured default quota.
func (g *Generator) Generate(ctx context.Context, projectID string) (string, error) {
	return g.GenerateWithQuota(ctx, projectID, g.defaultQuota)
}

// GenerateWithQuota runs the full pipeline. An under-filled batch is a
// valid outcome: when the pool cannot satisfy the quotas, the batch is
// still created with whatever survived rebalancing.
func (g *Generator) GenerateWithQuota(ctx context.Context, projectID string, quota models.TierQuota) (string, error) {
	project, err := g.store.GetProject(ctx, projectID)
	if err != nil {
		return "", err
	}
	if project.Status != models.ProjectSubmitted && project.Status != models.ProjectAssigning {
		return "", errors.NewValidationFailedError(fmt.Sprintf("project %s is %s, not assignable", projectID, project.Status))
	}

	now := g.now().UTC()
	raw, err := g.source.Select(ctx, project, quota, now)
	if err != nil {
		return "", err
	}

	deduped := dedup.Deduplicate(raw, project.RequiredSkillIDs)
	final, report := rebalance.Rebalance(deduped, quota)

	if report.TotalShortfall > 0 {
		metrics.UnderfilledBatches.Inc()
		g.logger.Info("insufficient candidates, batch will be under-filled", map[string]interface{}{
			"project_id":       projectID,
			"requested":        quota.Total(),
			"selected":         len(final),
			"shortfall":        report.TotalShortfall,
			"mid_promoted":     report.MidPromoted,
			"fresher_promoted": report.FresherPromoted,
		})
	}

	batchNumber, err := g.store.NextBatchNumber(ctx, projectID)
	if err != nil {
		return "", err
	}

	batch := &models.AssignmentBatch{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		BatchNumber: batchNumber,
		Status:      models.BatchActive,
		Type:        models.BatchSystemRotation,
		Quota:       quota,
		CreatedAt:   now,
	}

	deadline := now.Add(g.acceptanceWindow)
	candidates := make([]*models.AssignmentCandidate, 0, len(final))
	for _, rc := range final {
		candidates = append(candidates, &models.AssignmentCandidate{
			ID:                  uuid.New().String(),
			BatchID:             batch.ID,
			ProjectID:           projectID,
			DeveloperID:         rc.DeveloperID,
			Tier:                rc.Tier,
			AssignedAt:          now,
			AcceptanceDeadline:  &deadline,
			ResponseStatus:      models.ResponsePending,
			UsualResponseTimeMs: rc.UsualResponseTimeMs,
		})
	}

	if err := g.store.CreateBatch(ctx, batch, candidates); err != nil {
		return "", err
	}
	if err := g.store.UpdateProjectStatus(ctx, projectID, models.ProjectAssigning); err != nil {
		g.logger.Error("project status update failed after batch commit", map[string]interface{}{
			"project_id": projectID,
			"batch_id":   batch.ID,
			"error":      err.Error(),
		})
	}

	metrics.BatchesGenerated.WithLabelValues(string(models.BatchSystemRotation)).Inc()
	for _, c := range candidates {
		metrics.CandidatesAssigned.WithLabelValues(string(c.Tier)).Inc()
	}

	g.notifyCandidates(batch, project, candidates, notify.EventAssignmentInvite, &deadline)

	g.logger.Info("batch generated", map[string]interface{}{
		"project_id":   projectID,
		"batch_id":     batch.ID,
		"batch_number": batchNumber,
		"candidates":   len(candidates),
	})
	return batch.ID, nil
}

// GenerateManualInvite creates a single-candidate MANUAL_INVITE batch
// with no acceptance deadline. clientMessage is the client's free-text
// note to the developer; it is stored on the candidate and may be
// empty.
func (g *Generator) GenerateManualInvite(ctx context.Context, projectID, developerID, clientMessage string) (string, error) {
	project, err := g.store.GetProject(ctx, projectID)
	if err != nil {
		return "", err
	}
	if project.Status != models.ProjectSubmitted && project.Status != models.ProjectAssigning {
		return "", errors.NewValidationFailedError(fmt.Sprintf("project %s is %s, not assignable", projectID, project.Status))
	}

	dev, err := g.store.GetDeveloper(ctx, developerID)
	if err != nil {
		return "", err
	}

	now := g.now().UTC()
	batchNumber, err := g.store.NextBatchNumber(ctx, projectID)
	if err != nil {
		return "", err
	}

	batch := &models.AssignmentBatch{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		BatchNumber: batchNumber,
		Status:      models.BatchActive,
		Type:        models.BatchManualInvite,
		Quota:       models.TierQuota{},
		NoExpiry:    true,
		CreatedAt:   now,
	}

	candidate := &models.AssignmentCandidate{
		ID:                  uuid.New().String(),
		BatchID:             batch.ID,
		ProjectID:           projectID,
		DeveloperID:         dev.ID,
		Tier:                dev.Tier,
		AssignedAt:          now,
		ResponseStatus:      models.ResponsePending,
		UsualResponseTimeMs: g.estimateOrDefault(ctx, dev.ID),
		ClientMessage:       clientMessage,
	}

	if err := g.store.CreateBatch(ctx, batch, []*models.AssignmentCandidate{candidate}); err != nil {
		return "", err
	}
	if err := g.store.UpdateProjectStatus(ctx, projectID, models.ProjectAssigning); err != nil {
		g.logger.Error("project status update failed after batch commit", map[string]interface{}{
			"project_id": projectID,
			"batch_id":   batch.ID,
			"error":      err.Error(),
		})
	}

	metrics.BatchesGenerated.WithLabelValues(string(models.BatchManualInvite)).Inc()
	metrics.CandidatesAssigned.WithLabelValues(string(dev.Tier)).Inc()

	g.notifyCandidates(batch, project, []*models.AssignmentCandidate{candidate}, notify.EventManualInvite, nil)

	g.logger.Info("manual invite generated", map[string]interface{}{
		"project_id":   projectID,
		"batch_id":     batch.ID,
		"developer_id": developerID,
	})
	return batch.ID, nil
}

func (g *Generator) notifyCandidates(batch *models.AssignmentBatch, project *models.Project, candidates []*models.AssignmentCandidate, event notify.Event, deadline *time.Time) {
	if len(candidates) == 0 {
		return
	}
	recipients := make([]string, 0, len(candidates))
	for _, c := range candidates {
		recipients = append(recipients, c.DeveloperID)
	}
	payload := map[string]interface{}{
		"projectTitle": project.Title,
		"projectId":    project.ID,
		"batchId":      batch.ID,
	}
	if deadline != nil {
		payload["deadline"] = deadline.Format(time.RFC3339)
	}
	g.dispatcher.Dispatch(event, recipients, payload)
}

func (g *Generator) estimateOrDefault(ctx context.Context, developerID string) int64 {
	past, err := g.store.ListRespondedCandidates(ctx, developerID, 50)
	if err != nil {
		if g.defaultResponseMs > 0 {
			return g.defaultResponseMs
		}
		return estimator.DefaultResponseTimeMs
	}
	return estimator.Estimate(past, g.defaultResponseMs)
}
