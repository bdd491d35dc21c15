// internal/assignment/statemachine/statemachine.go
package statemachine

import (
	"context"
	"time"

	"assignment-service/internal/common/errors"
	"assignment-service/internal/common/logger"
	"assignment-service/internal/common/metrics"
	"assignment-service/internal/models"
	"assignment-service/internal/notify"
	"assignment-service/internal/storage"
)

// NotificationDispatcher queues outbound sends without blocking.
type NotificationDispatcher interface {
	Dispatch(event notify.Event, recipientIDs []string, payload map[string]interface{})
}

// AcceptResult is returned to the winning developer.
type AcceptResult struct {
	Candidate *models.AssignmentCandidate
	Project   *models.Project
}

// StateMachine owns candidate response transitions. Every mutation goes
// through the store's conditional updates; a guard miss observed here is
// re-read and mapped to the terminal state the caller actually raced
// against.
type StateMachine struct {
	store      storage.Store
	dispatcher NotificationDispatcher
	logger     logger.Logger
	now        func() time.Time
}

func New(store storage.Store, dispatcher NotificationDispatcher, log logger.Logger) *StateMachine {
	return &StateMachine{
		store:      store,
		dispatcher: dispatcher,
		logger:     log.WithFields(map[string]interface{}{"component": "state-machine"}),
		now:        time.Now,
	}
}

// Accept attempts the first-accept-wins transition. Exactly one caller
// per batch can succeed; everyone else gets AlreadyResponded or Expired
// depending on what they raced against.
func (m *StateMachine) Accept(ctx context.Context, candidateID, actingUserID string) (*AcceptResult, error) {
	cand, err := m.authorizedCandidate(ctx, candidateID, actingUserID)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	if err := m.checkActionable(cand, now); err != nil {
		return nil, err
	}

	ok, err := m.store.AcceptCandidate(ctx, candidateID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// The guard missed at commit time. Re-read with a fresh clock
		// to report what the caller lost to; the deadline may have
		// passed between the pre-check and the write.
		return nil, m.classifyConflict(ctx, candidateID, m.now().UTC())
	}

	metrics.CandidateResponses.WithLabelValues("accepted").Inc()

	project, err := m.store.GetProject(ctx, cand.ProjectID)
	if err != nil {
		m.logger.Warn("project read failed after accept", map[string]interface{}{
			"candidate_id": candidateID,
			"project_id":   cand.ProjectID,
			"error":        err.Error(),
		})
	}

	m.notifyOutcome(ctx, cand, project)

	m.logger.Info("candidate accepted", map[string]interface{}{
		"candidate_id": candidateID,
		"batch_id":     cand.BatchID,
		"project_id":   cand.ProjectID,
		"developer_id": cand.DeveloperID,
	})

	accepted := *cand
	accepted.ResponseStatus = models.ResponseAccepted
	accepted.RespondedAt = &now
	accepted.IsFirstAccepted = true
	return &AcceptResult{Candidate: &accepted, Project: project}, nil
}

// Reject marks the candidate rejected. Siblings are untouched and the
// batch stays open unless no live candidate remains.
func (m *StateMachine) Reject(ctx context.Context, candidateID, actingUserID string) error {
	cand, err := m.authorizedCandidate(ctx, candidateID, actingUserID)
	if err != nil {
		return err
	}

	now := m.now().UTC()
	if err := m.checkActionable(cand, now); err != nil {
		return err
	}

	ok, err := m.store.RejectCandidate(ctx, candidateID, now)
	if err != nil {
		return err
	}
	if !ok {
		return m.classifyConflict(ctx, candidateID, m.now().UTC())
	}

	metrics.CandidateResponses.WithLabelValues("rejected").Inc()
	m.logger.Info("candidate rejected", map[string]interface{}{
		"candidate_id": candidateID,
		"batch_id":     cand.BatchID,
		"developer_id": cand.DeveloperID,
	})
	return nil
}

// authorizedCandidate loads the candidate and verifies the acting user
// owns the referenced developer. Ownership mismatch reads the same as a
// missing candidate so callers cannot probe other workers' slots.
func (m *StateMachine) authorizedCandidate(ctx context.Context, candidateID, actingUserID string) (*models.AssignmentCandidate, error) {
	cand, err := m.store.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	dev, err := m.store.GetDeveloper(ctx, cand.DeveloperID)
	if err != nil {
		return nil, err
	}
	if dev.OwnerUserID != actingUserID {
		return nil, errors.NewNotFoundError("candidate", candidateID)
	}
	return cand, nil
}

// checkActionable enforces the response preconditions against the state
// read before the conditional write. The write itself re-enforces them;
// this pass exists to return precise errors without burning a write.
func (m *StateMachine) checkActionable(cand *models.AssignmentCandidate, now time.Time) error {
	if cand.ResponseStatus != models.ResponsePending || cand.InvalidatedAt != nil {
		return errors.NewAlreadyRespondedError(cand.ID)
	}
	if cand.AcceptanceDeadline != nil && now.After(*cand.AcceptanceDeadline) {
		return errors.NewExpiredError(cand.ID, *cand.AcceptanceDeadline)
	}
	return nil
}

// classifyConflict maps a compare-and-swap miss to the terminal state
// the caller observed too late.
func (m *StateMachine) classifyConflict(ctx context.Context, candidateID string, now time.Time) error {
	cand, err := m.store.GetCandidate(ctx, candidateID)
	if err != nil {
		return errors.NewPersistenceConflictError(candidateID)
	}
	if cand.ResponseStatus == models.ResponseExpired {
		deadline := now
		if cand.AcceptanceDeadline != nil {
			deadline = *cand.AcceptanceDeadline
		}
		return errors.NewExpiredError(candidateID, deadline)
	}
	if cand.ResponseStatus == models.ResponsePending && cand.AcceptanceDeadline != nil && now.After(*cand.AcceptanceDeadline) {
		return errors.NewExpiredError(candidateID, *cand.AcceptanceDeadline)
	}
	return errors.NewAlreadyRespondedError(candidateID)
}

// notifyOutcome tells the winner and the invalidated siblings what
// happened. Failures never surface to the accept caller.
func (m *StateMachine) notifyOutcome(ctx context.Context, winner *models.AssignmentCandidate, project *models.Project) {
	payload := map[string]interface{}{
		"projectId": winner.ProjectID,
	}
	if project != nil {
		payload["projectTitle"] = project.Title
	}

	m.dispatcher.Dispatch(notify.EventAssignmentWon, []string{winner.DeveloperID}, payload)

	siblings, err := m.store.ListBatchCandidates(ctx, winner.BatchID)
	if err != nil {
		m.logger.Warn("sibling lookup failed, skipping closed notifications", map[string]interface{}{
			"batch_id": winner.BatchID,
			"error":    err.Error(),
		})
		return
	}
	var losers []string
	for _, c := range siblings {
		if c.ID != winner.ID {
			losers = append(losers, c.DeveloperID)
		}
	}
	if len(losers) > 0 {
		m.dispatcher.Dispatch(notify.EventAssignmentClosed, losers, payload)
	}
}
