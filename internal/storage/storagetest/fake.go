// internal/storage/storagetest/fake.go
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"assignment-service/internal/common/errors"
	"assignment-service/internal/models"
)

// Fake is an in-memory store for component tests. Conditional
// transitions hold the same guard semantics as the SQL implementation:
// a transition only succeeds from a live pending row still inside its
// deadline, checked and applied under one lock, so concurrent accept
// calls race exactly the way they do against the database.
type Fake struct {
	mu         sync.Mutex
	Projects   map[string]*models.Project
	Batches    map[string]*models.AssignmentBatch
	Candidates map[string]*models.AssignmentCandidate
	Developers map[string]*models.Developer
	History    map[string][]*models.AssignmentCandidate

	// Errors forces a method (by name) to fail.
	Errors map[string]error

	// Now stands in for the database clock in the conditional guards.
	Now func() time.Time

	batchSeq map[string]int
}

func NewFake() *Fake {
	return &Fake{
		Projects:   map[string]*models.Project{},
		Batches:    map[string]*models.AssignmentBatch{},
		Candidates: map[string]*models.AssignmentCandidate{},
		Developers: map[string]*models.Developer{},
		History:    map[string][]*models.AssignmentCandidate{},
		Errors:     map[string]error{},
		batchSeq:   map[string]int{},
	}
}

func (f *Fake) fail(method string) error {
	return f.Errors[method]
}

func (f *Fake) clock() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now().UTC()
}

func (f *Fake) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetProject"); err != nil {
		return nil, err
	}
	p, ok := f.Projects[projectID]
	if !ok {
		return nil, errors.NewNotFoundError("project", projectID)
	}
	cp := *p
	return &cp, nil
}

func (f *Fake) UpdateProjectStatus(ctx context.Context, projectID string, status models.ProjectStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("UpdateProjectStatus"); err != nil {
		return err
	}
	p, ok := f.Projects[projectID]
	if !ok {
		return errors.NewNotFoundError("project", projectID)
	}
	p.Status = status
	return nil
}

func (f *Fake) NextBatchNumber(ctx context.Context, projectID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("NextBatchNumber"); err != nil {
		return 0, err
	}
	f.batchSeq[projectID]++
	return f.batchSeq[projectID], nil
}

func (f *Fake) CreateBatch(ctx context.Context, batch *models.AssignmentBatch, candidates []*models.AssignmentCandidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateBatch"); err != nil {
		return err
	}
	b := *batch
	f.Batches[b.ID] = &b
	for _, c := range candidates {
		cp := *c
		f.Candidates[cp.ID] = &cp
	}
	return nil
}

func (f *Fake) CloseBatch(ctx context.Context, batchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CloseBatch"); err != nil {
		return err
	}
	b, ok := f.Batches[batchID]
	if !ok {
		return errors.NewNotFoundError("batch", batchID)
	}
	b.Status = models.BatchClosed
	return nil
}

func (f *Fake) GetCandidate(ctx context.Context, candidateID string) (*models.AssignmentCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetCandidate"); err != nil {
		return nil, err
	}
	c, ok := f.Candidates[candidateID]
	if !ok {
		return nil, errors.NewNotFoundError("candidate", candidateID)
	}
	cp := *c
	return &cp, nil
}

func (f *Fake) ListBatchCandidates(ctx context.Context, batchID string) ([]*models.AssignmentCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListBatchCandidates"); err != nil {
		return nil, err
	}
	var out []*models.AssignmentCandidate
	for _, c := range f.Candidates {
		if c.BatchID == batchID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *Fake) ListRespondedCandidates(ctx context.Context, developerID string, limit int) ([]*models.AssignmentCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListRespondedCandidates"); err != nil {
		return nil, err
	}
	rows := f.History[developerID]
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (f *Fake) ListDevelopersWithPendingCandidate(ctx context.Context, projectID string, now time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListDevelopersWithPendingCandidate"); err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, c := range f.Candidates {
		if c.ProjectID != projectID || !c.Actionable(now) || seen[c.DeveloperID] {
			continue
		}
		seen[c.DeveloperID] = true
		out = append(out, c.DeveloperID)
	}
	return out, nil
}

func (f *Fake) FindActionableCandidateByDeveloper(ctx context.Context, developerID string, now time.Time) (*models.AssignmentCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("FindActionableCandidateByDeveloper"); err != nil {
		return nil, err
	}
	for _, c := range f.Candidates {
		if c.DeveloperID == developerID && c.Actionable(now) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, errors.NewNotFoundError("candidate", fmt.Sprintf("developer %s", developerID))
}

func (f *Fake) AcceptCandidate(ctx context.Context, candidateID string, respondedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("AcceptCandidate"); err != nil {
		return false, err
	}
	c, ok := f.Candidates[candidateID]
	if !ok || c.ResponseStatus != models.ResponsePending || c.InvalidatedAt != nil {
		return false, nil
	}
	if c.AcceptanceDeadline != nil && !c.AcceptanceDeadline.After(f.clock()) {
		return false, nil
	}

	c.ResponseStatus = models.ResponseAccepted
	t := respondedAt
	c.RespondedAt = &t
	c.IsFirstAccepted = true

	for _, sib := range f.Candidates {
		if sib.BatchID == c.BatchID && sib.ID != c.ID && sib.InvalidatedAt == nil {
			inv := respondedAt
			sib.InvalidatedAt = &inv
		}
	}
	if b, ok := f.Batches[c.BatchID]; ok {
		b.Status = models.BatchClosed
	}
	if p, ok := f.Projects[c.ProjectID]; ok {
		p.Status = models.ProjectAccepted
	}
	return true, nil
}

func (f *Fake) RejectCandidate(ctx context.Context, candidateID string, respondedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("RejectCandidate"); err != nil {
		return false, err
	}
	c, ok := f.Candidates[candidateID]
	if !ok || c.ResponseStatus != models.ResponsePending || c.InvalidatedAt != nil {
		return false, nil
	}
	if c.AcceptanceDeadline != nil && !c.AcceptanceDeadline.After(f.clock()) {
		return false, nil
	}
	c.ResponseStatus = models.ResponseRejected
	t := respondedAt
	c.RespondedAt = &t

	live := false
	for _, sib := range f.Candidates {
		if sib.BatchID == c.BatchID && sib.ResponseStatus == models.ResponsePending && sib.InvalidatedAt == nil {
			live = true
			break
		}
	}
	if !live {
		if b, ok := f.Batches[c.BatchID]; ok {
			b.Status = models.BatchClosed
		}
	}
	return true, nil
}

func (f *Fake) ExpireCandidate(ctx context.Context, candidateID string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ExpireCandidate"); err != nil {
		return false, err
	}
	if err := f.fail("ExpireCandidate:" + candidateID); err != nil {
		return false, err
	}
	c, ok := f.Candidates[candidateID]
	if !ok || c.ResponseStatus != models.ResponsePending || c.InvalidatedAt != nil {
		return false, nil
	}
	if c.AcceptanceDeadline == nil || !c.AcceptanceDeadline.Before(now) {
		return false, nil
	}
	c.ResponseStatus = models.ResponseExpired
	return true, nil
}

func (f *Fake) ListExpirableCandidates(ctx context.Context, now time.Time, limit int) ([]*models.AssignmentCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListExpirableCandidates"); err != nil {
		return nil, err
	}
	var out []*models.AssignmentCandidate
	for _, c := range f.Candidates {
		if c.ResponseStatus != models.ResponsePending || c.InvalidatedAt != nil {
			continue
		}
		if c.AcceptanceDeadline == nil || !c.AcceptanceDeadline.Before(now) {
			continue
		}
		if b, ok := f.Batches[c.BatchID]; ok && (b.Type == models.BatchManualInvite || b.NoExpiry) {
			continue
		}
		cp := *c
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *Fake) GetDeveloper(ctx context.Context, developerID string) (*models.Developer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetDeveloper"); err != nil {
		return nil, err
	}
	d, ok := f.Developers[developerID]
	if !ok {
		return nil, errors.NewNotFoundError("developer", developerID)
	}
	cp := *d
	return &cp, nil
}

func (f *Fake) GetDeveloperByPhone(ctx context.Context, phone string) (*models.Developer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetDeveloperByPhone"); err != nil {
		return nil, err
	}
	for _, d := range f.Developers {
		if d.Phone == phone {
			cp := *d
			return &cp, nil
		}
	}
	return nil, errors.NewNotFoundError("developer", phone)
}
