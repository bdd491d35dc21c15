// internal/assignment/generator/generator_test.go
package generator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assignment-service/internal/common/errors"
	"assignment-service/internal/common/logger"
	"assignment-service/internal/models"
	"assignment-service/internal/notify"
	"assignment-service/internal/storage/storagetest"
)

type stubSource struct {
	candidates []models.RawCandidate
	err        error
}

func (s *stubSource) Select(ctx context.Context, project *models.Project, quota models.TierQuota, now time.Time) ([]models.RawCandidate, error) {
	return s.candidates, s.err
}

type recordingDispatcher struct {
	events     []notify.Event
	recipients [][]string
}

func (d *recordingDispatcher) Dispatch(event notify.Event, recipientIDs []string, payload map[string]interface{}) {
	d.events = append(d.events, event)
	d.recipients = append(d.recipients, recipientIDs)
}

func seedProject(store *storagetest.Fake) {
	store.Projects["proj-1"] = &models.Project{
		ID:               "proj-1",
		ClientID:         "client-1",
		Title:            "Search backend",
		RequiredSkillIDs: []string{"go", "elasticsearch"},
		Status:           models.ProjectSubmitted,
	}
}

func testQuota() models.TierQuota {
	return models.TierQuota{FresherCount: 2, MidCount: 2, ExpertCount: 1}
}

func newGenerator(store *storagetest.Fake, source *stubSource, dispatcher *recordingDispatcher, t *testing.T) *Generator {
	return New(store, source, dispatcher, 15*time.Minute, testQuota(), 60000, logger.NewTestLogger(t))
}

func TestGenerate_FullBatch(t *testing.T) {
	store := storagetest.NewFake()
	seedProject(store)
	source := &stubSource{candidates: []models.RawCandidate{
		{DeveloperID: "dev-f1", Tier: models.TierFresher, MatchedSkillIDs: []string{"go"}, UsualResponseTimeMs: 40000},
		{DeveloperID: "dev-f2", Tier: models.TierFresher, MatchedSkillIDs: []string{"go"}, UsualResponseTimeMs: 50000},
		{DeveloperID: "dev-m1", Tier: models.TierMid, MatchedSkillIDs: []string{"go"}, UsualResponseTimeMs: 30000},
		{DeveloperID: "dev-m2", Tier: models.TierMid, MatchedSkillIDs: []string{"elasticsearch"}, UsualResponseTimeMs: 35000},
		{DeveloperID: "dev-e1", Tier: models.TierExpert, MatchedSkillIDs: []string{"go"}, UsualResponseTimeMs: 20000},
	}}
	dispatcher := &recordingDispatcher{}
	g := newGenerator(store, source, dispatcher, t)

	batchID, err := g.Generate(context.Background(), "proj-1")
	require.NoError(t, err)
	require.NotEmpty(t, batchID)

	batch := store.Batches[batchID]
	require.NotNil(t, batch)
	assert.Equal(t, 1, batch.BatchNumber)
	assert.Equal(t, models.BatchSystemRotation, batch.Type)
	assert.Equal(t, models.BatchActive, batch.Status)

	candidates, err := store.ListBatchCandidates(context.Background(), batchID)
	require.NoError(t, err)
	assert.Len(t, candidates, 5)
	for _, c := range candidates {
		assert.Equal(t, models.ResponsePending, c.ResponseStatus)
		require.NotNil(t, c.AcceptanceDeadline)
		assert.True(t, c.AcceptanceDeadline.After(c.AssignedAt))
		assert.NotZero(t, c.UsualResponseTimeMs)
	}

	assert.Equal(t, models.ProjectAssigning, store.Projects["proj-1"].Status)

	require.Len(t, dispatcher.events, 1)
	assert.Equal(t, notify.EventAssignmentInvite, dispatcher.events[0])
	assert.Len(t, dispatcher.recipients[0], 5)
}

func TestGenerate_BatchNumbersIncrease(t *testing.T) {
	store := storagetest.NewFake()
	seedProject(store)
	source := &stubSource{candidates: []models.RawCandidate{
		{DeveloperID: "dev-m1", Tier: models.TierMid, MatchedSkillIDs: []string{"go"}, UsualResponseTimeMs: 30000},
	}}
	g := newGenerator(store, source, &recordingDispatcher{}, t)
	ctx := context.Background()

	first, err := g.Generate(ctx, "proj-1")
	require.NoError(t, err)
	second, err := g.Generate(ctx, "proj-1")
	require.NoError(t, err)

	assert.Equal(t, 1, store.Batches[first].BatchNumber)
	assert.Equal(t, 2, store.Batches[second].BatchNumber)
}

func TestGenerate_UnderfilledBatchIsNotAnError(t *testing.T) {
	store := storagetest.NewFake()
	seedProject(store)
	source := &stubSource{candidates: []models.RawCandidate{
		{DeveloperID: "dev-f1", Tier: models.TierFresher, MatchedSkillIDs: []string{"go"}, UsualResponseTimeMs: 40000},
	}}
	g := newGenerator(store, source, &recordingDispatcher{}, t)

	batchID, err := g.Generate(context.Background(), "proj-1")
	require.NoError(t, err)

	candidates, err := store.ListBatchCandidates(context.Background(), batchID)
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}

func TestGenerate_SelectorFailureIsFailFast(t *testing.T) {
	store := storagetest.NewFake()
	seedProject(store)
	source := &stubSource{err: errors.NewPoolQueryFailedError("MID", assert.AnError)}
	dispatcher := &recordingDispatcher{}
	g := newGenerator(store, source, dispatcher, t)

	_, err := g.Generate(context.Background(), "proj-1")
	require.Error(t, err)

	// Nothing persisted, nothing notified.
	assert.Empty(t, store.Batches)
	assert.Empty(t, dispatcher.events)
	assert.Equal(t, models.ProjectSubmitted, store.Projects["proj-1"].Status)
}

func TestGenerate_UnknownProject(t *testing.T) {
	store := storagetest.NewFake()
	g := newGenerator(store, &stubSource{}, &recordingDispatcher{}, t)

	_, err := g.Generate(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestGenerate_TerminalProjectRejected(t *testing.T) {
	store := storagetest.NewFake()
	seedProject(store)
	store.Projects["proj-1"].Status = models.ProjectCompleted
	g := newGenerator(store, &stubSource{}, &recordingDispatcher{}, t)

	_, err := g.Generate(context.Background(), "proj-1")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.CodeOf(err))
}

func TestGenerateManualInvite(t *testing.T) {
	store := storagetest.NewFake()
	seedProject(store)
	store.Developers["dev-x"] = &models.Developer{
		ID:          "dev-x",
		OwnerUserID: "user-x",
		Tier:        models.TierExpert,
		Phone:       "+15550001111",
	}
	dispatcher := &recordingDispatcher{}
	g := newGenerator(store, &stubSource{}, dispatcher, t)

	batchID, err := g.GenerateManualInvite(context.Background(), "proj-1", "dev-x", "Client thought of you for this one.")
	require.NoError(t, err)

	batch := store.Batches[batchID]
	require.NotNil(t, batch)
	assert.Equal(t, models.BatchManualInvite, batch.Type)
	assert.True(t, batch.NoExpiry)

	candidates, err := store.ListBatchCandidates(context.Background(), batchID)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Nil(t, candidates[0].AcceptanceDeadline)
	assert.Equal(t, models.TierExpert, candidates[0].Tier)
	assert.Equal(t, int64(60000), candidates[0].UsualResponseTimeMs)
	assert.Equal(t, "Client thought of you for this one.", candidates[0].ClientMessage)

	require.Len(t, dispatcher.events, 1)
	assert.Equal(t, notify.EventManualInvite, dispatcher.events[0])
}

func TestGenerateManualInvite_UnknownDeveloper(t *testing.T) {
	store := storagetest.NewFake()
	seedProject(store)
	g := newGenerator(store, &stubSource{}, &recordingDispatcher{}, t)

	_, err := g.GenerateManualInvite(context.Background(), "proj-1", "missing", "")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}
