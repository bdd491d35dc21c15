// internal/storage/postgres_test.go
package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assignment-service/internal/common/errors"
	"assignment-service/internal/models"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	return db, mock
}

func TestGetProject(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	store := NewPostgresStore(db)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, client_id, title, required_skill_ids, status, created_at, updated_at`).
		WithArgs("proj-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "client_id", "title", "required_skill_ids", "status", "created_at", "updated_at"}).
			AddRow("proj-1", "client-1", "Search backend", pq.StringArray{"go", "elasticsearch"}, "submitted", now, now))

	p, err := store.GetProject(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Equal(t, "proj-1", p.ID)
	assert.Equal(t, []string{"go", "elasticsearch"}, p.RequiredSkillIDs)
	assert.Equal(t, models.ProjectSubmitted, p.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProject_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	store := NewPostgresStore(db)

	mock.ExpectQuery(`SELECT id, client_id, title`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetProject(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestNextBatchNumber_AtomicIncrement(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	store := NewPostgresStore(db)

	mock.ExpectQuery(`UPDATE projects SET batch_seq = batch_seq \+ 1`).
		WithArgs("proj-1").
		WillReturnRows(sqlmock.NewRows([]string{"batch_seq"}).AddRow(4))

	seq, err := store.NextBatchNumber(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Equal(t, 4, seq)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBatch_SingleTransaction(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	store := NewPostgresStore(db)
	now := time.Now().UTC()
	deadline := now.Add(15 * time.Minute)

	batch := &models.AssignmentBatch{
		ID:          "batch-1",
		ProjectID:   "proj-1",
		BatchNumber: 1,
		Status:      models.BatchActive,
		Type:        models.BatchSystemRotation,
		Quota:       models.TierQuota{FresherCount: 2, MidCount: 2, ExpertCount: 1},
		CreatedAt:   now,
	}
	candidates := []*models.AssignmentCandidate{
		{
			ID: "cand-1", BatchID: "batch-1", ProjectID: "proj-1", DeveloperID: "dev-1",
			Tier: models.TierMid, AssignedAt: now, AcceptanceDeadline: &deadline,
			ResponseStatus: models.ResponsePending, UsualResponseTimeMs: 45000,
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO assignment_batches`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO assignment_candidates`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.CreateBatch(context.Background(), batch, candidates))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBatch_RollsBackOnCandidateFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	store := NewPostgresStore(db)
	now := time.Now().UTC()

	batch := &models.AssignmentBatch{ID: "batch-1", ProjectID: "proj-1", BatchNumber: 1,
		Status: models.BatchActive, Type: models.BatchSystemRotation, CreatedAt: now}
	candidates := []*models.AssignmentCandidate{
		{ID: "cand-1", BatchID: "batch-1", ProjectID: "proj-1", DeveloperID: "dev-1",
			Tier: models.TierMid, AssignedAt: now, ResponseStatus: models.ResponsePending},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO assignment_batches`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO assignment_candidates`).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := store.CreateBatch(context.Background(), batch, candidates)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptCandidate_WinningTransaction(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	store := NewPostgresStore(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)UPDATE assignment_candidates\s+SET response_status = 'accepted'.*acceptance_deadline > NOW\(\)`).
		WithArgs("cand-1", now).
		WillReturnRows(sqlmock.NewRows([]string{"batch_id", "project_id"}).AddRow("batch-1", "proj-1"))
	mock.ExpectExec(`UPDATE assignment_candidates\s+SET invalidated_at`).
		WithArgs("batch-1", "cand-1", now).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE assignment_batches SET status = 'closed'`).
		WithArgs("batch-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE projects SET status = 'accepted'`).
		WithArgs("proj-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := store.AcceptCandidate(context.Background(), "cand-1", now)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptCandidate_GuardMiss(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	store := NewPostgresStore(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)UPDATE assignment_candidates\s+SET response_status = 'accepted'.*acceptance_deadline > NOW\(\)`).
		WithArgs("cand-1", now).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	ok, err := store.AcceptCandidate(context.Background(), "cand-1", now)
	require.NoError(t, err)
	assert.False(t, ok, "guard miss must report false, not an error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRejectCandidate_ClosesBatchWhenNoLiveCandidates(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	store := NewPostgresStore(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)UPDATE assignment_candidates\s+SET response_status = 'rejected'.*acceptance_deadline > NOW\(\)`).
		WithArgs("cand-1", now).
		WillReturnRows(sqlmock.NewRows([]string{"batch_id"}).AddRow("batch-1"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM assignment_candidates`).
		WithArgs("batch-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`UPDATE assignment_batches SET status = 'closed'`).
		WithArgs("batch-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := store.RejectCandidate(context.Background(), "cand-1", now)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRejectCandidate_LeavesBatchOpenWithLiveSiblings(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	store := NewPostgresStore(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)UPDATE assignment_candidates\s+SET response_status = 'rejected'.*acceptance_deadline > NOW\(\)`).
		WithArgs("cand-1", now).
		WillReturnRows(sqlmock.NewRows([]string{"batch_id"}).AddRow("batch-1"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM assignment_candidates`).
		WithArgs("batch-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectCommit()

	ok, err := store.RejectCandidate(context.Background(), "cand-1", now)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpireCandidate(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	store := NewPostgresStore(db)
	now := time.Now().UTC()

	mock.ExpectExec(`UPDATE assignment_candidates\s+SET response_status = 'expired'`).
		WithArgs("cand-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := store.ExpireCandidate(context.Background(), "cand-1", now)
	require.NoError(t, err)
	assert.True(t, ok)

	// Second run: the row is no longer pending, zero rows affected.
	mock.ExpectExec(`UPDATE assignment_candidates\s+SET response_status = 'expired'`).
		WithArgs("cand-1", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err = store.ExpireCandidate(context.Background(), "cand-1", now)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCandidate_ScansNullableFields(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	store := NewPostgresStore(db)
	now := time.Now().UTC()

	cols := []string{"id", "batch_id", "project_id", "developer_id", "tier", "assigned_at",
		"acceptance_deadline", "response_status", "responded_at",
		"usual_response_time_ms", "client_message", "is_first_accepted", "invalidated_at"}

	mock.ExpectQuery(`SELECT(.|\s)+FROM assignment_candidates WHERE id`).
		WithArgs("cand-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("cand-1", "batch-1", "proj-1", "dev-1", "MID", now,
				nil, "pending", nil, int64(45000), nil, false, nil))

	c, err := store.GetCandidate(context.Background(), "cand-1")
	require.NoError(t, err)
	assert.Nil(t, c.AcceptanceDeadline)
	assert.Nil(t, c.RespondedAt)
	assert.Nil(t, c.InvalidatedAt)
	assert.Equal(t, models.TierMid, c.Tier)
	assert.Equal(t, int64(45000), c.UsualResponseTimeMs)
}

func TestListDevelopersWithPendingCandidate(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	store := NewPostgresStore(db)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT DISTINCT developer_id`).
		WithArgs("proj-1", now).
		WillReturnRows(sqlmock.NewRows([]string{"developer_id"}).AddRow("dev-1").AddRow("dev-2"))

	ids, err := store.ListDevelopersWithPendingCandidate(context.Background(), "proj-1", now)
	require.NoError(t, err)
	assert.Equal(t, []string{"dev-1", "dev-2"}, ids)
}
