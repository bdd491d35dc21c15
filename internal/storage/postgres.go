// internal/storage/postgres.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	commonerrors "assignment-service/internal/common/errors"
	"assignment-service/internal/models"

	"github.com/lib/pq"
)

// PostgresStore implements Store on top of database/sql. All candidate
// transitions are single conditional UPDATE statements guarded on the
// current response status, so concurrent writers cannot produce lost
// updates: the first commit wins and every other guard misses.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const candidateColumns = `
	id, batch_id, project_id, developer_id, tier, assigned_at,
	acceptance_deadline, response_status, responded_at,
	usual_response_time_ms, client_message, is_first_accepted, invalidated_at`

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, client_id, title, required_skill_ids, status, created_at, updated_at
		FROM projects WHERE id = $1`, projectID)

	var p models.Project
	var skills pq.StringArray
	err := row.Scan(&p.ID, &p.ClientID, &p.Title, &skills, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, commonerrors.NewNotFoundError("project", projectID)
		}
		return nil, commonerrors.NewDatabaseQueryFailedError("get project", err)
	}
	p.RequiredSkillIDs = skills
	return &p, nil
}

func (s *PostgresStore) UpdateProjectStatus(ctx context.Context, projectID string, status models.ProjectStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(status), projectID)
	if err != nil {
		return commonerrors.NewDatabaseQueryFailedError("update project status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return commonerrors.NewNotFoundError("project", projectID)
	}
	return nil
}

// NextBatchNumber allocates the next batch number for a project with a
// single atomic increment on the project row. Concurrent generators for
// the same project serialize on the row lock, so numbers never repeat.
func (s *PostgresStore) NextBatchNumber(ctx context.Context, projectID string) (int, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE projects SET batch_seq = batch_seq + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING batch_seq`, projectID)

	var seq int
	if err := row.Scan(&seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, commonerrors.NewNotFoundError("project", projectID)
		}
		return 0, commonerrors.NewDatabaseQueryFailedError("next batch number", err)
	}
	return seq, nil
}

// CreateBatch persists the batch and its candidate rows in one
// transaction. Nothing is written when any insert fails.
func (s *PostgresStore) CreateBatch(ctx context.Context, batch *models.AssignmentBatch, candidates []*models.AssignmentCandidate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return commonerrors.NewDatabaseQueryFailedError("begin create batch", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO assignment_batches
			(id, project_id, batch_number, status, batch_type,
			 fresher_count, mid_count, expert_count, no_expiry, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		batch.ID, batch.ProjectID, batch.BatchNumber, string(batch.Status), string(batch.Type),
		batch.Quota.FresherCount, batch.Quota.MidCount, batch.Quota.ExpertCount,
		batch.NoExpiry, batch.CreatedAt)
	if err != nil {
		return commonerrors.NewDatabaseQueryFailedError("insert batch", err)
	}

	for _, c := range candidates {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO assignment_candidates
				(id, batch_id, project_id, developer_id, tier, assigned_at,
				 acceptance_deadline, response_status, usual_response_time_ms,
				 client_message, is_first_accepted)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, FALSE)`,
			c.ID, c.BatchID, c.ProjectID, c.DeveloperID, string(c.Tier), c.AssignedAt,
			c.AcceptanceDeadline, string(c.ResponseStatus), c.UsualResponseTimeMs,
			c.ClientMessage)
		if err != nil {
			return commonerrors.NewDatabaseQueryFailedError("insert candidate", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return commonerrors.NewDatabaseQueryFailedError("commit create batch", err)
	}
	return nil
}

func (s *PostgresStore) CloseBatch(ctx context.Context, batchID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE assignment_batches SET status = 'closed' WHERE id = $1`, batchID)
	if err != nil {
		return commonerrors.NewDatabaseQueryFailedError("close batch", err)
	}
	return nil
}

func (s *PostgresStore) GetCandidate(ctx context.Context, candidateID string) (*models.AssignmentCandidate, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+candidateColumns+`
		FROM assignment_candidates WHERE id = $1`, candidateID)

	c, err := scanCandidate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, commonerrors.NewNotFoundError("candidate", candidateID)
		}
		return nil, commonerrors.NewDatabaseQueryFailedError("get candidate", err)
	}
	return c, nil
}

func (s *PostgresStore) ListBatchCandidates(ctx context.Context, batchID string) ([]*models.AssignmentCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+candidateColumns+`
		FROM assignment_candidates WHERE batch_id = $1
		ORDER BY developer_id`, batchID)
	if err != nil {
		return nil, commonerrors.NewDatabaseQueryFailedError("list batch candidates", err)
	}
	defer rows.Close()
	return scanCandidates(rows)
}

// ListRespondedCandidates returns a developer's recent response history
// for fairness snapshots: rows carrying both assignedAt and respondedAt.
func (s *PostgresStore) ListRespondedCandidates(ctx context.Context, developerID string, limit int) ([]*models.AssignmentCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+candidateColumns+`
		FROM assignment_candidates
		WHERE developer_id = $1 AND responded_at IS NOT NULL
		ORDER BY responded_at DESC
		LIMIT $2`, developerID, limit)
	if err != nil {
		return nil, commonerrors.NewDatabaseQueryFailedError("list responded candidates", err)
	}
	defer rows.Close()
	return scanCandidates(rows)
}

// ListDevelopersWithPendingCandidate returns developers who already hold
// an unexpired, non-invalidated pending candidate for the project.
func (s *PostgresStore) ListDevelopersWithPendingCandidate(ctx context.Context, projectID string, now time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT developer_id
		FROM assignment_candidates
		WHERE project_id = $1
		  AND response_status = 'pending'
		  AND invalidated_at IS NULL
		  AND (acceptance_deadline IS NULL OR acceptance_deadline > $2)`,
		projectID, now)
	if err != nil {
		return nil, commonerrors.NewDatabaseQueryFailedError("list pending developers", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, commonerrors.NewDatabaseQueryFailedError("scan pending developer", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FindActionableCandidateByDeveloper resolves the newest candidate the
// developer can still act on, used by the inbound messaging adapter.
func (s *PostgresStore) FindActionableCandidateByDeveloper(ctx context.Context, developerID string, now time.Time) (*models.AssignmentCandidate, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+candidateColumns+`
		FROM assignment_candidates
		WHERE developer_id = $1
		  AND response_status = 'pending'
		  AND invalidated_at IS NULL
		  AND (acceptance_deadline IS NULL OR acceptance_deadline > $2)
		ORDER BY assigned_at DESC
		LIMIT 1`, developerID, now)

	c, err := scanCandidate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, commonerrors.NewNotFoundError("actionable candidate for developer", developerID)
		}
		return nil, commonerrors.NewDatabaseQueryFailedError("find actionable candidate", err)
	}
	return c, nil
}

// AcceptCandidate is the winning transaction. The first UPDATE only
// succeeds while the row is still pending, non-invalidated and inside
// its deadline; when it reports zero rows the caller lost the race and
// nothing else runs. The deadline compares against the database clock
// so an accept that stalls past it cannot commit no matter when the
// caller's pre-check ran.
func (s *PostgresStore) AcceptCandidate(ctx context.Context, candidateID string, respondedAt time.Time) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, commonerrors.NewDatabaseQueryFailedError("begin accept", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		UPDATE assignment_candidates
		SET response_status = 'accepted', responded_at = $2, is_first_accepted = TRUE
		WHERE id = $1 AND response_status = 'pending' AND invalidated_at IS NULL
		  AND (acceptance_deadline IS NULL OR acceptance_deadline > NOW())
		RETURNING batch_id, project_id`, candidateID, respondedAt)

	var batchID, projectID string
	if err := row.Scan(&batchID, &projectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, commonerrors.NewDatabaseQueryFailedError("accept candidate", err)
	}

	// Siblings keep their stored response status for the audit trail;
	// invalidatedAt alone marks them non-actionable.
	_, err = tx.ExecContext(ctx, `
		UPDATE assignment_candidates
		SET invalidated_at = $3
		WHERE batch_id = $1 AND id <> $2 AND invalidated_at IS NULL`,
		batchID, candidateID, respondedAt)
	if err != nil {
		return false, commonerrors.NewDatabaseQueryFailedError("invalidate siblings", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE assignment_batches SET status = 'closed' WHERE id = $1`, batchID)
	if err != nil {
		return false, commonerrors.NewDatabaseQueryFailedError("close batch on accept", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE projects SET status = 'accepted', updated_at = NOW() WHERE id = $1`, projectID)
	if err != nil {
		return false, commonerrors.NewDatabaseQueryFailedError("advance project on accept", err)
	}

	if err := tx.Commit(); err != nil {
		return false, commonerrors.NewDatabaseQueryFailedError("commit accept", err)
	}
	return true, nil
}

// RejectCandidate flips a single row to rejected; siblings stay live.
// When every candidate in the batch is terminal or invalidated the
// batch is closed.
func (s *PostgresStore) RejectCandidate(ctx context.Context, candidateID string, respondedAt time.Time) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, commonerrors.NewDatabaseQueryFailedError("begin reject", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		UPDATE assignment_candidates
		SET response_status = 'rejected', responded_at = $2
		WHERE id = $1 AND response_status = 'pending' AND invalidated_at IS NULL
		  AND (acceptance_deadline IS NULL OR acceptance_deadline > NOW())
		RETURNING batch_id`, candidateID, respondedAt)

	var batchID string
	if err := row.Scan(&batchID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, commonerrors.NewDatabaseQueryFailedError("reject candidate", err)
	}

	var live int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM assignment_candidates
		WHERE batch_id = $1 AND response_status = 'pending' AND invalidated_at IS NULL`,
		batchID).Scan(&live)
	if err != nil {
		return false, commonerrors.NewDatabaseQueryFailedError("count live candidates", err)
	}

	if live == 0 {
		_, err = tx.ExecContext(ctx, `
			UPDATE assignment_batches SET status = 'closed' WHERE id = $1`, batchID)
		if err != nil {
			return false, commonerrors.NewDatabaseQueryFailedError("close batch on reject", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, commonerrors.NewDatabaseQueryFailedError("commit reject", err)
	}
	return true, nil
}

// ExpireCandidate transitions a past-deadline pending row to expired.
// The pending guard makes the sweep idempotent and keeps it from racing
// accept/reject: whichever commits first wins the row.
func (s *PostgresStore) ExpireCandidate(ctx context.Context, candidateID string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE assignment_candidates
		SET response_status = 'expired'
		WHERE id = $1
		  AND response_status = 'pending'
		  AND invalidated_at IS NULL
		  AND acceptance_deadline IS NOT NULL
		  AND acceptance_deadline < $2`, candidateID, now)
	if err != nil {
		return false, commonerrors.NewDatabaseQueryFailedError("expire candidate", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *PostgresStore) ListExpirableCandidates(ctx context.Context, now time.Time, limit int) ([]*models.AssignmentCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+candidateColumnsPrefixed("c")+`
		FROM assignment_candidates c
		JOIN assignment_batches b ON b.id = c.batch_id
		WHERE c.response_status = 'pending'
		  AND c.invalidated_at IS NULL
		  AND c.acceptance_deadline IS NOT NULL
		  AND c.acceptance_deadline < $1
		  AND b.batch_type <> 'MANUAL_INVITE'
		  AND b.no_expiry = FALSE
		ORDER BY c.acceptance_deadline
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, commonerrors.NewDatabaseQueryFailedError("list expirable candidates", err)
	}
	defer rows.Close()
	return scanCandidates(rows)
}

func (s *PostgresStore) GetDeveloper(ctx context.Context, developerID string) (*models.Developer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_user_id, name, email, phone, tier, skill_ids, available
		FROM developers WHERE id = $1`, developerID)
	return scanDeveloper(row, developerID)
}

func (s *PostgresStore) GetDeveloperByPhone(ctx context.Context, phone string) (*models.Developer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_user_id, name, email, phone, tier, skill_ids, available
		FROM developers WHERE phone = $1`, phone)
	return scanDeveloper(row, phone)
}

// --- scan helpers ---

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCandidate(row rowScanner) (*models.AssignmentCandidate, error) {
	var c models.AssignmentCandidate
	var deadline, respondedAt, invalidatedAt sql.NullTime
	var clientMessage sql.NullString

	err := row.Scan(
		&c.ID, &c.BatchID, &c.ProjectID, &c.DeveloperID, &c.Tier, &c.AssignedAt,
		&deadline, &c.ResponseStatus, &respondedAt,
		&c.UsualResponseTimeMs, &clientMessage, &c.IsFirstAccepted, &invalidatedAt,
	)
	if err != nil {
		return nil, err
	}

	if deadline.Valid {
		t := deadline.Time
		c.AcceptanceDeadline = &t
	}
	if respondedAt.Valid {
		t := respondedAt.Time
		c.RespondedAt = &t
	}
	if invalidatedAt.Valid {
		t := invalidatedAt.Time
		c.InvalidatedAt = &t
	}
	c.ClientMessage = clientMessage.String
	return &c, nil
}

func scanCandidates(rows *sql.Rows) ([]*models.AssignmentCandidate, error) {
	var out []*models.AssignmentCandidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, commonerrors.NewDatabaseQueryFailedError("scan candidate", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanDeveloper(row *sql.Row, ref string) (*models.Developer, error) {
	var d models.Developer
	var skills pq.StringArray
	err := row.Scan(&d.ID, &d.OwnerUserID, &d.Name, &d.Email, &d.Phone, &d.Tier, &skills, &d.Available)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, commonerrors.NewNotFoundError("developer", ref)
		}
		return nil, commonerrors.NewDatabaseQueryFailedError("get developer", err)
	}
	d.SkillIDs = skills
	return &d, nil
}

func candidateColumnsPrefixed(alias string) string {
	return alias + `.id, ` + alias + `.batch_id, ` + alias + `.project_id, ` + alias + `.developer_id, ` +
		alias + `.tier, ` + alias + `.assigned_at, ` + alias + `.acceptance_deadline, ` +
		alias + `.response_status, ` + alias + `.responded_at, ` + alias + `.usual_response_time_ms, ` +
		alias + `.client_message, ` + alias + `.is_first_accepted, ` + alias + `.invalidated_at`
}
