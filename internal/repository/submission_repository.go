package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/wilsbb/tor-accreditation-api/internal/models"
)

// ErrActiveSubmissionExists reports that the partial unique index on open
// submissions (applicant_id WHERE stage IN ('Request','Pending')) rejected
// a second concurrent request for the same applicant.
var ErrActiveSubmissionExists = errors.New("active submission already exists for applicant")

// SubmissionRepository persists accreditation submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create inserts a new submission row in the Request stage. The database
// enforces at most one open submission per applicant; losing that race
// returns ErrActiveSubmissionExists.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.Stage == "" {
		submission.Stage = models.StageRequest
	}
	now := time.Now().UTC()
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = now
	}
	submission.UpdatedAt = now
	const query = `INSERT INTO submissions (id, applicant_id, stage, submitted_at, updated_at)
	VALUES (:id, :applicant_id, :stage, :submitted_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrActiveSubmissionExists
		}
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// GetByID fetches a submission by its identifier.
func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	const query = `SELECT id, applicant_id, stage, submitted_at, updated_at FROM submissions WHERE id = $1`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		return nil, err
	}
	return &submission, nil
}

// GetActiveByApplicant returns the applicant's current non-terminal
// submission, if any. At most one exists at a time.
func (r *SubmissionRepository) GetActiveByApplicant(ctx context.Context, applicantID string) (*models.Submission, error) {
	const query = `SELECT id, applicant_id, stage, submitted_at, updated_at FROM submissions
	WHERE applicant_id = $1 AND stage IN ($2, $3)
	ORDER BY submitted_at DESC LIMIT 1`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, applicantID, models.StageRequest, models.StagePending); err != nil {
		return nil, err
	}
	return &submission, nil
}

// GetLatestByApplicant returns the applicant's most recent submission in any
// stage, terminal ones included.
func (r *SubmissionRepository) GetLatestByApplicant(ctx context.Context, applicantID string) (*models.Submission, error) {
	const query = `SELECT id, applicant_id, stage, submitted_at, updated_at FROM submissions
	WHERE applicant_id = $1 ORDER BY submitted_at DESC LIMIT 1`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, applicantID); err != nil {
		return nil, err
	}
	return &submission, nil
}

// ListByStage returns submissions in the given stage, oldest first.
func (r *SubmissionRepository) ListByStage(ctx context.Context, stage models.Stage, limit, offset int) ([]models.Submission, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `SELECT id, applicant_id, stage, submitted_at, updated_at FROM submissions
	WHERE stage = $1 ORDER BY submitted_at ASC LIMIT $2 OFFSET $3`
	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, stage, limit, offset); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// UpdateStage transitions a submission from an expected stage to the next
// one. The expected-stage predicate is the compare-and-swap that serializes
// concurrent staff actions: when another action won the race the row no
// longer matches and sql.ErrNoRows is returned.
func (r *SubmissionRepository) UpdateStage(ctx context.Context, id string, from, to models.Stage) error {
	const query = `UPDATE submissions SET stage = $1, updated_at = $2 WHERE id = $3 AND stage = $4`
	result, err := r.db.ExecContext(ctx, query, to, time.Now().UTC(), id, from)
	if err != nil {
		return fmt.Errorf("update submission stage: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check submission stage update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
