package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/wilsbb/tor-accreditation-api/internal/models"
)

// SummaryRepository persists finalized summaries. Summaries are write-once:
// creation happens only inside FinalizeSubmission and nothing mutates them
// afterwards.
type SummaryRepository struct {
	db *sqlx.DB
}

// NewSummaryRepository constructs the repository.
func NewSummaryRepository(db *sqlx.DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

// FinalizeSubmission flips the submission from Pending to Finalized and
// freezes its live entries into an immutable summary, all in one
// transaction. The stage flip runs first so its row lock and predicate act
// as the compare-and-swap: if a concurrent action already moved the
// submission out of Pending, the whole transaction rolls back with
// sql.ErrNoRows. The entry snapshot is taken by the database inside the
// same transaction, so an evaluation edit cannot land between the copy and
// the commit.
func (r *SummaryRepository) FinalizeSubmission(ctx context.Context, submission *models.Submission) (*models.FinalizedSummary, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin finalize: %w", err)
	}

	now := time.Now().UTC()

	const stageQuery = `UPDATE submissions SET stage = $1, updated_at = $2 WHERE id = $3 AND stage = $4`
	result, err := tx.ExecContext(ctx, stageQuery, models.StageFinalized, now, submission.ID, models.StagePending)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("finalize stage transition: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("check finalize transition rows: %w", err)
	}
	if rows == 0 {
		tx.Rollback() //nolint:errcheck
		return nil, sql.ErrNoRows
	}

	const copyQuery = `INSERT INTO summary_entries
	(id, submission_id, subject_code, subject_description, units, final_grade, remark, credit_evaluation, notes)
	SELECT gen_random_uuid(), submission_id, subject_code, subject_description, units, final_grade, remark, credit_evaluation, notes
	FROM subject_entries WHERE submission_id = $1`
	copied, err := tx.ExecContext(ctx, copyQuery, submission.ID)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("freeze summary entries: %w", err)
	}
	frozen, err := copied.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("check frozen entry rows: %w", err)
	}

	summary := &models.FinalizedSummary{
		SubmissionID: submission.ID,
		ApplicantID:  submission.ApplicantID,
		EntryCount:   int(frozen),
		FinalizedAt:  now,
	}

	const summaryQuery = `INSERT INTO finalized_summaries (submission_id, applicant_id, entry_count, finalized_at)
	VALUES (:submission_id, :applicant_id, :entry_count, :finalized_at)`
	if _, err := tx.NamedExecContext(ctx, summaryQuery, summary); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("insert finalized summary: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit finalize: %w", err)
	}
	return summary, nil
}

// GetBySubmission fetches the summary header for a submission.
func (r *SummaryRepository) GetBySubmission(ctx context.Context, submissionID string) (*models.FinalizedSummary, error) {
	const query = `SELECT submission_id, applicant_id, entry_count, finalized_at
	FROM finalized_summaries WHERE submission_id = $1`
	var summary models.FinalizedSummary
	if err := r.db.GetContext(ctx, &summary, query, submissionID); err != nil {
		return nil, err
	}
	return &summary, nil
}

// GetByApplicant fetches the most recent summary for an applicant.
func (r *SummaryRepository) GetByApplicant(ctx context.Context, applicantID string) (*models.FinalizedSummary, error) {
	const query = `SELECT submission_id, applicant_id, entry_count, finalized_at
	FROM finalized_summaries WHERE applicant_id = $1 ORDER BY finalized_at DESC LIMIT 1`
	var summary models.FinalizedSummary
	if err := r.db.GetContext(ctx, &summary, query, applicantID); err != nil {
		return nil, err
	}
	return &summary, nil
}

// List returns summary headers, newest first.
func (r *SummaryRepository) List(ctx context.Context, limit, offset int) ([]models.FinalizedSummary, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `SELECT submission_id, applicant_id, entry_count, finalized_at
	FROM finalized_summaries ORDER BY finalized_at DESC LIMIT $1 OFFSET $2`
	var summaries []models.FinalizedSummary
	if err := r.db.SelectContext(ctx, &summaries, query, limit, offset); err != nil {
		return nil, fmt.Errorf("list finalized summaries: %w", err)
	}
	return summaries, nil
}

// ListEntries returns the frozen entries of one summary ordered by subject
// code.
func (r *SummaryRepository) ListEntries(ctx context.Context, submissionID string) ([]models.SummaryEntry, error) {
	const query = `SELECT id, submission_id, subject_code, subject_description, units, final_grade,
	remark, credit_evaluation, notes
	FROM summary_entries WHERE submission_id = $1 ORDER BY subject_code ASC`
	var entries []models.SummaryEntry
	if err := r.db.SelectContext(ctx, &entries, query, submissionID); err != nil {
		return nil, fmt.Errorf("list summary entries: %w", err)
	}
	return entries, nil
}
