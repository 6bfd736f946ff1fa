package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/wilsbb/tor-accreditation-api/internal/models"
)

// UpsertOutcome counts rows inserted versus skipped by an upsert pass.
type UpsertOutcome struct {
	Inserted int
	Skipped  int
}

// EntryRepository persists per-subject comparison entries.
type EntryRepository struct {
	db *sqlx.DB
}

// NewEntryRepository constructs the repository.
func NewEntryRepository(db *sqlx.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

// UpsertEntries inserts entries that do not yet exist for their
// (submission_id, subject_code) key and leaves existing rows untouched, so a
// re-sync never clobbers manually-set evaluations or notes. The whole batch
// commits in one transaction.
func (r *EntryRepository) UpsertEntries(ctx context.Context, entries []models.SubjectEntry) (UpsertOutcome, error) {
	outcome := UpsertOutcome{}
	if len(entries) == 0 {
		return outcome, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return outcome, fmt.Errorf("begin entry upsert: %w", err)
	}
	const query = `INSERT INTO subject_entries
	(id, submission_id, subject_code, subject_description, units, final_grade, remark, credit_evaluation, notes, created_at, updated_at)
	VALUES (:id, :submission_id, :subject_code, :subject_description, :units, :final_grade, :remark, :credit_evaluation, :notes, :created_at, :updated_at)
	ON CONFLICT (submission_id, subject_code) DO NOTHING`
	now := time.Now().UTC()
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
		if entries[i].CreditEvaluation == "" {
			entries[i].CreditEvaluation = models.EvaluationVoid
		}
		if entries[i].CreatedAt.IsZero() {
			entries[i].CreatedAt = now
		}
		entries[i].UpdatedAt = now
		result, err := tx.NamedExecContext(ctx, query, entries[i])
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return UpsertOutcome{}, fmt.Errorf("upsert entry %s: %w", entries[i].SubjectCode, err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return UpsertOutcome{}, fmt.Errorf("check entry upsert rows: %w", err)
		}
		if rows > 0 {
			outcome.Inserted++
		} else {
			outcome.Skipped++
		}
	}
	if err := tx.Commit(); err != nil {
		return UpsertOutcome{}, fmt.Errorf("commit entry upsert: %w", err)
	}
	return outcome, nil
}

// GetByID fetches one entry.
func (r *EntryRepository) GetByID(ctx context.Context, id string) (*models.SubjectEntry, error) {
	const query = `SELECT id, submission_id, subject_code, subject_description, units, final_grade,
	remark, credit_evaluation, notes, created_at, updated_at
	FROM subject_entries WHERE id = $1`
	var entry models.SubjectEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListBySubmission returns all entries for a submission ordered by subject
// code. An empty status filters nothing.
func (r *EntryRepository) ListBySubmission(ctx context.Context, submissionID string, status models.CreditEvaluation) ([]models.SubjectEntry, error) {
	query := `SELECT id, submission_id, subject_code, subject_description, units, final_grade,
	remark, credit_evaluation, notes, created_at, updated_at
	FROM subject_entries WHERE submission_id = $1`
	args := []interface{}{submissionID}
	if status != "" {
		query += ` AND credit_evaluation = $2`
		args = append(args, status)
	}
	query += ` ORDER BY subject_code ASC`
	var entries []models.SubjectEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// openSubmissionGuard restricts entry updates to rows whose parent
// submission is still open. The predicate rides inside the UPDATE so a
// finalize committing after the caller's stage check cannot be written
// over; zero matched rows surface as sql.ErrNoRows.
const openSubmissionGuard = ` AND EXISTS (SELECT 1 FROM submissions s
	WHERE s.id = subject_entries.submission_id AND s.stage IN ($4, $5))`

// SetEvaluation updates the staff credit evaluation on one entry.
func (r *EntryRepository) SetEvaluation(ctx context.Context, id string, status models.CreditEvaluation) error {
	const query = `UPDATE subject_entries SET credit_evaluation = $1, updated_at = $2 WHERE id = $3` + openSubmissionGuard
	result, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id, models.StageRequest, models.StagePending)
	if err != nil {
		return fmt.Errorf("set entry evaluation: %w", err)
	}
	return requireRow(result)
}

// SetNotes updates the reviewer notes on one entry.
func (r *EntryRepository) SetNotes(ctx context.Context, id string, notes string) error {
	const query = `UPDATE subject_entries SET notes = $1, updated_at = $2 WHERE id = $3` + openSubmissionGuard
	result, err := r.db.ExecContext(ctx, query, notes, time.Now().UTC(), id, models.StageRequest, models.StagePending)
	if err != nil {
		return fmt.Errorf("set entry notes: %w", err)
	}
	return requireRow(result)
}

// DeleteBySubmission removes every entry owned by the submission and returns
// the number of rows removed. Used by the deny/cancel cascade.
func (r *EntryRepository) DeleteBySubmission(ctx context.Context, submissionID string) (int64, error) {
	const query = `DELETE FROM subject_entries WHERE submission_id = $1`
	result, err := r.db.ExecContext(ctx, query, submissionID)
	if err != nil {
		return 0, fmt.Errorf("delete entries: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check entry delete rows: %w", err)
	}
	return rows, nil
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check affected rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
