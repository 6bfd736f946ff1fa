package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/wilsbb/tor-accreditation-api/internal/models"
)

func newSummaryRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSummaryRepositoryFinalizeCommitsOneTransaction(t *testing.T) {
	db, mock, cleanup := newSummaryRepoMock(t)
	defer cleanup()

	repo := NewSummaryRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET stage")).
		WithArgs(models.StageFinalized, sqlmock.AnyArg(), "sub-1", models.StagePending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// The snapshot is a single INSERT ... SELECT inside the same
	// transaction; its row count becomes the summary's entry count.
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO summary_entries")).
		WithArgs("sub-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO finalized_summaries")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	submission := &models.Submission{ID: "sub-1", ApplicantID: "acct-1", Stage: models.StagePending}
	summary, err := repo.FinalizeSubmission(context.Background(), submission)
	require.NoError(t, err)
	require.Equal(t, "sub-1", summary.SubmissionID)
	require.Equal(t, 2, summary.EntryCount)
	require.False(t, summary.FinalizedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSummaryRepositoryFinalizeRollsBackWhenStageMoved(t *testing.T) {
	db, mock, cleanup := newSummaryRepoMock(t)
	defer cleanup()

	repo := NewSummaryRepository(db)
	mock.ExpectBegin()
	// A concurrent deny already moved the submission out of Pending, so
	// the guarded stage flip matches nothing and everything rolls back
	// before any snapshot row is written.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET stage")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	submission := &models.Submission{ID: "sub-1", ApplicantID: "acct-1", Stage: models.StagePending}
	_, err := repo.FinalizeSubmission(context.Background(), submission)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSummaryRepositoryFinalizeRollsBackOnEntryFailure(t *testing.T) {
	db, mock, cleanup := newSummaryRepoMock(t)
	defer cleanup()

	repo := NewSummaryRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET stage")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO summary_entries")).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	submission := &models.Submission{ID: "sub-1", ApplicantID: "acct-1", Stage: models.StagePending}
	_, err := repo.FinalizeSubmission(context.Background(), submission)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSummaryRepositoryGetBySubmission(t *testing.T) {
	db, mock, cleanup := newSummaryRepoMock(t)
	defer cleanup()

	repo := NewSummaryRepository(db)
	rows := sqlmock.NewRows([]string{"submission_id", "applicant_id", "entry_count", "finalized_at"}).
		AddRow("sub-1", "acct-1", 4, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT submission_id, applicant_id, entry_count")).
		WithArgs("sub-1").
		WillReturnRows(rows)

	summary, err := repo.GetBySubmission(context.Background(), "sub-1")
	require.NoError(t, err)
	require.Equal(t, 4, summary.EntryCount)
	require.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT submission_id, applicant_id, entry_count")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.GetBySubmission(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSummaryRepositoryListEntries(t *testing.T) {
	db, mock, cleanup := newSummaryRepoMock(t)
	defer cleanup()

	repo := NewSummaryRepository(db)
	rows := sqlmock.NewRows([]string{"id", "submission_id", "subject_code", "subject_description", "units", "final_grade", "remark", "credit_evaluation", "notes"}).
		AddRow("f1", "sub-1", "CS101", "Intro", "3", "1.5", "Passed", "Accepted", "credited")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, submission_id, subject_code")).
		WithArgs("sub-1").
		WillReturnRows(rows)

	entries, err := repo.ListEntries(context.Background(), "sub-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, models.RemarkPassed, entries[0].Remark)
	require.NoError(t, mock.ExpectationsWereMet())
}
